package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormmeta/internal/web/api"
)

func newTokenCommand(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the serve API",
		Long: `Sign a token with serve.jwt_secret for clients of ormmeta serve.

The secret is read from the config or ORMMETA_SERVE_JWT_SECRET.`,
		Example: `  ORMMETA_SERVE_JWT_SECRET=... ormmeta token --subject ci --ttl 24h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := a.cfg.Serve.JWTSecret
			if secret == "" {
				return fmt.Errorf("no secret: set serve.jwt_secret or ORMMETA_SERVE_JWT_SECRET")
			}
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got %s", ttl)
			}
			token, err := api.NewToken([]byte(secret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "ormmeta", "Subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Time until the token expires")
	return cmd
}
