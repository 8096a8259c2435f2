package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/web/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the model metadata as JSON over HTTP",
		Long: `Build, validate and freeze the model, then serve it read-only:

  GET /entities                 entity types with their member counts
  GET /entities/{name}          one entity type in full
  GET /entities/{name}/slots    change tracking slots of each member
  GET /order                    entity types with principals first
  GET /model.yaml               the model written back as a model file

When serve.jwt_secret (or ORMMETA_SERVE_JWT_SECRET) is set, every request
needs an "Authorization: Bearer" token issued by the token command.

The server stops on SIGINT or SIGTERM, letting open requests finish.`,
		Example: `  ormmeta serve --addr :8080`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}
			frozen, err := model.Freeze()
			if err != nil {
				cmd.PrintErr(ui.ValidationFailed(multierr.Errors(err), a.cfg.NoColor))
				return fmt.Errorf("model is invalid: %w", errReported)
			}

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Serve.Addr
			}
			var opts []api.Option
			if secret := a.cfg.Serve.JWTSecret; secret != "" {
				opts = append(opts, api.WithAuth([]byte(secret)))
			}

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("serving %d entity type(s) on http://%s", len(frozen.EntityTypes()), listener.Addr()),
				a.cfg.NoColor)
			return serve(ctx, listener, api.NewHandler(frozen, a.logger, opts...), a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default serve.addr, localhost:8080)")
	return cmd
}

// serve runs handler on listener until ctx is done, then shuts down
// gracefully
func serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
