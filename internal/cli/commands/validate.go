package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the model file builds a valid model",
		Long: `Build the model from the model file, validate it and freeze it.

Every problem is reported: unknown names in the model file, settings the
model rejects, and entity types without a primary key.`,
		Example: `  ormmeta validate
  ormmeta validate --model schema/shop.yml`,
		Args: cobra.NoArgs,
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
			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("%s is valid: %d entity type(s)", a.cfg.ModelFile, len(frozen.EntityTypes())),
				a.cfg.NoColor)
			return nil
		},
	}
}
