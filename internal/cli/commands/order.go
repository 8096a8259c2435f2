package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

func newOrderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "List entity types with principals before dependents",
		Long: `List the entity types so that every principal of a foreign key comes
before its dependents, the order in which tables are created or rows are
inserted. Entity types that could go in the same place are listed by name.

Foreign keys that form a cycle are reported as an error.`,
		Example: `  ormmeta order`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}
			graph := metadata.NewDependencyGraph(model)
			order, err := graph.Order()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			number := color.New(color.FgCyan)
			deps := color.New(color.FgHiBlack)
			if a.cfg.NoColor {
				number.DisableColor()
				deps.DisableColor()
			}
			for i, name := range order {
				number.Fprintf(out, "%d. ", i+1)
				fmt.Fprint(out, name)
				if d := graph.Dependencies(name); len(d) > 0 {
					deps.Fprintf(out, " (after %s)", strings.Join(d, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
