package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
)

func newInspectCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [entity]",
		Short: "Show the model or one entity type",
		Long: `Show the model built from the model file.

The text format is the debug view: every entity type with its properties,
navigations, keys, foreign keys and indexes, the configuration source of
each annotation and the change tracking slots of each member. The yaml
format writes the model back as a model file holding only the settings
that differ from the defaults.`,
		Example: `  # Show the whole model
  ormmeta inspect

  # Show one entity type
  ormmeta inspect order

  # Normalize a model file
  ormmeta inspect --format yaml > model.yml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q: use text or yaml", format)
			}
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if format == "yaml" {
				doc := modelfile.FromModel(model)
				if len(args) == 1 {
					et, err := a.findEntityType(cmd, model, args[0])
					if err != nil {
						return err
					}
					doc.Entities = []*modelfile.Entity{entityDocument(doc, et.Name())}
				}
				data, err := doc.Marshal()
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			if len(args) == 1 {
				et, err := a.findEntityType(cmd, model, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(out, et.DebugView())
				return nil
			}
			fmt.Fprint(out, model.DebugView())
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or yaml")
	return cmd
}

func entityDocument(doc *modelfile.Document, name string) *modelfile.Entity {
	for _, e := range doc.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}
