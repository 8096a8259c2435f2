package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/registry"
)

func newPublishCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [name]",
		Short: "Publish the model to the registry",
		Long: `Validate the model and store it in the Redis registry at registry.url.

The name defaults to registry.name, then to the model file name without
its extension. The version is derived from the model's content, so
publishing an unchanged model is a no-op.`,
		Example: `  ORMMETA_REGISTRY_URL=redis://localhost:6379/0 ormmeta publish shop`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.registryName(args)
			model, err := a.loadModel(cmd)
			if err != nil {
				return err
			}
			frozen, err := model.Freeze()
			if err != nil {
				cmd.PrintErr(ui.ValidationFailed(multierr.Errors(err), a.cfg.NoColor))
				return fmt.Errorf("model is invalid: %w", errReported)
			}

			reg, err := a.openRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			version, err := reg.Publish(cmd.Context(), name, frozen)
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Published %s@%s", name, version), a.cfg.NoColor)
			return nil
		},
	}
}

func newPullCommand(a *app) *cobra.Command {
	var (
		version string
		output  string
		list    bool
	)

	cmd := &cobra.Command{
		Use:   "pull [name]",
		Short: "Fetch a published model file from the registry",
		Long: `Fetch a model file published with the publish command and write it to
stdout or a file. Without --version the latest version is fetched.`,
		Example: `  # Latest version to stdout
  ormmeta pull shop

  # A specific version to a file
  ormmeta pull shop --version 3f2a9c0d1b7e -o model.yml

  # List published versions, oldest first
  ormmeta pull shop --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.registryName(args)
			reg, err := a.openRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			out := cmd.OutOrStdout()
			if list {
				versions, err := reg.Versions(cmd.Context(), name)
				if err != nil {
					return err
				}
				if len(versions) == 0 {
					return fmt.Errorf("%w: %s", registry.ErrNotFound, name)
				}
				for _, v := range versions {
					fmt.Fprintln(out, v)
				}
				return nil
			}

			doc, err := reg.Fetch(cmd.Context(), name, version)
			if err != nil {
				return err
			}
			data, err := doc.Marshal()
			if err != nil {
				return err
			}
			if output == "" {
				_, err = out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write model file: %w", err)
			}
			ui.WriteSuccess(out, "Wrote "+output, a.cfg.NoColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Version to fetch (default latest)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().BoolVar(&list, "list", false, "List published versions")
	return cmd
}

// registryName picks the published name: the argument, registry.name, then
// the model file's base name
func (a *app) registryName(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	if a.cfg.Registry.Name != "" {
		return a.cfg.Registry.Name
	}
	base := filepath.Base(a.cfg.ModelFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (a *app) openRegistry(cmd *cobra.Command) (*registry.Registry, error) {
	url := a.cfg.Registry.URL
	if url == "" {
		return nil, fmt.Errorf("no registry: set registry.url or ORMMETA_REGISTRY_URL")
	}
	return registry.Open(cmd.Context(), url, registry.WithLogger(a.logger))
}
