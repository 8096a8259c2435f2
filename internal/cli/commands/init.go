package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/ormmeta/internal/cli/config"
	"github.com/conduit-lang/ormmeta/internal/cli/ui"
	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
)

var (
	changeTrackingOptions = []string{
		metadata.Snapshot.String(),
		metadata.ChangedNotifications.String(),
		metadata.ChangingAndChangedNotifications.String(),
		metadata.ChangingAndChangedNotificationsWithOriginalValues.String(),
	}
	accessModeOptions = []string{
		metadata.AccessModeDefault.String(),
		metadata.AccessModeFieldDuringConstruction.String(),
		metadata.AccessModeField.String(),
		metadata.AccessModeProperty.String(),
	}
)

// starterModel is written when the model file does not exist yet
var starterModel = &modelfile.Document{
	Entities: []*modelfile.Entity{{
		Name: "customer",
		Properties: []*modelfile.Property{
			{Name: "Id", Type: "int", ValueGenerated: metadata.ValueGeneratedOnAdd.String()},
			{Name: "Name", Type: "string"},
		},
		Key: []string{"Id"},
	}},
}

type initOptions struct {
	modelFile      string
	changeTracking string
	accessMode     string
	yes            bool
	force          bool
}

func newInitCommand(a *app) *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an ormmeta.yml config file",
		Long: `Create ormmeta.yml in the directory, the working directory by default.

Settings not given as flags are asked for interactively, unless --yes
accepts the defaults. When the model file does not exist a starter model
with one entity type is written next to the config.`,
		Example: `  # Answer the prompts
  ormmeta init

  # Accept the defaults
  ormmeta init --yes

  # Configure a project directory
  ormmeta init services/shop --model-file schema.yml --change-tracking changed_notifications -y`,
		Args: cobra.MaximumNArgs(1),
		// init runs before a config exists, so it replaces the root setup
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return a.runInit(cmd, dir, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.modelFile, "model-file", "", "Model file path, relative to the config (default model.yml)")
	flags.StringVar(&opts.changeTracking, "change-tracking", "", "Default change tracking strategy")
	flags.StringVar(&opts.accessMode, "access-mode", "", "Default property access mode")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Accept defaults without prompting")
	flags.BoolVar(&opts.force, "force", false, "Overwrite an existing config file")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, dir string, opts *initOptions) error {
	if err := opts.complete(); err != nil {
		return err
	}

	cfg := &config.Config{
		ModelFile: opts.modelFile,
		Model: config.ModelConfig{
			ChangeTracking: opts.changeTracking,
			AccessMode:     opts.accessMode,
		},
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	configPath := filepath.Join(dir, "ormmeta.yml")
	if err := config.Save(configPath, cfg, opts.force); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists; use --force to overwrite it", configPath)
		}
		return err
	}

	out := cmd.OutOrStdout()
	noColor := a.noColor
	ui.WriteSuccess(out, "Created "+configPath, noColor)

	modelPath := cfg.ResolveModelFile(dir)
	if _, err := os.Stat(modelPath); err == nil {
		return nil
	}
	data, err := starterModel.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(modelPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(modelPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	ui.WriteSuccess(out, "Created "+modelPath, noColor)
	return nil
}

// complete fills unset options, prompting unless yes is set, and checks
// the values
func (o *initOptions) complete() error {
	if !o.yes {
		if err := o.ask(); err != nil {
			return err
		}
	}
	if o.modelFile == "" {
		o.modelFile = "model.yml"
	}
	if o.changeTracking == "" {
		o.changeTracking = metadata.Snapshot.String()
	}
	if o.accessMode == "" {
		o.accessMode = metadata.AccessModeDefault.String()
	}

	if _, err := metadata.ParseChangeTrackingStrategy(o.changeTracking); err != nil {
		return err
	}
	if _, err := metadata.ParsePropertyAccessMode(o.accessMode); err != nil {
		return err
	}
	return nil
}

func (o *initOptions) ask() error {
	if o.modelFile == "" {
		prompt := &survey.Input{
			Message: "Model file:",
			Default: "model.yml",
		}
		if err := survey.AskOne(prompt, &o.modelFile, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	if o.changeTracking == "" {
		prompt := &survey.Select{
			Message: "Change tracking strategy:",
			Options: changeTrackingOptions,
			Default: metadata.Snapshot.String(),
		}
		if err := survey.AskOne(prompt, &o.changeTracking); err != nil {
			return err
		}
	}
	if o.accessMode == "" {
		prompt := &survey.Select{
			Message: "Property access mode:",
			Options: accessModeOptions,
			Default: metadata.AccessModeDefault.String(),
		}
		if err := survey.AskOne(prompt, &o.accessMode); err != nil {
			return err
		}
	}
	return nil
}
