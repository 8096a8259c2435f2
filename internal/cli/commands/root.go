package commands

import (
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/ormmeta/internal/cli/config"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// app carries the flags and the state built before a subcommand runs
type app struct {
	configPath string
	modelFile  string
	verbose    bool
	noColor    bool

	cfg         *config.Config
	logger      *zap.Logger
	listColumns columnLister
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{listColumns: listTableColumns})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ormmeta",
		Short: "Inspect and validate ORM model metadata",
		Long: color.CyanString(`ormmeta - ORM model metadata tooling

ormmeta builds a model from a YAML model file and reports on it:
the entity types with their keys and relationships, the change tracking
slots of each member, the order entity types depend on each other,
whether a database has a column for every property, and serves the
same reports as JSON over HTTP.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default ./ormmeta.yml)")
	flags.StringVarP(&a.modelFile, "model", "m", "", "Model file (overrides model_file)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log model building at debug level")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newInspectCommand(a))
	rootCmd.AddCommand(newSlotsCommand(a))
	rootCmd.AddCommand(newValidateCommand(a))
	rootCmd.AddCommand(newOrderCommand(a))
	rootCmd.AddCommand(newColumnsCommand(a))
	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newInitCommand(a))
	rootCmd.AddCommand(newTokenCommand(a))
	rootCmd.AddCommand(newPublishCommand(a))
	rootCmd.AddCommand(newPullCommand(a))

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	switch {
	case cmd.Flags().Changed("model"):
		cfg.ModelFile = a.modelFile
	case a.configPath != "":
		cfg.ModelFile = cfg.ResolveModelFile(filepath.Dir(a.configPath))
	}
	cfg.Verbose = cfg.Verbose || a.verbose
	cfg.NoColor = cfg.NoColor || a.noColor
	if cfg.NoColor {
		color.NoColor = true
	}

	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	return nil
}

// newLogger logs to w in console format, at debug level when verbose and
// warn level otherwise
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core)
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
