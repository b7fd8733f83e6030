package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose         bool
	Format          string // "json" | "text"
	ConfigPath      string
	LegacyDataModel bool // accept updateDataModel.dataModel as a root replace

	// Populated by the root PersistentPreRunE.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the a2ui CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: slog.Default()}

	cmd := &cobra.Command{
		Use:           "a2ui",
		Short:         "A2UI surface protocol tools",
		Long:          "Validate, store, preview and stream A2UI surface message batches.",
		SilenceErrors: true, // main prints what commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $A2UI_CONFIG or ~/.config/a2ui/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.LegacyDataModel, "legacy-data-model", false, "accept the legacy updateDataModel.dataModel key")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads configuration and installs the stderr logger. --verbose
// forces debug level.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.LegacyDataModel {
		cfg.Render.LegacyDataModel = true
	}
	o.Config = cfg

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	w := cmd.ErrOrStderr()
	if w == nil {
		w = os.Stderr
	}
	o.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

// logger returns the configured logger, or slog.Default() when a command
// runs without the root pre-run (as in tests).
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
