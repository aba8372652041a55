package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/keytrigger/internal/config"
)

// RootOptions holds global flags for all commands, resolved against the
// configuration file before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string

	// Config is the loaded configuration. Set by the root command.
	Config *config.Config
	// Logger is the configured logger, also installed as slog's default.
	Logger *slog.Logger

	logLevel *slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the keytrigger CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "keytrigger",
		Short: "keytrigger - compose and check key-remapping triggers",
		Long: `Compose, validate and classify the triggers of a key-remapping app.

Key maps are authored in CUE, JSON or YAML, kept in a SQLite library and
edited one rule-checked step at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default "+config.Path()+")")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "key-map library (overrides store.path)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewLibraryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// resolve loads the configuration and fills in every flag the user did
// not set.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	if !cmd.Flags().Changed("format") {
		o.Format = cfg.Output.Format
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Database == "" {
		o.Database = cfg.Store.Path
	}

	o.Logger, o.logLevel = newLogger(cmd.ErrOrStderr(), cfg.Log.Level, o.Verbose)
	slog.SetDefault(o.Logger)
	return nil
}

// newLogger builds a text logger at the configured level. Verbose forces
// debug. The returned LevelVar lets a config reload change the level.
func newLogger(w io.Writer, level string, verbose bool) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(logLevel(level, verbose))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}

func logLevel(level string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// applyConfig adopts the reloadable parts of a new configuration.
func (o *RootOptions) applyConfig(cfg *config.Config) {
	o.Config = cfg
	if o.logLevel != nil {
		o.logLevel.Set(logLevel(cfg.Log.Level, o.Verbose))
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns an output formatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
