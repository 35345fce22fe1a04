package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/navex/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // explicit --config; empty means auto-discover

	config     *Config
	configFile string // file the config was read from, if any
	logger     *slog.Logger
	shutdown   func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the effective configuration, loading it on first use.
func (o *RootOptions) Config() (*Config, error) {
	if o.config == nil {
		cfg, path, err := LoadConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		o.config = cfg
		o.configFile = path
	}
	return o.config, nil
}

// Logger returns the command logger. Commands built without the root
// command log nowhere.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// NewRootCommand creates the root command for the navex CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "navex",
		Short: "navex - navigation expansion for entity queries",
		Long: `navex rewrites entity queries that traverse relationships into
explicit joins and subqueries, compiles them to SQL and materializes
the results back into object graphs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return WrapExitError(ExitCommandError, "loading configuration", err)
			}
			if !cmd.Flags().Changed("format") && cfg.Output.Format != "" {
				opts.Format = cfg.Output.Format
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			level := slog.LevelInfo
			if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid log level %q", cfg.Log.Level))
			}
			if opts.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			service := cfg.Telemetry.Service
			if service == "" {
				service = telemetry.DefaultService
			}
			shutdown, err := telemetry.Setup(cfg.Telemetry.OTLPEndpoint, service)
			if err != nil {
				return WrapExitError(ExitCommandError, "configuring telemetry", err)
			}
			opts.shutdown = shutdown
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: auto-discover navex.yaml)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExpandCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd, opts
}

// Execute runs the CLI with the process arguments and returns the exit code.
// Spans still buffered by the telemetry exporter are flushed before returning.
func Execute() int {
	cmd, opts := newRootCommand()
	err := cmd.Execute()

	if opts.shutdown != nil {
		if serr := opts.shutdown(context.Background()); serr != nil {
			opts.Logger().Warn("telemetry shutdown failed", "error", serr)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
