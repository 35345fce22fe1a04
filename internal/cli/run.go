package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/navex/internal/harness"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Driver     string
	Database   string
	MaxQueries int
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Name   string        `json:"name"`
	Pass   bool          `json:"pass"`
	Trace  harness.Trace `json:"trace"`
	Errors []string      `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Execute a scenario query",
		Long: `Execute a scenario: create its tables, insert its fixtures, run the
query and check its assertions.

Without --db the scenario runs in a fresh in-memory SQLite database.
With --db the fixtures are inserted into that database, which must not
already hold conflicting rows.

Example:
  navex run ./scenarios/include_collection.yaml
  navex run --db ./navex.db ./scenarios/include_collection.yaml
  navex run --driver pgx --db postgres://localhost/navex ./scenarios/count.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database DSN (default from config; empty for in-memory SQLite)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|pgx); default from config")
	cmd.Flags().IntVar(&opts.MaxQueries, "max-queries", 0, "maximum statements per execution (0 keeps the scenario's)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger()

	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error())
	}
	switch {
	case opts.MaxQueries > 0:
		scenario.MaxQueries = opts.MaxQueries
	case scenario.MaxQueries == 0 && cfg.MaxQueries > 0:
		scenario.MaxQueries = cfg.MaxQueries
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	harnessOpts := []harness.Option{harness.WithLogger(logger)}

	dsn := resolveString(opts.Database, cfg.Database.DSN)
	if dsn != "" {
		driver := resolveString(opts.Driver, cfg.Database.Driver, store.DriverSQLite)
		logger.Info("opening database", "driver", driver)
		st, err := store.Open(driver, dsn)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error())
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		harnessOpts = append(harnessOpts, harness.WithStore(st))
	}

	result, err := harness.RunContext(ctx, scenario, harnessOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	if formatter.IsJSON() {
		if err := formatter.Encode(CLIResponse{
			Status: statusOf(result.Pass),
			Data:   RunResult{Name: scenario.Name, Pass: result.Pass, Trace: result.Trace, Errors: result.Errors},
		}); err != nil {
			return err
		}
	} else {
		writeRun(formatter, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRun(f *OutputFormatter, name string, result *harness.Result) {
	w := f.Writer
	trace := &result.Trace

	if trace.SQL != "" {
		writePlan(f, trace)
	}
	if trace.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", trace.Error)
	} else if trace.Value != nil {
		value, err := ir.MarshalCanonical(trace.Value)
		if err == nil {
			fmt.Fprintf(w, "Value:      %s\n", value)
		}
	}
	fmt.Fprintf(w, "Queries:    %d\n", trace.Queries)
	fmt.Fprintln(w)

	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func statusOf(pass bool) string {
	if pass {
		return "ok"
	}
	return "error"
}

// commandContext returns the command's context, or Background for commands
// executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
