package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/navex/internal/harness"
	"github.com/roach88/navex/internal/ir"
	"github.com/roach88/navex/internal/querysql"
)

// ExpandOptions holds flags for the expand command.
type ExpandOptions struct {
	*RootOptions
	Dialect string
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExpandOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "expand <scenario>",
		Short: "Show the expansion and SQL of a scenario query",
		Long: `Expand the navigations of a scenario's query and compile it to SQL
without touching a database.

Prints the rewritten expression, the planned includes, the number of
synthesized joins and the SQL with its parameters.

Examples:
  navex expand ./scenarios/include_reference.yaml
  navex expand ./scenarios/include_reference.yaml --dialect postgres
  navex expand ./scenarios/include_reference.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (sqlite|postgres|mysql); default from config")

	return cmd
}

func runExpand(opts *ExpandOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	name := opts.Dialect
	if name == "" {
		cfg, err := opts.Config()
		if err != nil {
			return WrapExitError(ExitCommandError, "loading configuration", err)
		}
		name = cfg.Dialect
	}
	dialect, err := querysql.ParseDialect(name)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error())
	}
	formatter.VerboseLog("Expanding %s for %s", scenario.Name, dialect)

	trace, err := harness.Expand(cmd.Context(), scenario,
		harness.WithDialect(dialect),
		harness.WithLogger(opts.Logger()))
	if err != nil {
		return formatter.Fail(ExitFailure, queryErrorCode(err), err.Error())
	}

	if formatter.IsJSON() {
		return formatter.Success(trace)
	}
	writePlan(formatter, trace)
	return nil
}

// writePlan prints the planned part of a trace.
func writePlan(f *OutputFormatter, trace *harness.Trace) {
	w := f.Writer
	fmt.Fprintf(w, "Expression: %s\n", trace.Expression)
	if len(trace.Includes) > 0 {
		fmt.Fprintf(w, "Includes:   %s\n", strings.Join(trace.Includes, ", "))
	}
	fmt.Fprintf(w, "Joins:      %d\n", trace.Joins)
	fmt.Fprintf(w, "SQL:        %s\n", trace.SQL)
	if len(trace.Params) > 0 {
		params, err := ir.MarshalCanonical(trace.Params)
		if err == nil {
			fmt.Fprintf(w, "Params:     %s\n", params)
		}
	}
	for _, warning := range trace.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warning)
	}
}

// queryErrorCode returns the translation, runtime or configuration code of
// err, or ErrCodeQueryFailed.
func queryErrorCode(err error) string {
	if code := harness.ErrorCode(err); code != "" {
		return code
	}
	return ErrCodeQueryFailed
}
