package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/navex/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Entities    int                        `json:"entities"`
	Navigations int                        `json:"navigations"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Warnings    []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [model-dir]",
		Short: "Validate a CUE model",
		Long: `Validate the entities and relationships of a CUE model.

Every definition is checked on its own, so one broken entity does not hide
the others. Cycles of required relationships are reported as warnings.
Without an argument the model_dir from the configuration is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := modelDirArg(rootOpts, args)
			if err != nil {
				return err
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func modelDirArg(opts *RootOptions, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := opts.Config()
	if err != nil {
		return "", WrapExitError(ExitCommandError, "loading configuration", err)
	}
	return cfg.ModelDir, nil
}

func runValidate(opts *RootOptions, modelDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadModelValue(modelDir)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.Fail(ExitCommandError, code, message)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, modelDir)

	if errs := compiler.Validate(loaded.CUEValue); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	m, err := compiler.CompileModel(loaded.CUEValue)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error())
	}

	result := ValidationResult{
		Valid:    true,
		Entities: len(m.EntityTypes()),
		Warnings: compiler.AnalyzeCycles(m),
	}
	for _, e := range m.EntityTypes() {
		formatter.VerboseLog("Entity %s: table %s, %d navigation(s)", e.Name, e.Table, len(e.Navigations))
		result.Navigations += len(e.Navigations)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Model valid (%d entities, %d navigations)\n", result.Entities, result.Navigations)
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  warning %s: %s\n", compiler.ErrRequiredRelationship, warn.Message)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
// Validation failures exit with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}
		return failure
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
