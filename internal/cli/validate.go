package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool         `json:"valid"`
	KeyMaps []string     `json:"keymaps"`
	Errors  []*LoadError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate key map files",
		Long: `Validate CUE key maps and JSON or YAML trigger documents.

JSON and YAML documents are checked against the trigger schema first.
Every key map is then checked against the rules a composed trigger always
satisfies, and key map names must be unique. All problems are reported.

Exit codes:
  0 - All key maps valid
  1 - One or more validation errors
  2 - Command error (path not found, no files, etc.)

Examples:
  keytrigger validate ./keymaps
  keytrigger validate ./keymaps/volume.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	report, result, err := checkKeyMaps(path)
	if err != nil {
		return outputValidateError(formatter, err)
	}
	formatter.VerboseLog("Found %d key map file(s) in %s", result.FileCount, path)
	for _, km := range result.KeyMaps {
		formatter.VerboseLog("Validated key map: %s (%s)", km.Name, km.File)
	}

	if !report.Valid {
		return outputValidationErrors(formatter, report)
	}
	return outputValidateSuccess(formatter, report)
}

// checkKeyMaps loads and validates every key map under path. The error is
// set only when nothing could be loaded (path not found, no files).
func checkKeyMaps(path string) (ValidationResult, *LoadResult, error) {
	result, errs := LoadKeyMaps(path, LoadModeCollectAll)
	if result == nil {
		return ValidationResult{}, nil, errs[0]
	}

	report := ValidationResult{Valid: len(errs) == 0, KeyMaps: []string{}}
	for _, km := range result.KeyMaps {
		report.KeyMaps = append(report.KeyMaps, km.Name)
	}
	for _, err := range errs {
		report.Errors = append(report.Errors, asLoadError(err))
	}
	return report, result, nil
}

func asLoadError(err error) *LoadError {
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, report ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d key map(s) valid\n", len(report.KeyMaps))
	return nil
}

// outputValidateError outputs a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, err error) error {
	le := asLoadError(err)
	_ = formatter.Error(le.Code, le.Message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", le.Code, le.Message))
}

// outputValidationErrors outputs every validation error (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, report ValidationResult) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(report.Errors))
	if formatter.JSON() {
		if err := formatter.Failure(report, report.Errors[0].Code, report.Errors[0].Message); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range report.Errors {
		switch {
		case e.File != "" && e.Line > 0:
			fmt.Fprintf(formatter.Writer, "%s:%d\n", e.File, e.Line)
		case e.File != "":
			fmt.Fprintln(formatter.Writer, e.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, msg)
}
