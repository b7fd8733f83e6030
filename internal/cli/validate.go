package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/a2ui/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Mode    string // export | incremental
	Catalog string // catalog id or "none"
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Mode     string          `json:"mode"`
	Messages int             `json:"messages"`
	Errors   validate.Errors `json:"errors,omitempty"`
	Warnings validate.Errors `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate a message batch",
		Long: `Validate an A2UI message batch without applying it.

Export mode (the default) checks a batch that must describe complete
surfaces. Incremental mode checks a live update: a missing root is only
a warning and the whole-batch rule is skipped.

Exit codes:
  0 - Batch is valid (warnings allowed)
  1 - Batch has errors
  2 - Command error (file not found, unparseable input)

Examples:
  a2ui validate booking.a2ui.json
  a2ui validate --mode incremental update.jsonl
  a2ui validate --catalog none --format json design.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "export", "validation mode (export|incremental)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "catalog id to check components against, or none (default from config)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	mode, err := validate.ParseMode(opts.Mode)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	vopts, err := catalogOptions(opts.RootOptions, opts.Catalog)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	raws, err := readBatch(cmd, path)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Loaded %d message(s) from %s", len(raws), path)

	findings := validate.ValidateRaw(raws, append(vopts, validate.WithMode(mode))...)
	result := ValidationResult{
		Valid:    findings.Err() == nil,
		Mode:     mode.String(),
		Messages: len(raws),
		Errors:   findings.Blocking(),
		Warnings: findings.Warnings(),
	}

	if result.Valid {
		return outputValidateSuccess(formatter, result)
	}
	return outputValidationErrors(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "warning %s\n", w.Error())
	}
	fmt.Fprintf(formatter.Writer, "✓ Batch valid (%d message(s), %s)\n", result.Messages, result.Mode)
	return nil
}

// outputValidationErrors outputs every finding and fails with exit code 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failure := reportedExit(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s\n", e.Error())
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s\n", w.Error())
	}
	return failure
}
