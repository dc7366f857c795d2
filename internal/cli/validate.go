package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/compiler"
	"github.com/roach88/caseconf/internal/depgraph"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Rules       string                     `json:"rules,omitempty"`
	Variables   int                        `json:"variables"`
	Assertions  int                        `json:"assertions"`
	Derivations int                        `json:"derivations"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Cycles      []depgraph.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>",
		Short: "Validate a rule set",
		Long: `Compile a CUE or HCL rule set (a file, or a directory of them), check it
statically and build a session from it.

Reports every validation problem at once, plus dependency cycles. Cycles
held together by assertions alone are informational; cycles through a
derivation are warnings. Neither fails validation.

Exit codes:
  0 - Rule set is valid
  1 - Rule set is invalid
  2 - Command error (path not found, no rule files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	rs, err := LoadRules(path, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %q: %d variable(s), %d assertion(s), %d derivation(s)",
		rs.Name, len(rs.Variables), len(rs.Assertions), len(rs.Derivations))

	s, err := BuildSession(context.Background(), rs, logger, nil)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := ValidationResult{
		Valid:       true,
		Rules:       rs.Name,
		Variables:   len(rs.Variables),
		Assertions:  len(rs.Assertions),
		Derivations: len(rs.Derivations),
		Cycles:      s.Graph().Cycles(),
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	formatter.Printf("[green]✓[reset] %s is valid: %d variable(s), %d assertion(s), %d derivation(s)\n",
		result.Rules, result.Variables, result.Assertions, result.Derivations)
	printCycles(formatter, result.Cycles)
	return nil
}

func printCycles(formatter *OutputFormatter, cycles []depgraph.CycleWarning) {
	for _, c := range cycles {
		color := "dark_gray"
		if c.Level == depgraph.LevelWarning {
			color = "yellow"
		}
		formatter.Printf("  [%s]%s:[reset] %s\n", color, c.Level, c.Message)
	}
}

// outputValidationErrors outputs every validation problem of a rule set.
func outputValidationErrors(formatter *OutputFormatter, le *LoadError) error {
	errs := le.Details
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		result := ValidationResult{Valid: false, Errors: errs}
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	formatter.Printf("[red]✗[reset] Validation failed\n\n")
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}
