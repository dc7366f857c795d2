package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// OptionsOptions holds flags for the options command.
type OptionsOptions struct {
	*RootOptions
	Sets []string // NAME=VALUE writes, applied in order
	Vars []string // limit output to these variables
}

// OptionsResult is the JSON form of the options command.
type OptionsResult struct {
	Rules     string                        `json:"rules"`
	Variables []engine.VariableState        `json:"variables"`
	Warnings  []engine.NoValidOptionWarning `json:"warnings,omitempty"`
}

// NewOptionsCommand creates the options command.
func NewOptionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "options <rules>",
		Short: "Show option tables after a sequence of writes",
		Long: `Build a session from a rule set, apply --set writes in order and print
every variable's value and option list. Invalid options carry the message
of the assertion that rejects them.

Set variables take "(a, b)" or "a%b"; an empty value clears a variable.

Examples:
  caseconf options ./rules
  caseconf options ./rules --set COMP_ATM=cam --set INITTIME=HIST
  caseconf options ./rules --set COMP_ATM=cam --var COMPSET --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptions(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "write NAME=VALUE before printing (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Vars, "var", nil, "only print these variables")

	return cmd
}

func runOptions(opts *OptionsOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	rs, err := LoadRules(path, logger)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	s, err := BuildSession(context.Background(), rs, logger, nil)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	for _, assignment := range opts.Sets {
		if err := applySet(s, assignment); err != nil {
			msg := fmt.Sprintf("--set %s: %v", assignment, err)
			_ = formatter.Error(ErrCodeRejectedWrite, msg, nil)
			return WrapExitError(ExitFailure, ErrCodeRejectedWrite, err)
		}
		formatter.VerboseLog("Applied %s (seq %d)", assignment, s.Seq())
	}

	states, err := selectStates(s, opts.Vars)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
	}

	if formatter.IsJSON() {
		return formatter.Success(OptionsResult{Rules: rs.Name, Variables: states, Warnings: s.Warnings()})
	}
	for _, vs := range states {
		printVariable(formatter, vs)
	}
	for _, w := range s.Warnings() {
		formatter.Printf("[yellow]warning:[reset] %s\n", w.Error())
	}
	return nil
}

// applySet parses NAME=VALUE and writes it.
func applySet(s *engine.Session, assignment string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected NAME=VALUE")
	}
	vs, err := s.Variable(name)
	if err != nil {
		return err
	}
	return s.SetValue(name, ir.ParseValue(value, vs.Kind == ir.VarMulti))
}

func selectStates(s *engine.Session, names []string) ([]engine.VariableState, error) {
	if len(names) == 0 {
		return s.Snapshot(), nil
	}
	out := make([]engine.VariableState, 0, len(names))
	for _, name := range names {
		vs, err := s.Variable(name)
		if err != nil {
			return nil, err
		}
		out = append(out, vs)
	}
	return out, nil
}

// printVariable writes one variable's header and option table.
func printVariable(formatter *OutputFormatter, vs engine.VariableState) {
	flags := string(vs.Kind)
	if vs.Derived {
		flags += ", derived"
	}
	if vs.NeverUnset {
		flags += ", never_unset"
	}
	formatter.Printf("[bold]%s[reset] [dark_gray](%s)[reset] = %s\n", vs.Name, flags, vs.Value)

	if !vs.Kind.Optioned() {
		return
	}
	if len(vs.Options) == 0 {
		formatter.Printf("  [dark_gray](no options)[reset]\n")
		return
	}
	for _, o := range vs.Options {
		switch {
		case vs.Value.Has(o.Value):
			formatter.Printf("  [green]*[reset] %s", o.Value)
		case o.Valid:
			formatter.Printf("  [green]+[reset] %s", o.Value)
		default:
			formatter.Printf("  [red]-[reset] %s", o.Value)
		}
		if o.Tooltip != "" {
			formatter.Printf(" [dark_gray](%s)[reset]", o.Tooltip)
		}
		if !o.Valid && o.Message != "" {
			formatter.Printf(" [red]%s[reset]", o.Message)
		}
		fmt.Fprintln(formatter.Writer)
	}
}
