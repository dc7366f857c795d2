package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/caseconf/internal/ir"
	"github.com/roach88/caseconf/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Session  string // optional - only this session
	Variable string // optional - only changes of this variable
	Kind     string // optional - value, options or validity
	Cause    string // optional - e.g. write, derived, invalidated
}

// SessionTrace is one session with its journaled changes.
type SessionTrace struct {
	Session ir.SessionRecord  `json:"session"`
	Changes []ir.ChangeRecord `json:"changes"`
	Stats   TraceStats        `json:"stats"`
}

// TraceStats holds summary statistics for one session.
type TraceStats struct {
	Total    int `json:"total"`
	Values   int `json:"values"`
	Options  int `json:"options"`
	Validity int `json:"validity"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <journal>",
		Short: "Print journaled changes",
		Long: `Print the changes recorded in a journal written by "caseconf run
--journal" or "caseconf serve --journal", in commit order.

Each line shows the logical sequence number, the variable, the kind of
change (value, options or validity), the old and new value, and the cause.

Examples:
  caseconf trace ./trace.db
  caseconf trace ./trace.db --session 0190c3a2-...
  caseconf trace ./trace.db --variable COMPSET --format json
  caseconf trace ./trace.db --kind value --cause invalidated`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "only show this session")
	cmd.Flags().StringVar(&opts.Variable, "variable", "", "only show changes of this variable")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show changes of this kind (value|options|validity)")
	cmd.Flags().StringVar(&opts.Cause, "cause", "", "only show changes with this cause")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	switch ir.ChangeKind(opts.Kind) {
	case "", ir.ChangeValue, ir.ChangeOptions, ir.ChangeValidity:
	default:
		msg := fmt.Sprintf("invalid kind %q: must be value, options or validity", opts.Kind)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	// store.Open would create a missing file.
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("failed to open journal: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	traces, err := readTraces(ctx, st, opts)
	if errors.Is(err, store.ErrSessionNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("session %q not found", opts.Session), nil)
		return WrapExitError(ExitFailure, "session not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(traces)
	}
	if len(traces) == 0 {
		fmt.Fprintln(formatter.Writer, "No sessions in journal.")
		return nil
	}
	for i, t := range traces {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		printTrace(formatter, t)
	}
	return nil
}

func readTraces(ctx context.Context, st *store.Store, opts *TraceOptions) ([]SessionTrace, error) {
	var sessions []ir.SessionRecord
	if opts.Session != "" {
		rec, err := st.ReadSession(ctx, opts.Session)
		if err != nil {
			return nil, err
		}
		sessions = []ir.SessionRecord{rec}
	} else {
		all, err := st.ReadSessions(ctx)
		if err != nil {
			return nil, err
		}
		sessions = all
	}

	traces := make([]SessionTrace, 0, len(sessions))
	for _, rec := range sessions {
		changes, err := st.QueryChanges(ctx, store.ChangeFilter{
			SessionID: rec.ID,
			Variable:  opts.Variable,
			Kind:      ir.ChangeKind(opts.Kind),
			Cause:     opts.Cause,
		})
		if err != nil {
			return nil, err
		}
		traces = append(traces, SessionTrace{Session: rec, Changes: changes, Stats: traceStats(changes)})
	}
	return traces, nil
}

func traceStats(changes []ir.ChangeRecord) TraceStats {
	stats := TraceStats{Total: len(changes)}
	for _, c := range changes {
		switch c.Kind {
		case ir.ChangeValue:
			stats.Values++
		case ir.ChangeOptions:
			stats.Options++
		case ir.ChangeValidity:
			stats.Validity++
		}
	}
	return stats
}

func printTrace(formatter *OutputFormatter, t SessionTrace) {
	hash := t.Session.RulesHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	formatter.Printf("[bold]session %s[reset] (%s, rules %s)\n", t.Session.ID, t.Session.RulesName, hash)

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	for _, c := range t.Changes {
		line := fmt.Sprintf("  #%d\t%s\t%s\t%s -> %s\t%s", c.Seq, c.Variable, c.Kind, c.Old, c.New, c.Cause)
		if c.Detail != "" {
			line += " (" + c.Detail + ")"
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()

	fmt.Fprintf(formatter.Writer, "  %d change(s): %d value, %d options, %d validity\n",
		t.Stats.Total, t.Stats.Values, t.Stats.Options, t.Stats.Validity)
}
