package engine

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/caseconf/internal/ir"
)

// testLogger returns a debug-level logger writing to buf.
func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func optionVar(name string, options ...string) ir.VariableDef {
	return ir.VariableDef{Name: name, Kind: ir.VarOption, Options: options}
}

func acceptRule(id string, vars []string, msg string, patterns ...string) ir.AssertionDef {
	return ir.AssertionDef{
		ID:      id,
		Vars:    vars,
		Clauses: []ir.ClauseDef{{Kind: ir.ClauseAccept, Patterns: patterns, Message: msg}},
	}
}

func rejectRule(id string, vars []string, msg string, patterns ...string) ir.AssertionDef {
	return ir.AssertionDef{
		ID:      id,
		Vars:    vars,
		Clauses: []ir.ClauseDef{{Kind: ir.ClauseReject, Patterns: patterns, Message: msg}},
	}
}

// newSession builds a session from rs with a fixed ID and quiet logging.
func newSession(t *testing.T, rs *ir.RuleSet, opts ...SessionOption) *Session {
	t.Helper()
	var buf bytes.Buffer
	opts = append([]SessionOption{WithIDGenerator(NewFixedGenerator("session-test")), WithLogger(testLogger(&buf))}, opts...)
	s, err := FromRuleSet(rs, opts...)
	require.NoError(t, err)
	return s
}

// compsetRules is the INITTIME / physics / COMPSET rule set.
func compsetRules() *ir.RuleSet {
	return &ir.RuleSet{
		Name: "compset",
		Variables: []ir.VariableDef{
			optionVar("INITTIME", "1850", "2000", "HIST"),
			optionVar("COMP_ATM", "cam", "datm"),
			{Name: "COMP_ATM_PHYS", Kind: ir.VarOption, NeverUnset: true},
			{Name: "COMPSET", Kind: ir.VarOption, NeverUnset: true},
		},
		Derivations: []ir.DerivationDef{
			{
				Target: "COMP_ATM_PHYS",
				From:   []string{"COMP_ATM"},
				Table: map[string]ir.TableEntry{
					"cam":  {Options: []string{"CAM60", "CAM50", "CAM40"}},
					"datm": {Options: []string{"JRA", "CORE2"}},
				},
			},
			{
				Target:   "COMPSET",
				From:     []string{"INITTIME", "COMP_ATM_PHYS"},
				Template: "{INITTIME}_{COMP_ATM_PHYS}",
			},
		},
	}
}

// pairRules relates A and B: when A is x, B must match y.*.
func pairRules() *ir.RuleSet {
	return &ir.RuleSet{
		Name: "pair",
		Variables: []ir.VariableDef{
			optionVar("A", "x", "w"),
			optionVar("B", "z", "y1", "y2"),
		},
		Assertions: []ir.AssertionDef{
			acceptRule("a_x_b_y", []string{"A", "B"}, "B must match y.* when A is x", "x", "y.*"),
		},
	}
}

func mustValue(t *testing.T, s *Session, name string) ir.Value {
	t.Helper()
	v, err := s.Value(name)
	require.NoError(t, err)
	return v
}

func optionValues(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

// requireMembership checks that every variable's value is unset or made of
// current options.
func requireMembership(t *testing.T, s *Session) {
	t.Helper()
	for _, vs := range s.Snapshot() {
		if vs.Kind == ir.VarScalar || vs.Value.IsEmpty() {
			continue
		}
		current := make(map[string]bool)
		for _, o := range vs.Options {
			current[o.Value] = true
		}
		for _, m := range vs.Value.Members() {
			require.True(t, current[m], "%s holds %q which is not a current option", vs.Name, m)
		}
	}
}

// requireSound checks that every selected option is currently valid.
func requireSound(t *testing.T, s *Session) {
	t.Helper()
	for _, vs := range s.Snapshot() {
		for _, m := range vs.Value.Members() {
			for _, o := range vs.Options {
				if o.Value == m {
					require.True(t, o.Valid, "%s holds invalid option %q (%s)", vs.Name, m, o.Message)
				}
			}
		}
	}
}

type recordingJournal struct {
	records []ir.ChangeRecord
}

func (j *recordingJournal) RecordChange(_ context.Context, rec ir.ChangeRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func nilBuffer() *bytes.Buffer { return &bytes.Buffer{} }
