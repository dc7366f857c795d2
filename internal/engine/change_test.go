package engine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caseconf/internal/ir"
)

func joinedRules() *ir.RuleSet {
	return &ir.RuleSet{
		Variables: []ir.VariableDef{
			optionVar("A", "a1", "a2"),
			optionVar("C", "c1", "c2"),
			{Name: "D", Kind: ir.VarOption, NeverUnset: true},
		},
		Derivations: []ir.DerivationDef{
			{Target: "D", From: []string{"A", "C"}, Template: "{A}-{C}"},
		},
	}
}

// ============================================================================
// Two-phase changes
// ============================================================================

func TestChange_IntentPhaseDefersDerivation(t *testing.T) {
	var logs bytes.Buffer
	s, err := FromRuleSet(joinedRules(),
		WithIDGenerator(NewFixedGenerator("session-test")),
		WithLogger(testLogger(&logs)))
	require.NoError(t, err)

	require.NoError(t, s.SetString("A", "a1"))
	require.NoError(t, s.SetString("C", "c1"))
	require.Equal(t, "a1-c1", mustValue(t, s, "D").String())

	c, err := s.BeginChange("A")
	require.NoError(t, err)
	assert.Equal(t, "A", c.Variable())

	require.NoError(t, s.SetString("C", "c2"))
	assert.Equal(t, "a1-c1", mustValue(t, s, "D").String(), "A is mid-change")
	assert.Contains(t, logs.String(), "update of D ignored: change of A not committed")

	require.NoError(t, c.Commit(ir.Scalar("a2")))
	assert.Equal(t, "a2-c2", mustValue(t, s, "D").String())
}

func TestChange_DeferredDerivationResolvesOnClose(t *testing.T) {
	tests := []struct {
		name  string
		close func(*Change) error
	}{
		{"abort", func(c *Change) error { c.Abort(); return nil }},
		{"commit same value", func(c *Change) error { return c.Commit(ir.Scalar("a1")) }},
		{"rejected commit", func(c *Change) error {
			if err := c.Commit(ir.Scalar("a9")); !IsInvalidValue(err) {
				return err
			}
			return nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, joinedRules())
			require.NoError(t, s.SetString("A", "a1"))
			require.NoError(t, s.SetString("C", "c1"))

			c, err := s.BeginChange("A")
			require.NoError(t, err)
			require.NoError(t, s.SetString("C", "c2"))
			require.Equal(t, "a1-c1", mustValue(t, s, "D").String())

			var events []ChangeEvent
			s.ObserveAll(func(ev ChangeEvent) { events = append(events, ev) })

			require.NoError(t, tt.close(c))
			assert.Equal(t, "a1", mustValue(t, s, "A").String())
			assert.Equal(t, "a1-c2", mustValue(t, s, "D").String())
			assert.NotEmpty(t, events)
		})
	}
}

func TestChange_StaleAfterReset(t *testing.T) {
	s := newSession(t, pairRules())

	old, err := s.BeginChange("A")
	require.NoError(t, err)

	s.Reset()
	require.NoError(t, s.Load(pairRules()))
	require.NoError(t, s.Build())

	c, err := s.BeginChange("A")
	require.NoError(t, err)

	assert.ErrorIs(t, old.Commit(ir.Scalar("w")), ErrChangeClosed)
	old.Abort()
	assert.True(t, mustValue(t, s, "A").IsEmpty())

	// the new session's change is still open
	assert.ErrorIs(t, s.SetString("A", "x"), ErrChangePending)
	require.NoError(t, c.Commit(ir.Scalar("x")))
	assert.Equal(t, "x", mustValue(t, s, "A").String())
}

func TestChange_RecomputeIgnoresPendingTrigger(t *testing.T) {
	s := newSession(t, pairRules())

	c, err := s.BeginChange("A")
	require.NoError(t, err)
	changed, err := s.Recompute("B", "A")
	require.NoError(t, err)
	assert.False(t, changed)
	c.Abort()

	_, err = s.Recompute("B", "NOPE")
	assert.True(t, IsNotFound(err))
}

func TestChange_OnePendingChangePerVariable(t *testing.T) {
	s := newSession(t, pairRules())

	c, err := s.BeginChange("A")
	require.NoError(t, err)

	_, err = s.BeginChange("A")
	assert.ErrorIs(t, err, ErrChangePending)
	assert.ErrorIs(t, s.SetString("A", "x"), ErrChangePending)

	// other variables are unaffected
	require.NoError(t, s.SetString("B", "y1"))

	require.NoError(t, c.Commit(ir.Scalar("x")))
	assert.ErrorIs(t, c.Commit(ir.Scalar("w")), ErrChangeClosed)
	assert.Equal(t, "x", mustValue(t, s, "A").String())
}

func TestChange_AbortLeavesValue(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("A", "w"))

	c, err := s.BeginChange("A")
	require.NoError(t, err)
	c.Abort()
	c.Abort()

	assert.Equal(t, "w", mustValue(t, s, "A").String())
	assert.ErrorIs(t, c.Commit(ir.Scalar("x")), ErrChangeClosed)

	c2, err := s.BeginChange("A")
	require.NoError(t, err)
	require.NoError(t, c2.Commit(ir.Scalar("x")))
}

func TestChange_RejectedCommitClosesChange(t *testing.T) {
	s := newSession(t, pairRules())

	c, err := s.BeginChange("A")
	require.NoError(t, err)
	require.True(t, IsInvalidValue(c.Commit(ir.Scalar("nope"))))

	// the variable is free again
	require.NoError(t, s.SetString("A", "x"))
}

func TestChange_UnknownVariable(t *testing.T) {
	s := newSession(t, compsetRules())

	_, err := s.BeginChange("INITIME")
	require.True(t, IsNotFound(err))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "INITTIME", nf.Suggestion)

	_, err = s.Value("COMPLETELY_DIFFERENT")
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestion)
}

func TestChange_SetOptionsErrors(t *testing.T) {
	s := newSession(t, scalarRules())

	assert.ErrorIs(t, s.SetOptions("CASE", []string{"a"}, nil), ErrNotOptioned)

	err := s.SetOptions("MACH", []string{"a"}, []string{"tip a", "tip b"})
	assert.True(t, IsInvalidValue(err))
}

func TestChange_TooltipsTravelWithOptions(t *testing.T) {
	s := newSession(t, pairRules())

	require.NoError(t, s.SetOptions("B", []string{"y1", "", "y1", "y2"}, []string{"first", "blank", "dup"}))
	opts, err := s.Options("B")
	require.NoError(t, err)
	assert.Equal(t, []Option{
		{Value: "y1", Valid: true, Tooltip: "first"},
		{Value: "y2", Valid: true},
	}, opts)
}

// ============================================================================
// Observers and journal
// ============================================================================

func TestObserve_CommittedEventsInSeqOrder(t *testing.T) {
	s := newSession(t, compsetRules())

	var events []ChangeEvent
	var seen []string
	s.ObserveAll(func(ev ChangeEvent) {
		events = append(events, ev)
		// callbacks may read the session
		v, err := s.Value(ev.Variable)
		require.NoError(t, err)
		seen = append(seen, v.String())
	})

	c, err := s.BeginChange("INITTIME")
	require.NoError(t, err)
	assert.Empty(t, events, "nothing is observable during the intent phase")

	require.NoError(t, c.Commit(ir.Scalar("2000")))
	require.NoError(t, s.SetString("COMP_ATM", "cam"))

	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
	assert.Equal(t, "INITTIME", events[0].Variable)
	assert.Equal(t, ir.ChangeValue, events[0].Kind)
	assert.Equal(t, "write", events[0].Cause)

	last := events[len(events)-1]
	assert.Equal(t, "COMPSET", last.Variable)
	assert.Equal(t, "2000_CAM60", last.New.String())
	assert.Equal(t, "2000_CAM60", seen[len(seen)-1])
	assert.Equal(t, last.Seq, s.Seq())
}

func TestObserve_CancelStopsDelivery(t *testing.T) {
	s := newSession(t, pairRules())

	count := 0
	cancel, err := s.Observe("A", func(ChangeEvent) { count++ })
	require.NoError(t, err)

	require.NoError(t, s.SetString("A", "x"))
	assert.Equal(t, 1, count)

	cancel()
	require.NoError(t, s.SetString("A", "w"))
	assert.Equal(t, 1, count)

	_, err = s.Observe("NOPE", func(ChangeEvent) {})
	assert.True(t, IsNotFound(err))
}

func TestJournal_RecordsEveryEvent(t *testing.T) {
	j := &recordingJournal{}
	s := newSession(t, pairRules(), WithJournal(j))

	setup := len(j.records)
	require.NotZero(t, setup, "initial options are journaled")

	require.NoError(t, s.SetString("A", "x"))
	require.Greater(t, len(j.records), setup)

	for i, rec := range j.records {
		assert.Equal(t, "session-test", rec.SessionID)
		if i > 0 {
			assert.Greater(t, rec.Seq, j.records[i-1].Seq)
		}
	}
	write := j.records[setup]
	assert.Equal(t, "A", write.Variable)
	assert.Equal(t, ir.ChangeValue, write.Kind)
	assert.Equal(t, "x", write.New.String())
	assert.True(t, write.Old.IsUnset())
}

// ============================================================================
// Cascade quota
// ============================================================================

func TestPropagate_StepQuota(t *testing.T) {
	rs := &ir.RuleSet{
		Variables: []ir.VariableDef{
			optionVar("A", "a1", "a2"),
			optionVar("B", "b1", "b2"),
			optionVar("C", "c1", "c2"),
		},
		Assertions: []ir.AssertionDef{
			rejectRule("ab", []string{"A", "B"}, "a1 excludes b1", "a1", "b1"),
			rejectRule("ac", []string{"A", "C"}, "a1 excludes c1", "a1", "c1"),
		},
	}
	s := newSession(t, rs, WithMaxSteps(1))

	err := s.SetString("A", "a1")
	require.Error(t, err)
	assert.True(t, IsStepsExceeded(err))

	var se *StepsExceededError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "A", se.Origin)
	assert.Equal(t, 1, se.Limit)

	// the write itself stands
	assert.Equal(t, "a1", mustValue(t, s, "A").String())
}

// ============================================================================
// Lifecycle guards
// ============================================================================

func TestSession_OperationsNeedBuild(t *testing.T) {
	s := NewSession(WithLogger(testLogger(&bytes.Buffer{})))
	require.NoError(t, s.Register(optionVar("A", "x")))

	assert.ErrorIs(t, s.SetString("A", "x"), ErrNotBuilt)
	_, err := s.BeginChange("A")
	assert.ErrorIs(t, err, ErrNotBuilt)
	assert.False(t, s.Built())

	require.NoError(t, s.Build())
	assert.True(t, s.Built())
	require.NoError(t, s.SetString("A", "x"))

	err = s.Build()
	assert.True(t, IsConfiguration(err))
}
