package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/caseconf/internal/ir"
)

// ============================================================================
// Derived options: INITTIME + physics -> COMPSET
// ============================================================================

func TestSession_CompsetFollowsInducers(t *testing.T) {
	s := newSession(t, compsetRules())

	assert.True(t, mustValue(t, s, "COMPSET").IsUnset())
	opts, err := s.Options("COMPSET")
	require.NoError(t, err)
	assert.Empty(t, opts)

	require.NoError(t, s.SetString("INITTIME", "2000"))
	assert.True(t, mustValue(t, s, "COMPSET").IsUnset(), "physics still unset")

	require.NoError(t, s.SetString("COMP_ATM", "cam"))
	require.NoError(t, s.SetString("COMP_ATM_PHYS", "CAM50"))
	assert.Equal(t, "2000_CAM50", mustValue(t, s, "COMPSET").String())

	require.NoError(t, s.SetString("COMP_ATM_PHYS", "CAM60"))
	assert.Equal(t, "2000_CAM60", mustValue(t, s, "COMPSET").String())

	opts, err = s.Options("COMPSET")
	require.NoError(t, err)
	assert.Equal(t, []string{"2000_CAM60"}, optionValues(opts))
	requireMembership(t, s)
}

func TestSession_NeverUnsetPicksFirstDerivedOption(t *testing.T) {
	s := newSession(t, compsetRules())

	require.NoError(t, s.SetString("COMP_ATM", "datm"))
	assert.Equal(t, "JRA", mustValue(t, s, "COMP_ATM_PHYS").String())

	require.NoError(t, s.SetString("COMP_ATM", "cam"))
	assert.Equal(t, "CAM60", mustValue(t, s, "COMP_ATM_PHYS").String())
}

func TestSession_UnsetInducerForcesEmptyOptions(t *testing.T) {
	s := newSession(t, compsetRules())
	require.NoError(t, s.SetString("INITTIME", "HIST"))
	require.NoError(t, s.SetString("COMP_ATM", "cam"))
	require.Equal(t, "HIST_CAM60", mustValue(t, s, "COMPSET").String())

	require.NoError(t, s.Clear("INITTIME"))

	vs, err := s.Variable("COMPSET")
	require.NoError(t, err)
	assert.Empty(t, vs.Options)
	assert.True(t, vs.Value.IsUnset())
	assert.Equal(t, StateUnset, vs.State)
	assert.Empty(t, s.Warnings(), "an empty option list is not a warning")
}

func TestSession_DerivedVariableIntrospection(t *testing.T) {
	s := newSession(t, compsetRules())

	inducers, err := s.Inducers("COMPSET")
	require.NoError(t, err)
	assert.Equal(t, []string{"INITTIME", "COMP_ATM_PHYS"}, inducers)

	observers, err := s.Observers("COMP_ATM")
	require.NoError(t, err)
	assert.Equal(t, []string{"COMP_ATM_PHYS"}, observers)

	vs, err := s.Variable("COMPSET")
	require.NoError(t, err)
	assert.True(t, vs.Derived)
}

// ============================================================================
// Assertions: if A is x then B must match y.*
// ============================================================================

func TestSession_AssertionRejectsInvalidWrite(t *testing.T) {
	s := newSession(t, pairRules())

	require.NoError(t, s.SetString("A", "x"))

	err := s.SetString("B", "z")
	require.Error(t, err)
	assert.True(t, IsInvalidValue(err))
	var ive *InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "B", ive.Variable)
	assert.Equal(t, "B must match y.* when A is x", ive.Reason)
	assert.True(t, mustValue(t, s, "B").IsUnset(), "rejected write keeps the prior value")

	require.NoError(t, s.SetString("B", "y1"))
	assert.Equal(t, "y1", mustValue(t, s, "B").String())
	requireSound(t, s)
}

func TestSession_OptionStatusesCarryMessages(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("A", "x"))

	opts, err := s.Options("B")
	require.NoError(t, err)
	assert.Equal(t, []Option{
		{Value: "z", Valid: false, Message: "B must match y.* when A is x"},
		{Value: "y1", Valid: true},
		{Value: "y2", Valid: true},
	}, opts)

	valid, err := s.ValidOptions("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"y1", "y2"}, valid)

	first, ok, err := s.FirstValidOption("B")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "y1", first)
}

func TestSession_SiblingChangeClearsInvalidatedSelection(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("B", "z"))

	// With B=z, choosing A=x would violate the assertion.
	err := s.SetString("A", "x")
	require.True(t, IsInvalidValue(err))

	require.NoError(t, s.SetString("B", "y2"))
	require.NoError(t, s.SetString("A", "x"))

	// Replacing B's options drops y2; B is cleared, A stays valid.
	require.NoError(t, s.SetOptions("B", []string{"z", "y9"}, nil))
	assert.True(t, mustValue(t, s, "B").IsUnset())
	assert.Equal(t, "x", mustValue(t, s, "A").String())
	requireMembership(t, s)
	requireSound(t, s)
}

func TestSession_NotAnOption(t *testing.T) {
	s := newSession(t, pairRules())
	err := s.SetString("A", "q")
	var ive *InvalidValueError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "not a current option", ive.Reason)
}

func TestSession_CompatibleOptions(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("A", "x"))

	got, err := s.CompatibleOptions("B", []string{"z", "y1", "yes", "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"y1", "yes"}, got)
}

// ============================================================================
// Properties
// ============================================================================

func TestSession_UpdateOptionsValidityIsIdempotent(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("A", "x"))

	var events []ChangeEvent
	s.ObserveAll(func(ev ChangeEvent) { events = append(events, ev) })

	before, err := s.Options("B")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		changed, err := s.UpdateOptionsValidity("B")
		require.NoError(t, err)
		assert.False(t, changed)
	}

	after, err := s.Options("B")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, events, "no downstream notification")
}

func TestSession_CycleTerminates(t *testing.T) {
	rs := &ir.RuleSet{
		Variables: []ir.VariableDef{
			{Name: "A", Kind: ir.VarOption, NeverUnset: true, Options: []string{"a1", "a2"}},
			{Name: "B", Kind: ir.VarOption, NeverUnset: true, Options: []string{"b1", "b2"}},
			optionVar("C", "c1", "c2"),
		},
		Assertions: []ir.AssertionDef{
			rejectRule("ab", []string{"A", "B"}, "a1 excludes b1", "a1", "b1"),
			rejectRule("bc", []string{"B", "C"}, "b2 excludes c1", "b2", "c1"),
			rejectRule("ca", []string{"C", "A"}, "c2 excludes a2", "c2", "a2"),
		},
	}
	// Each write of A flips the validity of B and of C, and each of those
	// wakes the other two around the cycle once: six recomputations.
	s := newSession(t, rs, WithMaxSteps(6))

	require.Len(t, s.Graph().Cycles(), 1)
	require.Equal(t, "a1", mustValue(t, s, "A").String())
	require.Equal(t, "b2", mustValue(t, s, "B").String())

	for _, value := range []string{"a2", "a1", "a2"} {
		kinds := map[ir.ChangeKind][]string{}
		cancel := s.ObserveAll(func(ev ChangeEvent) {
			kinds[ev.Kind] = append(kinds[ev.Kind], ev.Variable)
		})

		require.NoError(t, s.SetString("A", value), "cascade must settle within the step quota")
		cancel()

		assert.Equal(t, []string{"A"}, kinds[ir.ChangeValue], "write of %s", value)
		assert.Equal(t, []string{"B", "C"}, kinds[ir.ChangeValidity], "write of %s", value)
		requireMembership(t, s)
		requireSound(t, s)
	}

	assert.Equal(t, "b2", mustValue(t, s, "B").String())
	assert.True(t, mustValue(t, s, "C").IsUnset())
	opts, err := s.Options("C")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, []bool{opts[0].Valid, opts[1].Valid},
		"c1 is excluded by B, c2 by A")
}

func TestSession_NoValidOptionWarning(t *testing.T) {
	rs := &ir.RuleSet{
		Variables: []ir.VariableDef{
			optionVar("A", "x"),
			{Name: "B", Kind: ir.VarOption, NeverUnset: true},
		},
		Assertions: []ir.AssertionDef{
			acceptRule("a_x_b_y", []string{"A", "B"}, "B must match y.* when A is x", "x", "y.*"),
		},
	}
	s := newSession(t, rs)
	require.NoError(t, s.SetString("A", "x"))

	require.NoError(t, s.SetOptions("B", []string{"z", "w"}, nil))
	assert.True(t, mustValue(t, s, "B").IsUnset())

	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "B", warnings[0].Variable)
	assert.Equal(t, 2, warnings[0].Options)

	require.NoError(t, s.SetOptions("B", []string{"z", "y7"}, nil))
	assert.Equal(t, "y7", mustValue(t, s, "B").String())
}

func TestSession_NeverUnsetConvergesAfterOptionReplacement(t *testing.T) {
	rs := &ir.RuleSet{
		Variables: []ir.VariableDef{
			optionVar("A", "x", "w"),
			{Name: "B", Kind: ir.VarOption, NeverUnset: true, Options: []string{"y1", "y2", "z"}},
		},
		Assertions: pairRules().Assertions,
	}
	s := newSession(t, rs)
	assert.Equal(t, "y1", mustValue(t, s, "B").String())
	require.NoError(t, s.SetString("A", "x"))

	require.NoError(t, s.SetOptions("B", []string{"z", "y9"}, nil))
	assert.Equal(t, "y9", mustValue(t, s, "B").String())

	require.NoError(t, s.SetOptions("B", nil, nil))
	vs, err := s.Variable("B")
	require.NoError(t, err)
	assert.Empty(t, vs.Options)
	assert.True(t, vs.Value.IsUnset())
}

func TestSession_NeverUnsetReselectsAfterClear(t *testing.T) {
	rs := &ir.RuleSet{
		Variables: []ir.VariableDef{
			{Name: "B", Kind: ir.VarOption, NeverUnset: true, Options: []string{"y1", "y2"}},
		},
	}
	s := newSession(t, rs)
	require.NoError(t, s.SetString("B", "y2"))
	require.NoError(t, s.Clear("B"))
	assert.Equal(t, "y1", mustValue(t, s, "B").String())
}

// ============================================================================
// Set-valued variables
// ============================================================================

func multiRules() *ir.RuleSet {
	return &ir.RuleSet{
		Variables: []ir.VariableDef{
			{Name: "COMPONENTS", Kind: ir.VarMulti, Options: []string{"cam", "clm", "cice", "mom"}},
			optionVar("GRID", "f09", "T62"),
		},
		Assertions: []ir.AssertionDef{
			rejectRule("t62_no_cam", []string{"GRID", "COMPONENTS"}, "T62 has no atmosphere", "T62", "cam"),
		},
	}
}

func TestSession_EmptySetSentinel(t *testing.T) {
	s := newSession(t, multiRules())

	v := mustValue(t, s, "COMPONENTS")
	assert.True(t, v.Equal(ir.EmptySet()))
	assert.Equal(t, "()", v.String())

	require.NoError(t, s.SetValue("COMPONENTS", ir.Set()))
	v = mustValue(t, s, "COMPONENTS")
	assert.True(t, v.Equal(ir.EmptySet()))
	assert.Empty(t, v.Members(), "never a one-element set holding an empty string")

	require.NoError(t, s.SetValue("COMPONENTS", ir.Set("")))
	assert.Empty(t, mustValue(t, s, "COMPONENTS").Members())
}

func TestSession_ToggleRoutesThroughWholeValue(t *testing.T) {
	s := newSession(t, multiRules())

	var events []ChangeEvent
	_, err := s.Observe("COMPONENTS", func(ev ChangeEvent) { events = append(events, ev) })
	require.NoError(t, err)

	require.NoError(t, s.ToggleMember("COMPONENTS", "cam"))
	require.NoError(t, s.AddMember("COMPONENTS", "mom"))
	assert.Equal(t, []string{"cam", "mom"}, mustValue(t, s, "COMPONENTS").Members())

	require.NoError(t, s.RemoveMember("COMPONENTS", "cam"))
	require.NoError(t, s.ToggleMember("COMPONENTS", "mom"))
	assert.True(t, mustValue(t, s, "COMPONENTS").Equal(ir.EmptySet()))

	require.Len(t, events, 4)
	assert.True(t, events[1].Old.Equal(ir.Set("cam")))
	assert.True(t, events[1].New.Equal(ir.Set("cam", "mom")))
}

func TestSession_SetMembersMustAllBeValid(t *testing.T) {
	s := newSession(t, multiRules())
	require.NoError(t, s.SetString("GRID", "T62"))

	err := s.SetValue("COMPONENTS", ir.Set("clm", "cam"))
	require.True(t, IsInvalidValue(err))
	assert.Contains(t, err.Error(), "T62 has no atmosphere")

	require.NoError(t, s.SetValue("COMPONENTS", ir.Set("clm", "mom")))
	err = s.ToggleMember("COMPONENTS", "cam")
	require.True(t, IsInvalidValue(err))
	assert.Equal(t, []string{"clm", "mom"}, mustValue(t, s, "COMPONENTS").Members())
}

func TestSession_SetValueSeenJoinedByAssertions(t *testing.T) {
	s := newSession(t, multiRules())
	require.NoError(t, s.SetValue("COMPONENTS", ir.Set("clm", "cam")))

	opts, err := s.Options("GRID")
	require.NoError(t, err)
	assert.Equal(t, []Option{
		{Value: "f09", Valid: true},
		{Value: "T62", Valid: false, Message: "T62 has no atmosphere"},
	}, opts)
}

func TestSession_OptionReplacementRevalidatesSet(t *testing.T) {
	s := newSession(t, multiRules())
	require.NoError(t, s.SetValue("COMPONENTS", ir.Set("clm", "mom")))
	require.NoError(t, s.SetString("GRID", "T62"))

	// Swapping GRID's options clears GRID, re-validating cam.
	require.NoError(t, s.SetOptions("GRID", []string{"f09"}, nil))
	opts, err := s.Options("COMPONENTS")
	require.NoError(t, err)
	for _, o := range opts {
		assert.True(t, o.Valid, o.Value)
	}
	assert.Equal(t, []string{"clm", "mom"}, mustValue(t, s, "COMPONENTS").Members())
}

func TestSession_MemberEditNeedsSet(t *testing.T) {
	s := newSession(t, pairRules())
	err := s.ToggleMember("A", "x")
	require.True(t, IsInvalidValue(err))

	// the aborted change does not linger
	require.NoError(t, s.SetString("A", "x"))
}

// ============================================================================
// Free-form scalars
// ============================================================================

func scalarRules() *ir.RuleSet {
	return &ir.RuleSet{
		Variables: []ir.VariableDef{
			{Name: "NTASKS", Kind: ir.VarScalar, Type: ir.TypeInt},
			{Name: "CASE", Kind: ir.VarScalar},
			optionVar("MACH", "derecho", "laptop"),
		},
		Assertions: []ir.AssertionDef{
			rejectRule("laptop_small", []string{"MACH", "NTASKS"}, "laptop runs at most 9 tasks", "laptop", "^[0-9]{2,}$"),
		},
	}
}

func TestSession_TypedScalar(t *testing.T) {
	s := newSession(t, scalarRules())

	err := s.SetString("NTASKS", "many")
	require.True(t, IsInvalidValue(err))
	assert.Contains(t, err.Error(), "not a valid int")

	require.NoError(t, s.SetString("NTASKS", "128"))
	require.NoError(t, s.SetString("CASE", "b.e20.test"))
	assert.Equal(t, StateSelected, mustState(t, s, "CASE"))
}

func TestSession_ScalarCheckedAgainstAssertions(t *testing.T) {
	s := newSession(t, scalarRules())
	require.NoError(t, s.SetString("MACH", "laptop"))

	err := s.SetString("NTASKS", "64")
	require.True(t, IsInvalidValue(err))
	require.NoError(t, s.SetString("NTASKS", "4"))
}

func TestSession_ScalarSurvivesSiblingOptionReplacement(t *testing.T) {
	s := newSession(t, scalarRules())
	require.NoError(t, s.SetString("MACH", "derecho"))
	require.NoError(t, s.SetString("NTASKS", "64"))

	// laptop is invalid while NTASKS is 64
	require.True(t, IsInvalidValue(s.SetString("MACH", "laptop")))

	// dropping derecho clears MACH; NTASKS stays valid
	require.NoError(t, s.SetOptions("MACH", []string{"laptop"}, nil))
	assert.True(t, mustValue(t, s, "MACH").IsUnset())
	assert.Equal(t, "64", mustValue(t, s, "NTASKS").String())
}

func mustState(t *testing.T, s *Session, name string) State {
	t.Helper()
	vs, err := s.Variable(name)
	require.NoError(t, err)
	return vs.State
}

func TestSession_OptionLookup(t *testing.T) {
	s := newSession(t, pairRules())
	require.NoError(t, s.SetString("A", "x"))

	o, ok, err := s.Option("B", "z")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, o.Valid)
	assert.Equal(t, "B must match y.* when A is x", o.Message)

	_, ok, err = s.Option("B", "q")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Option("Q", "q")
	assert.True(t, IsNotFound(err))
}
