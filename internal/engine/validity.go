package engine

import (
	"fmt"
	"strconv"

	"github.com/roach88/caseconf/internal/ir"
)

// Causes attached to change events.
const (
	causeSetup       = "setup"
	causeDefault     = "default"
	causeWrite       = "write"
	causeOptions     = "options"
	causeDerived     = "derived"
	causeInvalidated = "invalidated"
	causeAutoSelect  = "auto-select"
	causeValidity    = "validity"
)

// renderCommitted returns the committed value of name as assertions see it.
func (s *Session) renderCommitted(name string) string {
	v, ok := s.registry.vars[name]
	if !ok {
		return ir.NoneToken
	}
	return v.value.Render()
}

// checkHypothetical evaluates every assertion mentioning v with v holding
// val and all other variables at their committed values. The first
// violation wins.
func (s *Session) checkHypothetical(v *variable, val ir.Value) (string, bool) {
	rendered := val.Render()
	get := func(name string) string {
		if name == v.name() {
			return rendered
		}
		return s.renderCommitted(name)
	}
	for _, a := range s.assertions.AssertionsFor(v.name()) {
		if msg, ok := a.Check(get); !ok {
			return msg, false
		}
	}
	return "", true
}

// evaluate computes the status of every current option of v.
func (s *Session) evaluate(v *variable) []Option {
	out := make([]Option, len(v.options))
	for i, o := range v.options {
		msg, ok := s.checkHypothetical(v, v.hypothetical(o.Value))
		out[i] = Option{Value: o.Value, Valid: ok, Message: msg, Tooltip: o.Tooltip}
	}
	return out
}

// fingerprint hashes v's option list together with the committed values of
// every variable it shares an assertion with.
func (s *Session) fingerprint(v *variable) string {
	siblings := make(map[string]ir.Value)
	for _, name := range s.assertions.Related(v.name()) {
		if sib, ok := s.registry.vars[name]; ok {
			siblings[name] = sib.value
		}
	}
	fp, err := ir.InputsFingerprint(v.optionValues(), siblings)
	if err != nil {
		// Unreachable for string options; fall back to always recomputing.
		s.logger.Error("fingerprint failed", "variable", v.name(), "error", err)
		return ""
	}
	return fp
}

// refreshValidity recomputes the validity of v's options. It reports false
// without touching v when the recomputed statuses equal the stored ones;
// that is what stops cascades, cycles included.
func (s *Session) refreshValidity(v *variable) bool {
	if !v.optioned() {
		return s.recheckScalar(v)
	}
	if v.options == nil {
		return false
	}
	fp := s.fingerprint(v)
	if fp != "" && fp == v.fingerprint {
		return false
	}
	next := s.evaluate(v)
	v.fingerprint = fp
	if sameStatuses(v.options, next) {
		return false
	}
	v.options = next
	s.emit(v, ir.ChangeValidity, v.value, v.value, causeValidity, "")

	if !v.selectionValid() {
		s.assign(v, v.emptyValue(), causeInvalidated)
	}
	if v.neverUnset() && v.value.IsEmpty() {
		s.selectFirstValid(v)
	}
	return true
}

// recheckScalar clears a free-form scalar whose value a sibling change has
// made non-compliant.
func (s *Session) recheckScalar(v *variable) bool {
	if v.value.IsEmpty() {
		return false
	}
	if msg, ok := s.checkHypothetical(v, v.value); !ok {
		s.logger.Debug("scalar invalidated", "variable", v.name(), "reason", msg)
		s.assign(v, ir.Unset(), causeInvalidated)
		return true
	}
	return false
}

// applyOptions replaces v's option list: the value is cleared first, then
// validity is evaluated for the new list, then a never_unset variable picks
// its first valid option. It reports whether options or value changed.
func (s *Session) applyOptions(v *variable, values, tooltips []string, cause string) bool {
	oldValue := v.value
	wasInitialized := v.options != nil
	oldValues := v.optionValues()
	oldTooltips := make([]string, len(v.options))
	for i, o := range v.options {
		oldTooltips[i] = o.Tooltip
	}

	values, tooltips = normalizeOptions(values, tooltips)

	s.assign(v, v.emptyValue(), cause)

	v.options = make([]Option, len(values))
	for i, o := range values {
		v.options[i] = Option{Value: o, Valid: true, Tooltip: tooltipAt(tooltips, i)}
	}
	v.options = s.evaluate(v)
	v.fingerprint = s.fingerprint(v)

	optionsChanged := !wasInitialized || !sameOptions(v.options, oldValues, oldTooltips)
	if optionsChanged {
		s.emit(v, ir.ChangeOptions, oldValue, v.value, cause, fmt.Sprintf("%d options", len(values)))
	}

	if v.neverUnset() {
		s.selectFirstValid(v)
	}
	return optionsChanged || !v.value.Equal(oldValue)
}

// normalizeOptions NFC-normalizes option strings and drops empty and
// duplicate entries along with their tooltips.
func normalizeOptions(values, tooltips []string) ([]string, []string) {
	outV := make([]string, 0, len(values))
	outT := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for i, raw := range values {
		o := ir.NormalizeOption(raw)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		outV = append(outV, o)
		outT = append(outT, tooltipAt(tooltips, i))
	}
	return outV, outT
}

// selectFirstValid assigns the first valid option in list order. With
// options but none valid it records a NoValidOptionWarning and leaves v
// unset.
func (s *Session) selectFirstValid(v *variable) bool {
	for _, o := range v.options {
		if o.Valid {
			s.assign(v, v.hypothetical(o.Value), causeAutoSelect)
			return true
		}
	}
	if len(v.options) > 0 {
		w := NoValidOptionWarning{Variable: v.name(), Seq: s.clock.Current(), Options: len(v.options)}
		s.warnings = append(s.warnings, w)
		s.logger.Warn("no valid option", "variable", v.name(), "options", len(v.options), "session", s.id)
	}
	return false
}

// assign sets v's value and records the change if it differs.
func (s *Session) assign(v *variable, val ir.Value, cause string) {
	if v.value.Equal(val) {
		return
	}
	old := v.value
	v.value = val
	s.emit(v, ir.ChangeValue, old, val, cause, "")
}

// checkWrite validates an external write of val to v and returns the value
// to store.
func (s *Session) checkWrite(v *variable, val ir.Value) (ir.Value, error) {
	reject := func(reason string) (ir.Value, error) {
		return ir.Value{}, &InvalidValueError{Variable: v.name(), Value: val, Reason: reason}
	}

	switch v.kind() {
	case ir.VarScalar:
		if val.Kind() == ir.KindSet {
			return reject("expects a single value")
		}
		if val.IsUnset() {
			return val, nil
		}
		text, _ := val.ScalarValue()
		if err := checkScalarType(v.def.Type, text); err != nil {
			return reject(err.Error())
		}
		if msg, ok := s.checkHypothetical(v, val); !ok {
			return reject(msg)
		}
		return val, nil

	case ir.VarOption:
		if val.Kind() == ir.KindSet {
			return reject("expects a single value")
		}
		if val.IsUnset() {
			return val, nil
		}
		text, _ := val.ScalarValue()
		if reason := v.optionProblem(ir.NormalizeOption(text)); reason != "" {
			return reject(reason)
		}
		return ir.Scalar(ir.NormalizeOption(text)), nil

	default:
		members := val.Members()
		for i, m := range members {
			members[i] = ir.NormalizeOption(m)
			if reason := v.optionProblem(members[i]); reason != "" {
				return reject(fmt.Sprintf("member %q: %s", m, reason))
			}
		}
		return ir.Set(members...), nil
	}
}

// optionProblem explains why value cannot be selected, or returns "".
func (v *variable) optionProblem(value string) string {
	i := v.optionIndex(value)
	if i < 0 {
		return "not a current option"
	}
	if !v.options[i].Valid {
		if v.options[i].Message != "" {
			return v.options[i].Message
		}
		return "option is currently invalid"
	}
	return ""
}

func checkScalarType(t ir.ScalarType, text string) error {
	var err error
	switch t {
	case ir.TypeInt:
		_, err = strconv.ParseInt(text, 10, 64)
	case ir.TypeReal:
		_, err = strconv.ParseFloat(text, 64)
	case ir.TypeBool:
		_, err = strconv.ParseBool(text)
	}
	if err != nil {
		return fmt.Errorf("not a valid %s", t)
	}
	return nil
}
