package engine

import (
	"github.com/roach88/caseconf/internal/ir"
)

// Option is one entry of a variable's option list. Value, validity and
// message always travel together.
type Option struct {
	Value   string `json:"value"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
}

// State is the observable lifecycle state of a variable.
type State string

const (
	// StateUninitialized: an optioned variable with no option list yet.
	StateUninitialized State = "uninitialized"
	// StateUnset: no selection.
	StateUnset State = "unset"
	// StateSelected: the value is a currently valid selection.
	StateSelected State = "selected"
)

// variable is the mutable engine-side record. Every value shape shares it;
// kind decides which operations apply.
type variable struct {
	def   ir.VariableDef
	value ir.Value

	// options is nil until the first option list is assigned.
	options []Option

	// fingerprint hashes the inputs of the last validity evaluation.
	fingerprint string
}

func newVariable(def ir.VariableDef) *variable {
	v := &variable{def: def}
	v.value = v.emptyValue()
	return v
}

func (v *variable) name() string          { return v.def.Name }
func (v *variable) kind() ir.VariableKind { return v.def.Kind }
func (v *variable) optioned() bool        { return v.def.Kind.Optioned() }
func (v *variable) multi() bool           { return v.def.Kind == ir.VarMulti }
func (v *variable) neverUnset() bool      { return v.def.NeverUnset }

// emptyValue is the "nothing chosen" sentinel for this shape.
func (v *variable) emptyValue() ir.Value {
	if v.multi() {
		return ir.EmptySet()
	}
	return ir.Unset()
}

// hypothetical is the value substituted for option o during validity
// evaluation.
func (v *variable) hypothetical(o string) ir.Value {
	if v.multi() {
		return ir.Set(o)
	}
	return ir.Scalar(o)
}

func (v *variable) optionIndex(value string) int {
	for i, o := range v.options {
		if o.Value == value {
			return i
		}
	}
	return -1
}

// selectionValid reports whether every selected member is a currently valid
// option. Empty selections are trivially valid.
func (v *variable) selectionValid() bool {
	for _, m := range v.value.Members() {
		i := v.optionIndex(m)
		if i < 0 || !v.options[i].Valid {
			return false
		}
	}
	return true
}

func (v *variable) state() State {
	switch {
	case v.optioned() && v.options == nil:
		return StateUninitialized
	case v.value.IsEmpty():
		return StateUnset
	default:
		return StateSelected
	}
}

func (v *variable) optionValues() []string {
	out := make([]string, len(v.options))
	for i, o := range v.options {
		out[i] = o.Value
	}
	return out
}

// VariableState is an immutable view of one variable.
type VariableState struct {
	Name        string          `json:"name"`
	Kind        ir.VariableKind `json:"kind"`
	NeverUnset  bool            `json:"never_unset,omitempty"`
	Description string          `json:"description,omitempty"`
	Value       ir.Value        `json:"value"`
	State       State           `json:"state"`
	Options     []Option        `json:"options,omitempty"`
	Derived     bool            `json:"derived,omitempty"`
}

func (v *variable) view(derived bool) VariableState {
	var opts []Option
	if v.options != nil {
		opts = append([]Option{}, v.options...)
	}
	return VariableState{
		Name:        v.def.Name,
		Kind:        v.def.Kind,
		NeverUnset:  v.def.NeverUnset,
		Description: v.def.Description,
		Value:       v.value,
		State:       v.state(),
		Options:     opts,
		Derived:     derived,
	}
}

// ValidOptions returns the values of the currently valid options.
func (vs VariableState) ValidOptions() []string {
	var out []string
	for _, o := range vs.Options {
		if o.Valid {
			out = append(out, o.Value)
		}
	}
	return out
}

func sameOptions(a []Option, values, tooltips []string) bool {
	if len(a) != len(values) {
		return false
	}
	for i := range a {
		if a[i].Value != values[i] || a[i].Tooltip != tooltipAt(tooltips, i) {
			return false
		}
	}
	return true
}

func sameStatuses(a, b []Option) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Valid != b[i].Valid || a[i].Message != b[i].Message {
			return false
		}
	}
	return true
}

func tooltipAt(tooltips []string, i int) string {
	if i < len(tooltips) {
		return tooltips[i]
	}
	return ""
}
