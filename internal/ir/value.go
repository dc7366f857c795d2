package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the shape held by a Value.
type ValueKind uint8

const (
	// KindUnset is the scalar unset sentinel.
	KindUnset ValueKind = iota
	// KindScalar holds one string.
	KindScalar
	// KindSet holds an ordered set of strings, possibly empty.
	KindSet
)

func (k ValueKind) String() string {
	switch k {
	case KindUnset:
		return "unset"
	case KindScalar:
		return "scalar"
	case KindSet:
		return "set"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

const (
	// NoneToken is what assertion patterns see for an unset variable or an
	// empty set.
	NoneToken = "None"

	// EmptySetToken is the display form of the empty-set sentinel.
	EmptySetToken = "()"

	// SetSeparator joins set members when a set is rendered for assertions.
	SetSeparator = "%"
)

// Value is the current value of a configuration variable.
//
// The zero Value is the unset sentinel. Set values are order-preserving,
// never contain duplicates, and never contain the empty string, so a set
// with no members is always the empty-set sentinel.
type Value struct {
	kind    ValueKind
	scalar  string
	members []string
}

// Unset returns the scalar unset sentinel.
func Unset() Value {
	return Value{}
}

// Scalar returns a scalar value. The empty string yields Unset.
func Scalar(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: s}
}

// Set returns an ordered set holding members in first-seen order.
// Empty strings and duplicates are dropped.
func Set(members ...string) Value {
	out := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return Value{kind: KindSet, members: out}
}

// EmptySet returns the empty-set sentinel.
func EmptySet() Value {
	return Value{kind: KindSet, members: []string{}}
}

// Kind reports the shape of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsUnset reports whether v is the scalar unset sentinel.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// IsEmpty reports whether v carries no selection at all: the unset sentinel
// or the empty set.
func (v Value) IsEmpty() bool {
	return v.kind == KindUnset || (v.kind == KindSet && len(v.members) == 0)
}

// ScalarValue returns the scalar string and true when v is a scalar.
func (v Value) ScalarValue() (string, bool) {
	if v.kind != KindScalar {
		return "", false
	}
	return v.scalar, true
}

// Members returns the selected strings: the members of a set, the single
// string of a scalar, or nil for unset. The slice is a copy.
func (v Value) Members() []string {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}
	case KindSet:
		out := make([]string, len(v.members))
		copy(out, v.members)
		return out
	default:
		return nil
	}
}

// Has reports whether s is selected in v.
func (v Value) Has(s string) bool {
	switch v.kind {
	case KindScalar:
		return v.scalar == s
	case KindSet:
		for _, m := range v.members {
			if m == s {
				return true
			}
		}
	}
	return false
}

// With returns a set holding v's members plus s appended.
func (v Value) With(s string) Value {
	return Set(append(v.Members(), s)...)
}

// Without returns a set holding v's members minus s.
func (v Value) Without(s string) Value {
	members := v.Members()
	kept := members[:0]
	for _, m := range members {
		if m != s {
			kept = append(kept, m)
		}
	}
	return Set(kept...)
}

// Toggle adds s when absent and removes it when present.
func (v Value) Toggle(s string) Value {
	if v.Has(s) {
		return v.Without(s)
	}
	return v.With(s)
}

// Equal reports whether two values have the same shape and contents.
// Set comparison is order-sensitive.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindSet:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i] != o.members[i] {
				return false
			}
		}
	}
	return true
}

// Render returns the string assertion patterns are matched against.
func (v Value) Render() string {
	switch {
	case v.IsEmpty():
		return NoneToken
	case v.kind == KindScalar:
		return v.scalar
	default:
		return strings.Join(v.members, SetSeparator)
	}
}

// String returns the display form: "<unset>", a scalar, or "(a, b)".
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSet:
		if len(v.members) == 0 {
			return EmptySetToken
		}
		return "(" + strings.Join(v.members, ", ") + ")"
	default:
		return "<unset>"
	}
}

// MarshalJSON encodes unset as null, a scalar as a string and a set as an
// array.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindSet:
		return json.Marshal(v.members)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch r := raw.(type) {
	case nil:
		*v = Unset()
	case string:
		*v = Scalar(r)
	case []any:
		members := make([]string, 0, len(r))
		for i, elem := range r {
			s, ok := elem.(string)
			if !ok {
				return fmt.Errorf("set member %d: expected string, got %T", i, elem)
			}
			members = append(members, s)
		}
		*v = Set(members...)
	default:
		return fmt.Errorf("unsupported value encoding %T", raw)
	}
	return nil
}

// ParseValue reads the textual form used by CLI flags and scenario files:
// "" is unset, "()" the empty set, "(a, b)" or "a%b" a set when multi is
// true, anything else a scalar.
func ParseValue(s string, multi bool) Value {
	s = strings.TrimSpace(s)
	if !multi {
		return Scalar(s)
	}
	if s == "" || s == EmptySetToken {
		return EmptySet()
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
		return Set(splitTrim(s, ",")...)
	}
	return Set(splitTrim(s, SetSeparator)...)
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
