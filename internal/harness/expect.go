package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/caseconf/internal/engine"
	"github.com/roach88/caseconf/internal/ir"
)

// CheckExpect compares the final state in result against e and returns a
// message for every mismatch. Variables are checked in name order so the
// messages are stable.
func CheckExpect(result *Result, e *Expect) []string {
	if e == nil {
		return nil
	}
	var errs []string

	for _, name := range sortedKeys(e.Values) {
		vs, ok := result.Variable(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("values: variable %s not found", name))
			continue
		}
		want := ir.ParseValue(e.Values[name], vs.Kind == ir.VarMulti)
		if !vs.Value.Equal(want) {
			errs = append(errs, fmt.Sprintf("values: %s = %s, want %s", name, vs.Value, want))
		}
	}

	for _, name := range sortedKeys(e.Valid) {
		vs, ok := result.Variable(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("valid: variable %s not found", name))
			continue
		}
		got := vs.ValidOptions()
		if !sameStrings(got, e.Valid[name]) {
			errs = append(errs, fmt.Sprintf("valid: %s has [%s], want [%s]",
				name, strings.Join(got, ", "), strings.Join(e.Valid[name], ", ")))
		}
	}

	for _, name := range sortedKeys(e.Invalid) {
		vs, ok := result.Variable(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("invalid: variable %s not found", name))
			continue
		}
		for _, want := range e.Invalid[name] {
			o, found := findOption(vs.Options, want)
			switch {
			case !found:
				errs = append(errs, fmt.Sprintf("invalid: %s has no option %q", name, want))
			case o.Valid:
				errs = append(errs, fmt.Sprintf("invalid: %s option %q is valid", name, want))
			}
		}
	}

	for _, name := range sortedKeys(e.Messages) {
		vs, ok := result.Variable(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("messages: variable %s not found", name))
			continue
		}
		for _, opt := range sortedKeys(e.Messages[name]) {
			want := e.Messages[name][opt]
			o, found := findOption(vs.Options, opt)
			switch {
			case !found:
				errs = append(errs, fmt.Sprintf("messages: %s has no option %q", name, opt))
			case o.Message != want:
				errs = append(errs, fmt.Sprintf("messages: %s option %q says %q, want %q", name, opt, o.Message, want))
			}
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func findOption(options []engine.Option, value string) (engine.Option, bool) {
	for _, o := range options {
		if o.Value == value {
			return o, true
		}
	}
	return engine.Option{}, false
}
