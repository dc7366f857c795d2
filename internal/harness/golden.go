package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/caseconf/internal/engine"
)

// RenderState formats a snapshot as the text table stored in golden files:
//
//	COMP_ATM [option] = cam
//	  * cam
//	  - datm: HIST runs need an active atmosphere
//
// "*" marks a selected option, "+" a valid one and "-" an invalid one.
func RenderState(states []engine.VariableState) string {
	var b strings.Builder
	for _, vs := range states {
		flags := []string{string(vs.Kind)}
		if vs.Derived {
			flags = append(flags, "derived")
		}
		if vs.NeverUnset {
			flags = append(flags, "never_unset")
		}
		fmt.Fprintf(&b, "%s [%s] = %s\n", vs.Name, strings.Join(flags, ", "), vs.Value)

		if !vs.Kind.Optioned() {
			continue
		}
		if len(vs.Options) == 0 {
			b.WriteString("  (no options)\n")
			continue
		}
		for _, o := range vs.Options {
			b.WriteString("  ")
			b.WriteString(optionLine(vs, o))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func optionLine(vs engine.VariableState, o engine.Option) string {
	mark := "+"
	switch {
	case vs.Value.Has(o.Value):
		mark = "*"
	case !o.Valid:
		mark = "-"
	}
	line := mark + " " + o.Value
	if o.Tooltip != "" {
		line += " (" + o.Tooltip + ")"
	}
	if !o.Valid && o.Message != "" {
		line += ": " + o.Message
	}
	return line
}

// AssertGolden compares the rendered final state of result against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	out := "scenario: " + name + "\n" + RenderState(result.Final)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(out))
}
