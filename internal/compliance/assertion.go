package compliance

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/roach88/caseconf/internal/ir"
)

// Sentinel errors returned by Compile. Callers wrap them with context.
var (
	ErrTooFewVariables   = errors.New("assertion must relate at least 2 variables")
	ErrDuplicateVariable = errors.New("assertion names a variable twice")
	ErrNoClauses         = errors.New("assertion has no clauses")
	ErrClauseArity       = errors.New("clause pattern count does not match variable count")
	ErrClauseKind        = errors.New("unknown clause kind")
	ErrBadPattern        = errors.New("invalid clause pattern")
)

// Getter returns the assertion-facing rendering of a variable's value:
// either a real current value or a hypothetical one under evaluation.
type Getter func(name string) string

// Clause is a compiled accept or reject clause.
type Clause struct {
	Kind     ir.ClauseKind
	Patterns []*regexp.Regexp
	Message  string
}

// Assertion is a compiled compliance assertion.
type Assertion struct {
	ID      string
	Vars    []string
	Clauses []Clause
}

// Compile validates def and compiles its patterns.
func Compile(def ir.AssertionDef) (*Assertion, error) {
	if len(def.Vars) < 2 {
		return nil, fmt.Errorf("%s: %w (got %d)", def.ID, ErrTooFewVariables, len(def.Vars))
	}
	seen := make(map[string]bool, len(def.Vars))
	for _, v := range def.Vars {
		if seen[v] {
			return nil, fmt.Errorf("%s: %w: %s", def.ID, ErrDuplicateVariable, v)
		}
		seen[v] = true
	}
	if len(def.Clauses) == 0 {
		return nil, fmt.Errorf("%s: %w", def.ID, ErrNoClauses)
	}

	a := &Assertion{
		ID:      def.ID,
		Vars:    append([]string(nil), def.Vars...),
		Clauses: make([]Clause, 0, len(def.Clauses)),
	}
	for i, cd := range def.Clauses {
		if cd.Kind != ir.ClauseAccept && cd.Kind != ir.ClauseReject {
			return nil, fmt.Errorf("%s clause %d: %w %q", def.ID, i, ErrClauseKind, cd.Kind)
		}
		if len(cd.Patterns) != len(def.Vars) {
			return nil, fmt.Errorf("%s clause %d: %w (%d patterns, %d variables)",
				def.ID, i, ErrClauseArity, len(cd.Patterns), len(def.Vars))
		}
		c := Clause{Kind: cd.Kind, Message: cd.Message, Patterns: make([]*regexp.Regexp, len(cd.Patterns))}
		for j, p := range cd.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("%s clause %d pattern %d: %w: %v", def.ID, i, j, ErrBadPattern, err)
			}
			c.Patterns[j] = re
		}
		a.Clauses = append(a.Clauses, c)
	}
	return a, nil
}

// Check evaluates the assertion against get. It returns ok=true when every
// clause is satisfied; otherwise the message of the first failing clause.
// Accept clauses are checked before reject clauses, each in declaration
// order.
//
// An accept clause whose consequent variable is unset is not violated: the
// consequent can still be chosen to satisfy it.
func (a *Assertion) Check(get Getter) (msg string, ok bool) {
	vals := make([]string, len(a.Vars))
	for i, name := range a.Vars {
		vals[i] = get(name)
	}
	last := len(vals) - 1

	for _, kind := range []ir.ClauseKind{ir.ClauseAccept, ir.ClauseReject} {
		for _, c := range a.Clauses {
			if c.Kind != kind || !c.antecedentMatches(vals[:last]) {
				continue
			}
			consequent := c.Patterns[last].MatchString(vals[last])
			if kind == ir.ClauseAccept && !consequent && vals[last] != ir.NoneToken {
				return c.Message, false
			}
			if kind == ir.ClauseReject && consequent {
				return c.Message, false
			}
		}
	}
	return "", true
}

func (c *Clause) antecedentMatches(vals []string) bool {
	for i, v := range vals {
		if !c.Patterns[i].MatchString(v) {
			return false
		}
	}
	return true
}

// Mentions reports whether the assertion relates name.
func (a *Assertion) Mentions(name string) bool {
	for _, v := range a.Vars {
		if v == name {
			return true
		}
	}
	return false
}
