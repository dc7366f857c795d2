package compliance

import (
	"errors"
	"fmt"

	"github.com/roach88/caseconf/internal/ir"
)

// ErrDuplicateID is returned when an assertion ID is registered twice.
var ErrDuplicateID = errors.New("duplicate assertion id")

// Store holds assertions in registration order and indexes them by the
// variables they mention.
type Store struct {
	assertions []*Assertion
	byVar      map[string][]*Assertion
	ids        map[string]bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byVar: make(map[string][]*Assertion),
		ids:   make(map[string]bool),
	}
}

// Add compiles def and appends it. Assertions without an ID get a
// positional one.
func (s *Store) Add(def ir.AssertionDef) (*Assertion, error) {
	if def.ID == "" {
		def.ID = fmt.Sprintf("assertion_%d", len(s.assertions)+1)
	}
	if s.ids[def.ID] {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
	}
	a, err := Compile(def)
	if err != nil {
		return nil, err
	}
	s.insert(a)
	return a, nil
}

func (s *Store) insert(a *Assertion) {
	s.ids[a.ID] = true
	s.assertions = append(s.assertions, a)
	for _, v := range a.Vars {
		s.byVar[v] = append(s.byVar[v], a)
	}
}

// AssertionsFor returns the assertions mentioning name, in registration
// order.
func (s *Store) AssertionsFor(name string) []*Assertion {
	return append([]*Assertion(nil), s.byVar[name]...)
}

// All returns every assertion in registration order.
func (s *Store) All() []*Assertion {
	return append([]*Assertion(nil), s.assertions...)
}

// Len returns the number of assertions.
func (s *Store) Len() int { return len(s.assertions) }

// Related returns the variables that share at least one assertion with
// name, in first-seen order.
func (s *Store) Related(name string) []string {
	var out []string
	seen := map[string]bool{name: true}
	for _, a := range s.byVar[name] {
		for _, v := range a.Vars {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// Retain keeps the assertions for which keep returns true and returns the
// ones it dropped.
func (s *Store) Retain(keep func(*Assertion) bool) []*Assertion {
	var dropped []*Assertion
	kept := s.assertions
	s.Reset()
	for _, a := range kept {
		if keep(a) {
			s.insert(a)
		} else {
			dropped = append(dropped, a)
		}
	}
	return dropped
}

// Reset removes every assertion.
func (s *Store) Reset() {
	s.assertions = nil
	s.byVar = make(map[string][]*Assertion)
	s.ids = make(map[string]bool)
}
