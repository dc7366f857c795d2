package engine

import (
	"github.com/roach88/caseconf/internal/compliance"
	"github.com/roach88/caseconf/internal/depgraph"
	"github.com/roach88/caseconf/internal/ir"
)

// Exists reports whether name is registered.
func (s *Session) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Exists(name)
}

// Names returns every registered variable in registration order.
func (s *Session) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Names()
}

// Variable returns a snapshot of one variable.
func (s *Session) Variable(name string) (VariableState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.registry.lookup(name)
	if err != nil {
		return VariableState{}, err
	}
	return v.view(s.derivedBy[name] != nil), nil
}

// Value returns name's committed value.
func (s *Session) Value(name string) (ir.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.registry.lookup(name)
	if err != nil {
		return ir.Value{}, err
	}
	return v.value, nil
}

// Options returns name's option list with validity. It is nil for an
// uninitialized or free-form variable.
func (s *Session) Options(name string) ([]Option, error) {
	vs, err := s.Variable(name)
	if err != nil {
		return nil, err
	}
	return vs.Options, nil
}

// ValidOptions returns the values of name's currently valid options.
func (s *Session) ValidOptions(name string) ([]string, error) {
	vs, err := s.Variable(name)
	if err != nil {
		return nil, err
	}
	return vs.ValidOptions(), nil
}

// Option returns the entry for value in name's option list.
func (s *Session) Option(name, value string) (Option, bool, error) {
	opts, err := s.Options(name)
	if err != nil {
		return Option{}, false, err
	}
	value = ir.NormalizeOption(value)
	for _, o := range opts {
		if o.Value == value {
			return o, true, nil
		}
	}
	return Option{}, false, nil
}

// FirstValidOption returns the first currently valid option of name.
func (s *Session) FirstValidOption(name string) (string, bool, error) {
	valid, err := s.ValidOptions(name)
	if err != nil || len(valid) == 0 {
		return "", false, err
	}
	return valid[0], true, nil
}

// Snapshot returns every variable in registration order.
func (s *Session) Snapshot() []VariableState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VariableState, 0, s.registry.Len())
	for _, name := range s.registry.Names() {
		out = append(out, s.registry.vars[name].view(s.derivedBy[name] != nil))
	}
	return out
}

// CompatibleOptions filters candidates down to the ones that would satisfy
// every assertion mentioning name if name held them, given the committed
// values of all other variables. candidates need not be current options.
func (s *Session) CompatibleOptions(name string, candidates []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.registry.lookup(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range candidates {
		if _, ok := s.checkHypothetical(v, v.hypothetical(ir.NormalizeOption(c))); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Observers returns the variables recomputed when name changes.
func (s *Session) Observers(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.registry.lookup(name); err != nil {
		return nil, err
	}
	return s.graph.Observers(name), nil
}

// Inducers returns the inducing variables of a derived variable, or nil.
func (s *Session) Inducers(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.registry.lookup(name); err != nil {
		return nil, err
	}
	if d := s.derivedBy[name]; d != nil {
		return append([]string(nil), d.From...), nil
	}
	return nil, nil
}

// AssertionsFor returns the active assertions mentioning name.
func (s *Session) AssertionsFor(name string) []*compliance.Assertion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assertions.AssertionsFor(name)
}

// Graph returns the dependency graph. It is immutable once Build returns.
func (s *Session) Graph() *depgraph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Warnings returns every NoValidOptionWarning recorded so far.
func (s *Session) Warnings() []NoValidOptionWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NoValidOptionWarning(nil), s.warnings...)
}

// Seq returns the logical clock position: the seq of the latest event.
func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Current()
}
