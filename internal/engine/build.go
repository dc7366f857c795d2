package engine

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/caseconf/internal/compliance"
	"github.com/roach88/caseconf/internal/depgraph"
	"github.com/roach88/caseconf/internal/ir"
)

// Build validates the registered rule set, wires the dependency graph,
// assigns initial options and defaults, and runs the first cascade.
// After Build, registration is locked.
//
// Derivations that name unregistered variables are configuration errors.
// Assertions that name unregistered variables are dropped with a warning,
// so one assertion store can serve several variable sets.
func (s *Session) Build() error {
	s.mu.Lock()
	if s.built {
		s.mu.Unlock()
		return &ConfigurationError{Subject: "session", Message: "already built"}
	}
	if err := s.validateDerivations(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.dropOrphanAssertions()
	s.wireGraph()
	s.built = true

	err := s.initialize()
	events, obs := s.takeEvents()
	s.mu.Unlock()

	s.dispatch(events, obs)
	return err
}

// Built reports whether Build has completed.
func (s *Session) Built() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built
}

func (s *Session) validateDerivations() error {
	var errs []error
	for _, d := range s.derivations {
		target, err := s.registry.lookup(d.Target)
		if err != nil {
			errs = append(errs, &ConfigurationError{Subject: d.Target, Message: "derivation target is not registered", Err: err})
			continue
		}
		if !target.optioned() {
			errs = append(errs, &ConfigurationError{Subject: d.Target, Message: "derivation target has no option list"})
		}
		for _, in := range d.From {
			if in == d.Target {
				errs = append(errs, &ConfigurationError{Subject: d.Target, Message: "derivation induces itself"})
				continue
			}
			if _, err := s.registry.lookup(in); err != nil {
				errs = append(errs, &ConfigurationError{
					Subject: d.Target,
					Message: fmt.Sprintf("inducing variable %q is not registered", in),
					Err:     err,
				})
			}
		}
	}
	return joinErrors(errs)
}

func (s *Session) dropOrphanAssertions() {
	dropped := s.assertions.Retain(func(a *compliance.Assertion) bool {
		for _, v := range a.Vars {
			if !s.registry.Exists(v) {
				return false
			}
		}
		return true
	})
	for _, a := range dropped {
		s.logger.Warn("assertion names unregistered variables, skipping", "assertion", a.ID, "vars", a.Vars)
	}
}

// wireGraph materializes every observer edge: both directions between
// variables sharing an assertion, and inducer to target for derivations.
func (s *Session) wireGraph() {
	for _, name := range s.registry.Names() {
		s.graph.AddNode(name)
	}
	for _, a := range s.assertions.All() {
		for _, from := range a.Vars {
			for _, to := range a.Vars {
				if from != to {
					s.graph.AddEdge(from, to, depgraph.EdgeAssertion)
				}
			}
		}
	}
	for _, d := range s.derivations {
		for _, in := range d.From {
			s.graph.AddEdge(in, d.Target, depgraph.EdgeDerivation)
		}
	}
	s.logger.Debug("dependency graph built",
		"session", s.id,
		"variables", s.registry.Len(),
		"assertions", s.assertions.Len(),
		"derivations", len(s.derivations))
}

// initialize assigns static options, applies defaults, then recomputes
// every variable in declaration order, cascading as it goes.
func (s *Session) initialize() error {
	for _, name := range s.registry.Names() {
		v := s.registry.vars[name]
		if !v.optioned() || s.derivedBy[name] != nil {
			continue
		}
		if v.def.Options != nil {
			s.applyOptions(v, v.def.Options, v.def.Tooltips, causeSetup)
		}
	}

	for _, name := range s.registry.Names() {
		v := s.registry.vars[name]
		if v.def.Default == "" || s.derivedBy[name] != nil {
			continue
		}
		val := ir.ParseValue(v.def.Default, v.multi())
		normalized, err := s.checkWrite(v, val)
		if err != nil {
			s.logger.Warn("default value rejected", "variable", name, "default", v.def.Default, "error", err)
			continue
		}
		s.assign(v, normalized, causeDefault)
	}

	var errs []error
	for _, name := range s.registry.Names() {
		if s.recompute(name, "") {
			if err := s.propagate(name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	var result *multierror.Error
	for _, err := range errs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
