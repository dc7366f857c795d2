package engine

import (
	"github.com/roach88/caseconf/internal/ir"
)

// Change is an open two-phase change of one variable. Between BeginChange
// and Commit the change is in its intent phase: reactions to it are
// ignored, and derivations induced by the variable are not evaluated.
// Observers only ever see the committed result.
type Change struct {
	s          *Session
	variable   string
	generation int
	closed     bool
}

// BeginChange opens a change of name. Only one change per variable may be
// open at a time.
func (s *Session) BeginChange(name string) (*Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		return nil, ErrNotBuilt
	}
	if _, err := s.registry.lookup(name); err != nil {
		return nil, err
	}
	if _, open := s.pending[name]; open {
		return nil, ErrChangePending
	}
	c := &Change{s: s, variable: name, generation: s.generation}
	s.pending[name] = c
	s.logger.Debug("change begun", "variable", name, "session", s.id)
	return c, nil
}

// Variable returns the name of the variable being changed.
func (c *Change) Variable() string { return c.variable }

// Commit validates val, stores it and runs the cascade. A rejected value
// closes the change and leaves the prior value in place. Either way,
// recomputations skipped while the change was open are run afterwards.
// A change opened before the session was reset is closed.
func (c *Change) Commit(val ir.Value) error {
	s := c.s
	return s.mutate(func() error {
		if !c.close() {
			return ErrChangeClosed
		}
		err := c.apply(val)
		if catchUpErr := s.catchUp(c.variable); err == nil {
			err = catchUpErr
		}
		return err
	})
}

func (c *Change) apply(val ir.Value) error {
	s := c.s
	v, err := s.registry.lookup(c.variable)
	if err != nil {
		return err
	}
	normalized, err := s.checkWrite(v, val)
	if err != nil {
		return err
	}
	if v.value.Equal(normalized) {
		return nil
	}
	s.assign(v, normalized, causeWrite)
	if v.optioned() && v.neverUnset() && v.value.IsEmpty() {
		s.selectFirstValid(v)
	}
	return s.propagate(c.variable)
}

// close marks c closed and releases its pending slot. It reports false
// when c was already closed or belongs to an earlier generation of the
// session. Callers hold s.mu.
func (c *Change) close() bool {
	s := c.s
	if c.closed || c.generation != s.generation {
		c.closed = true
		return false
	}
	c.closed = true
	delete(s.pending, c.variable)
	return true
}

// Abort closes the change without touching the variable, then runs the
// recomputations skipped while it was open.
func (c *Change) Abort() {
	s := c.s
	s.mu.Lock()
	if !c.close() {
		s.mu.Unlock()
		return
	}
	if !s.built {
		s.mu.Unlock()
		return
	}
	_ = s.catchUp(c.variable)
	events, obs := s.takeEvents()
	s.mu.Unlock()

	s.dispatch(events, obs)
}

// SetValue writes val to name as a single begin/commit pair.
func (s *Session) SetValue(name string, val ir.Value) error {
	c, err := s.BeginChange(name)
	if err != nil {
		return err
	}
	return c.Commit(val)
}

// SetString writes a scalar value, or a one-member set for set variables.
func (s *Session) SetString(name, value string) error {
	return s.SetValue(name, ir.Scalar(value))
}

// Clear writes the empty value for name's shape.
func (s *Session) Clear(name string) error {
	return s.SetValue(name, ir.Unset())
}

// ToggleMember adds member to a set variable's value when absent and
// removes it when present. The result is written as a whole new value.
func (s *Session) ToggleMember(name, member string) error {
	return s.editMembers(name, func(v ir.Value) ir.Value { return v.Toggle(member) })
}

// AddMember adds member to a set variable's value.
func (s *Session) AddMember(name, member string) error {
	return s.editMembers(name, func(v ir.Value) ir.Value { return v.With(member) })
}

// RemoveMember removes member from a set variable's value.
func (s *Session) RemoveMember(name, member string) error {
	return s.editMembers(name, func(v ir.Value) ir.Value { return v.Without(member) })
}

func (s *Session) editMembers(name string, edit func(ir.Value) ir.Value) error {
	c, err := s.BeginChange(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	v := s.registry.vars[name]
	multi, current := v.multi(), v.value
	s.mu.Unlock()

	if !multi {
		c.Abort()
		return &InvalidValueError{Variable: name, Value: current, Reason: "member edits need a set variable"}
	}
	return c.Commit(edit(current))
}

// SetOptions replaces name's option list with options and parallel
// tooltips (which may be shorter or nil). The value is cleared, validity is
// recomputed and a never_unset variable re-selects.
func (s *Session) SetOptions(name string, options, tooltips []string) error {
	return s.mutate(func() error {
		v, err := s.registry.lookup(name)
		if err != nil {
			return err
		}
		if !v.optioned() {
			return ErrNotOptioned
		}
		if len(tooltips) > len(options) {
			return &InvalidValueError{Variable: name, Value: v.value, Reason: "more tooltips than options"}
		}
		if s.applyOptions(v, options, tooltips, causeOptions) {
			return s.propagate(name)
		}
		return nil
	})
}

// UpdateOptionsValidity recomputes name's option validity against the
// current values of its siblings. It reports whether anything changed;
// a second call with no sibling change in between always reports false
// and notifies nobody.
func (s *Session) UpdateOptionsValidity(name string) (bool, error) {
	return s.Recompute(name, "")
}

// Recompute is UpdateOptionsValidity for handlers reacting to a change of
// trigger. While trigger's change is still in its intent phase the call is
// ignored and reports false. Derived variables re-resolve their options
// when trigger is one of their inducers.
func (s *Session) Recompute(name, trigger string) (bool, error) {
	var changed bool
	err := s.mutate(func() error {
		if _, err := s.registry.lookup(name); err != nil {
			return err
		}
		if trigger != "" {
			if _, err := s.registry.lookup(trigger); err != nil {
				return err
			}
		}
		changed = s.recompute(name, trigger)
		if changed {
			return s.propagate(name)
		}
		return nil
	})
	return changed, err
}
