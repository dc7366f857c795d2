package engine

import (
	"context"

	"github.com/roach88/caseconf/internal/ir"
)

// ChangeEvent describes one committed change. Value events carry Old and
// New; options and validity events carry the variable's value before and
// after for convenience.
type ChangeEvent struct {
	Seq      int64         `json:"seq"`
	Variable string        `json:"variable"`
	Kind     ir.ChangeKind `json:"kind"`
	Old      ir.Value      `json:"old"`
	New      ir.Value      `json:"new"`
	Cause    string        `json:"cause"`
	Detail   string        `json:"detail,omitempty"`
}

// ObserverFunc receives committed changes.
type ObserverFunc func(ChangeEvent)

type observer struct {
	id       int
	variable string // "" observes every variable
	fn       ObserverFunc
}

// Observe calls fn for every committed change of name. Callbacks run after
// the cascade that produced the change has settled, in seq order, outside
// the session lock, so they may call back into the session. The returned
// function cancels the subscription.
func (s *Session) Observe(name string, fn ObserverFunc) (cancel func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.registry.lookup(name); err != nil {
		return nil, err
	}
	return s.addObserver(name, fn), nil
}

// ObserveAll calls fn for every committed change of any variable.
func (s *Session) ObserveAll(fn ObserverFunc) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addObserver("", fn)
}

func (s *Session) addObserver(name string, fn ObserverFunc) func() {
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, variable: name, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// emit stamps and buffers an event for dispatch once the current operation
// finishes.
func (s *Session) emit(v *variable, kind ir.ChangeKind, from, to ir.Value, cause, detail string) {
	s.events = append(s.events, ChangeEvent{
		Seq:      s.clock.Next(),
		Variable: v.name(),
		Kind:     kind,
		Old:      from,
		New:      to,
		Cause:    cause,
		Detail:   detail,
	})
}

// takeEvents hands buffered events and a copy of the observer list to the
// caller. Must hold s.mu.
func (s *Session) takeEvents() ([]ChangeEvent, []observer) {
	events := s.events
	s.events = nil
	return events, append([]observer(nil), s.observers...)
}

// dispatch journals events and notifies observers. Must not hold s.mu.
func (s *Session) dispatch(events []ChangeEvent, observers []observer) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	id, journal := s.id, s.journal
	s.mu.Unlock()

	for _, ev := range events {
		if journal != nil {
			rec := ir.ChangeRecord{
				SessionID: id,
				Seq:       ev.Seq,
				Variable:  ev.Variable,
				Kind:      ev.Kind,
				Old:       ev.Old,
				New:       ev.New,
				Cause:     ev.Cause,
				Detail:    ev.Detail,
			}
			if err := journal.RecordChange(context.Background(), rec); err != nil {
				s.logger.Error("journal write failed", "session", id, "seq", ev.Seq, "error", err)
			}
		}
		for _, o := range observers {
			if o.variable == "" || o.variable == ev.Variable {
				o.fn(ev)
			}
		}
	}
}

// mutate runs fn under the session lock and dispatches whatever events it
// produced once the lock is released.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	if !s.built {
		s.mu.Unlock()
		return ErrNotBuilt
	}
	err := fn()
	events, obs := s.takeEvents()
	s.mu.Unlock()

	s.dispatch(events, obs)
	return err
}
