package engine

// propagate runs the validity cascade started by a committed change of
// origin until no recomputed variable changes state.
func (s *Session) propagate(origin string) error {
	work := &worklist{}
	work.pushObservers(origin, s.graph.Observers(origin))
	return s.run(origin, work)
}

// catchUp recomputes the variables skipped while name had an open change
// and cascades from whichever of them changed.
func (s *Session) catchUp(name string) error {
	targets := s.deferred[name]
	delete(s.deferred, name)
	if len(targets) == 0 {
		return nil
	}
	s.logger.Debug("catching up deferred updates", "variable", name, "targets", targets)
	work := &worklist{}
	work.pushObservers("", targets)
	return s.run(name, work)
}

// deferUpdate records that target skipped a recomputation because trigger
// has an open change.
func (s *Session) deferUpdate(trigger, target string) {
	for _, t := range s.deferred[trigger] {
		if t == target {
			return
		}
	}
	s.deferred[trigger] = append(s.deferred[trigger], target)
}

// run drains work, stopping once no recomputed variable changes state.
func (s *Session) run(origin string, work *worklist) error {
	quota := NewQuotaEnforcer(s.maxSteps)
	for {
		item, ok := work.pop()
		if !ok {
			s.logger.Debug("cascade settled", "origin", origin, "steps", quota.Current())
			return nil
		}
		if err := quota.Check(origin); err != nil {
			s.logger.Error("cascade aborted", "origin", origin, "error", err, "pending", work.len())
			return err
		}
		if s.recompute(item.target, item.trigger) {
			work.pushObservers(item.target, s.graph.Observers(item.target))
		}
	}
}

// recompute brings one variable up to date after trigger changed. An empty
// trigger means a direct request rather than a reaction. It reports whether
// the variable's observable state changed.
func (s *Session) recompute(name, trigger string) bool {
	v, ok := s.registry.vars[name]
	if !ok {
		return false
	}
	if trigger != "" {
		if _, pending := s.pending[trigger]; pending {
			s.logger.Debug("update ignored",
				"event", (&StaleUpdateIgnored{Variable: name, Trigger: trigger}).Error())
			s.deferUpdate(trigger, name)
			return false
		}
	}

	if d := s.derivedBy[name]; d != nil && (trigger == "" || d.inducedBy(trigger)) {
		if s.resolve(v, d) {
			return true
		}
	}
	return s.refreshValidity(v)
}
