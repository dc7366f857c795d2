// Package engine implements the reactive constraint-propagation core.
//
// A Session holds configuration variables of three shapes (free scalar,
// optioned scalar, optioned set), the compliance assertions relating them,
// and derivations that compute one variable's option list from others.
// For every optioned variable the session keeps each option's validity and
// the message of the first assertion it violates.
//
// Propagation:
//
// A committed change of B recomputes every variable observing B in the
// dependency graph, depth-first in declaration order. A derived variable
// first re-resolves its option list, then its validity is evaluated by
// substituting each option in turn and checking every assertion that
// mentions it. A variable whose recomputed statuses equal the stored ones
// stops there and notifies nobody. That rule alone bounds every cascade,
// including cascades over cyclic graphs, provided derivation functions are
// deterministic; QuotaEnforcer is a backstop for ones that are not.
//
// Invariants after every public call:
//   - a set value is the unset sentinel or made only of current options;
//   - option values, validity and messages are replaced together;
//   - a never_unset variable holds a valid option whenever one exists;
//   - recomputing with no sibling change is a no-op.
//
// Changes are two-phase. BeginChange opens an intent; Commit validates and
// applies it. Reactions to a variable whose change is still open are
// skipped, and observers only receive committed events.
package engine
