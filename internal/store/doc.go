// Package store provides the SQLite change journal.
//
// A journal is an append-only trace of one or more sessions:
//   - sessions: one row per session, with the rule set's name and hash
//   - changes: every committed change, keyed by (session_id, seq)
//
// It is written through the engine.Journal interface and read back by
// `caseconf trace`. Nothing is ever restored from it; a session always
// starts from its rule set.
//
// # Ordering
//
// All reads ORDER BY seq ASC. seq comes from the session's logical clock,
// so two runs of the same scenario produce identical journals apart from
// the session ID.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: changes must reference a known session
package store
