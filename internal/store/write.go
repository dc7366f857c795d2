package store

import (
	"context"
	"fmt"

	"github.com/roach88/caseconf/internal/ir"
)

// WriteSession records the start of a session. It must precede the
// session's first RecordChange. Writing the same ID twice is a no-op.
func (s *Store) WriteSession(ctx context.Context, rec ir.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, rules_name, rules_hash, started_seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.RulesName,
		rec.RulesHash,
		rec.StartedSeq,
		rec.EngineVersion,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// RecordChange appends one committed change. Values are stored as
// canonical JSON: null for unset, a string for a scalar, an array for a set.
//
// Re-recording an existing (session_id, seq) is silently ignored.
func (s *Store) RecordChange(ctx context.Context, rec ir.ChangeRecord) error {
	oldJSON, err := marshalValue(rec.Old)
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	newJSON, err := marshalValue(rec.New)
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO changes
		(session_id, seq, variable, kind, old_value, new_value, cause, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.SessionID,
		rec.Seq,
		rec.Variable,
		string(rec.Kind),
		oldJSON,
		newJSON,
		rec.Cause,
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("record change: %w", err)
	}
	return nil
}
