package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/caseconf/internal/ir"
)

// ErrSessionNotFound is returned by ReadSession for an unknown ID.
var ErrSessionNotFound = errors.New("session not found")

// ReadSessions returns every journaled session in insertion order.
//
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadSessions(ctx context.Context) ([]ir.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rules_name, rules_hash, started_seq, engine_version, ir_version
		FROM sessions
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.SessionRecord{}
	for rows.Next() {
		var rec ir.SessionRecord
		if err := rows.Scan(&rec.ID, &rec.RulesName, &rec.RulesHash, &rec.StartedSeq, &rec.EngineVersion, &rec.IRVersion); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession returns one session by ID.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.SessionRecord, error) {
	var rec ir.SessionRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, rules_name, rules_hash, started_seq, engine_version, ir_version
		FROM sessions
		WHERE id = ?
	`, id).Scan(&rec.ID, &rec.RulesName, &rec.RulesHash, &rec.StartedSeq, &rec.EngineVersion, &rec.IRVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.SessionRecord{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return ir.SessionRecord{}, fmt.Errorf("query session: %w", err)
	}
	return rec, nil
}

// ReadChanges returns every change of a session, ORDER BY seq ASC.
func (s *Store) ReadChanges(ctx context.Context, sessionID string) ([]ir.ChangeRecord, error) {
	return s.QueryChanges(ctx, ChangeFilter{SessionID: sessionID})
}

// ReadVariableChanges returns the changes of one variable in a session,
// ORDER BY seq ASC.
func (s *Store) ReadVariableChanges(ctx context.Context, sessionID, variable string) ([]ir.ChangeRecord, error) {
	return s.QueryChanges(ctx, ChangeFilter{SessionID: sessionID, Variable: variable})
}

func scanChanges(rows *sql.Rows) ([]ir.ChangeRecord, error) {
	defer rows.Close()

	changes := []ir.ChangeRecord{}
	for rows.Next() {
		var (
			rec              ir.ChangeRecord
			kind             string
			oldJSON, newJSON string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.Variable, &kind, &oldJSON, &newJSON, &rec.Cause, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		rec.Kind = ir.ChangeKind(kind)

		var err error
		if rec.Old, err = unmarshalValue(oldJSON); err != nil {
			return nil, err
		}
		if rec.New, err = unmarshalValue(newJSON); err != nil {
			return nil, err
		}
		changes = append(changes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}
