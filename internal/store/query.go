package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/caseconf/internal/ir"
)

// ChangeFilter selects journaled changes. Zero fields match everything.
type ChangeFilter struct {
	SessionID string
	Variable  string
	Kind      ir.ChangeKind
	Cause     string
}

// where returns the WHERE clause over the changes table aliased as c, and
// its parameters. Values are always bound, never interpolated.
func (f ChangeFilter) where() (string, []any) {
	var (
		conds  []string
		params []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		conds = append(conds, "c."+column+" = ?")
		params = append(params, value)
	}
	add("session_id", f.SessionID)
	add("variable", f.Variable)
	add("kind", string(f.Kind))
	add("cause", f.Cause)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

// QueryChanges returns the changes matching f, ORDER BY session insertion
// then seq so a trace across sessions reads in commit order.
func (s *Store) QueryChanges(ctx context.Context, f ChangeFilter) ([]ir.ChangeRecord, error) {
	where, params := f.where()
	query := `
		SELECT c.session_id, c.seq, c.variable, c.kind, c.old_value, c.new_value, c.cause, c.detail
		FROM changes c
		JOIN sessions s ON s.id = c.session_id` + where + `
		ORDER BY s.rowid ASC, c.seq ASC`

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	return scanChanges(rows)
}
