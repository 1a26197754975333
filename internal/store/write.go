package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/condense/internal/ir"
)

// Append writes events to the end of a session's log in one transaction and
// returns how many were newly inserted. The session is created on first use.
//
// Uses ON CONFLICT DO NOTHING for idempotency - an event whose ID is already
// in the session is silently skipped and does not consume a seq.
func (s *Store) Append(ctx context.Context, sessionID string, events ...ir.Event) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("append: session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sessionID, s.clock.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, fmt.Errorf("append: create session: %w", err)
	}

	seq, err := lastSeq(ctx, tx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	inserted := 0
	for _, e := range events {
		payload, err := marshalPayload(e)
		if err != nil {
			return 0, fmt.Errorf("append: %w", err)
		}
		callID, _ := ir.CallIDOf(e)

		res, err := tx.ExecContext(ctx, `
			INSERT INTO events (session_id, id, seq, kind, call_id, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, id) DO NOTHING
		`, sessionID, ir.IDOf(e), seq+1, string(e.Kind()), callID, payload)
		if err != nil {
			return 0, fmt.Errorf("append event %s: %w", ir.IDOf(e), err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("append event %s: rows affected: %w", ir.IDOf(e), err)
		}
		if n == 1 {
			seq++
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append: commit: %w", err)
	}
	return inserted, nil
}

func lastSeq(ctx context.Context, tx *sql.Tx, sessionID string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id = ?",
		sessionID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}
