package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/condense/internal/ir"
)

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	EventCount int       `json:"event_count"`
	LastSeq    int64     `json:"last_seq"`
}

// ReadWire returns a session's events in wire form.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadWire(ctx context.Context, sessionID string) ([]ir.WireEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	wires := []ir.WireEvent{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		w, err := unmarshalWire(payload)
		if err != nil {
			return nil, err
		}
		wires = append(wires, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return wires, nil
}

// ReadLog returns an immutable snapshot of a session's log.
func (s *Store) ReadLog(ctx context.Context, sessionID string) (ir.Log, error) {
	wires, err := s.ReadWire(ctx, sessionID)
	if err != nil {
		return ir.Log{}, fmt.Errorf("read log %s: %w", sessionID, err)
	}
	events, err := ir.FromWireAll(wires)
	if err != nil {
		return ir.Log{}, fmt.Errorf("read log %s: %w", sessionID, err)
	}
	return ir.NewLog(events), nil
}

// CountEvents returns the number of events stored for a session.
func (s *Store) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE session_id = ?",
		sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// ListSessions returns every session ordered by ID.
//
// Returns an empty slice (not nil) if there are no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, COUNT(e.id), COALESCE(MAX(e.seq), 0)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var info SessionInfo
		var created string
		if err := rows.Scan(&info.ID, &created, &info.EventCount, &info.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at for %s: %w", info.ID, err)
		}
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
