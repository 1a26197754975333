// Package store provides SQLite-backed durable storage for condense event
// logs.
//
// The store is a reference adapter for the raw event log: an ordered,
// append-only sequence of events per session with stable IDs. Nothing in the
// view, integrity or compliance packages depends on its layout.
//
// # Critical Patterns
//
// Append-only, idempotent writes
//   - PRIMARY KEY(session_id, id) with ON CONFLICT DO NOTHING
//   - Re-appending an event (e.g. a repair computed twice) is a no-op
//
// Logical ordering
//   - Each session has a monotonic seq assigned inside the append transaction
//   - All reads use ORDER BY seq ASC, id COLLATE BINARY ASC
//   - Timestamps are payload, never used for ordering
//
// Canonical payloads
//   - Events are stored as their ir.WireEvent JSON form
//   - Action arguments are rewritten as RFC 8785 canonical JSON
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
