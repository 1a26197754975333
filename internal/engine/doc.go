// Package engine owns the append path of every session.
//
// ARCHITECTURE:
//
// Single-Writer Ingestion:
// Producers call Enqueue from any goroutine. Engine.Run drains the queue in
// one goroutine, taps each event through its session's compliance monitor,
// then persists it. A failing append is logged and skipped so one bad event
// cannot stall the session.
//
// Session Lifecycle:
//  1. NewSession mints a time-sortable session ID.
//  2. Resume validates the stored log, persists a synthetic result for every
//     orphan action, and primes the session's monitor.
//  3. PrepareTurn re-reads the log, refuses to continue if it is still
//     inconsistent, and builds the View handed to the formatter.
//  4. Compact asks a planner for a Compaction and persists it.
//
// The view builder and validator stay pure; all I/O happens here.
package engine
