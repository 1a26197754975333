// Package ir provides the canonical event representation for condense.
//
// This package contains the event union, the immutable Log snapshot, and the
// wire form used by storage and snapshots. All other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - Event is a sealed interface: only the kinds declared here implement it,
//     so type switches over events are exhaustive within the module.
//   - Unknown kinds decode to Other and are ignored by every algorithm.
//   - Events are immutable once created. A Log is a snapshot; appending
//     returns a new Log and never touches the original.
//   - Synthetic events (repairs, summaries) get content-addressed IDs so that
//     recomputation yields identical output.
//   - All JSON tags use snake_case.
package ir
