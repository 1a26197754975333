// Package integrity validates and repairs the tool-call structure of a raw
// event log.
//
// Validate and Verify operate on the log directly, without building a view.
// Verify is the hard gate: a model request must not be formatted from a log
// that fails it.
//
// Repair is additive only. It closes each orphan action with a synthetic
// ErrorObservation from the environment, which is how an execution lost to a
// crash is represented. Duplicate and orphan observations are reported but
// never repaired: they point to a bug upstream of the log, and deleting
// committed history would hide it.
package integrity
