// Package harness runs conformance scenarios against the engine.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: partial_batch
//	description: "What this scenario validates"
//	session: s1            # optional fixed session ID
//	loop_rule: reasoning   # optional: reasoning | all_runs
//	max_iterations: 10     # optional fixed-point cap
//	events:
//	  - { kind: message, id: m1, content: "hi" }
//	  - { kind: action, id: a1, call_id: c1, response_id: r1, tool_name: shell }
//	  - { kind: observation, id: o1, call_id: c1, action_id: a1, content: ok }
//	  - { kind: compaction, id: k1, forgotten: [a1, o1] }
//	assertions:
//	  - { type: violations, codes: [] }
//	  - { type: view, ids: [m1] }
//	  - { type: boundaries, members: [0, 1] }
//
// # Execution
//
// Each scenario runs against a fresh in-memory store. The events are
// enqueued on an engine and written by its Run loop, which taps the live
// compliance monitor. The harness then resumes the session (validate and
// repair) and prepares a turn (integrity gate and view). Every stage's
// outcome lands in the Trace that assertions and golden files inspect.
//
// # Assertion Types
//
//   - violations: integrity violations found before repair (codes, call_ids)
//   - repairs: call-ids that received a synthetic observation
//   - monitor: live compliance violation codes, in arrival order
//   - blocked: whether the pre-turn gate refused the session
//   - view: event IDs of the view; a summary shows as "summary:<compaction-id>"
//   - boundaries: Boundary Set members
//   - unresolved_request, converged: view flags
//   - messages: chat roles of the formatted view
//
// # Deterministic Testing
//
// Timestamps come from testutil.DeterministicClock and the session ID from
// testutil.FixedSessionGenerator, so identical scenarios produce identical
// traces for golden comparison.
package harness
