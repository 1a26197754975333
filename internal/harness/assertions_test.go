package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func sampleResult() *Result {
	r := NewResult()
	r.Trace.Session = "s1"
	r.Trace.Violations = []TraceViolation{{Code: "orphan_action", CallID: "c1", EventID: "a1"}}
	r.Trace.Repairs = []string{"c1"}
	r.Trace.Monitor = []TraceViolation{{Code: "interleaved_message", EventID: "m1"}}
	r.Trace.View = []string{"a1", "m1", "repair:c1"}
	r.Trace.Boundaries = []int{0, 3}
	r.Trace.Converged = true
	r.Trace.Iterations = 1
	r.Trace.Roles = []string{"assistant", "tool", "user"}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertViolations, Codes: []string{"orphan_action"}, CallIDs: []string{"c1"}},
		{Type: AssertRepairs, CallIDs: []string{"c1"}},
		{Type: AssertMonitor, Codes: []string{"interleaved_message"}},
		{Type: AssertBlocked, Value: boolPtr(false)},
		{Type: AssertView, IDs: []string{"a1", "m1", "repair:c1"}},
		{Type: AssertBoundaries, Members: []int{0, 3}},
		{Type: AssertUnresolvedRequest, Value: boolPtr(false)},
		{Type: AssertConverged, Value: boolPtr(true)},
		{Type: AssertMessages, Roles: []string{"assistant", "tool", "user"}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertViolations, Codes: []string{}},
		{Type: AssertBoundaries, Members: []int{0, 3}},
		{Type: AssertView, IDs: []string{"a1"}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "Assertion failed: violations.codes")
	assert.Contains(t, errs[1], "Assertion failed: view")
	assert.Contains(t, errs[1], "Expected: [a1]")
}

func TestEvaluateAssertions_CallIDMismatch(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertViolations, CallIDs: []string{"c2"}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "violations.call_ids")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "vibes"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "vibes"`)
}

func TestEvaluateAssertions_BlockedSessionHasNoView(t *testing.T) {
	r := NewResult()
	r.Trace.Blocked = true

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertBlocked, Value: boolPtr(true)},
		{Type: AssertView, IDs: []string{}},
		{Type: AssertConverged, Value: boolPtr(false)},
	})
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.Contains(t, e, "blocked before a view was built")
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertBoundaries,
		Expected: "[0 2]",
		Actual:   "[0 3]",
		Trace:    sampleResult().Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: boundaries")
	assert.Contains(t, msg, "Expected: [0 2]")
	assert.Contains(t, msg, "Actual: [0 3]")
	assert.Contains(t, msg, "session: s1")
	assert.Contains(t, msg, "violations: [orphan_action]")
	assert.Contains(t, msg, "view: [a1 m1 repair:c1]")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("first")
	r.AddError("second")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}
