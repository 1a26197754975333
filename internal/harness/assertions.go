package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Trace    Trace  // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTrace:\n")
	fmt.Fprintf(&buf, "  session: %s\n", e.Trace.Session)
	fmt.Fprintf(&buf, "  violations: %v\n", codes(e.Trace.Violations))
	fmt.Fprintf(&buf, "  monitor: %v\n", codes(e.Trace.Monitor))
	fmt.Fprintf(&buf, "  repairs: %v\n", e.Trace.Repairs)
	if e.Trace.Blocked {
		fmt.Fprintf(&buf, "  blocked\n")
	} else {
		fmt.Fprintf(&buf, "  view: %v\n", e.Trace.View)
		fmt.Fprintf(&buf, "  boundaries: %v\n", e.Trace.Boundaries)
	}
	return buf.String()
}

func codes(vs []TraceViolation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Code
	}
	return out
}

func callIDs(vs []TraceViolation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.CallID
	}
	return out
}

// expectEqual compares an ordered list; nil expected means unchecked.
func expectEqual[T comparable](typ string, expected, actual []T, trace Trace) error {
	if expected == nil || slices.Equal(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", actual),
		Trace:    trace,
	}
}

func expectFlag(typ string, expected *bool, actual bool, trace Trace) error {
	if expected == nil || *expected == actual {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%t", *expected),
		Actual:   fmt.Sprintf("%t", actual),
		Trace:    trace,
	}
}

// assertViolations checks the pre-repair integrity violations.
func assertViolations(trace Trace, a Assertion) error {
	if err := expectEqual(AssertViolations+".codes", a.Codes, codes(trace.Violations), trace); err != nil {
		return err
	}
	return expectEqual(AssertViolations+".call_ids", a.CallIDs, callIDs(trace.Violations), trace)
}

// needsView fails view assertions on a blocked session instead of
// comparing against empty fields.
func needsView(trace Trace, typ string) error {
	if !trace.Blocked {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: "a view",
		Actual:   errBlocked.Error(),
		Trace:    trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	trace := result.Trace

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertViolations:
			err = assertViolations(trace, assertion)
		case AssertRepairs:
			err = expectEqual(AssertRepairs, assertion.CallIDs, trace.Repairs, trace)
		case AssertMonitor:
			err = expectEqual(AssertMonitor, assertion.Codes, codes(trace.Monitor), trace)
		case AssertBlocked:
			err = expectFlag(AssertBlocked, assertion.Value, trace.Blocked, trace)
		case AssertView:
			if err = needsView(trace, AssertView); err == nil {
				err = expectEqual(AssertView, assertion.IDs, trace.View, trace)
			}
		case AssertBoundaries:
			if err = needsView(trace, AssertBoundaries); err == nil {
				err = expectEqual(AssertBoundaries, assertion.Members, trace.Boundaries, trace)
			}
		case AssertMessages:
			if err = needsView(trace, AssertMessages); err == nil {
				err = expectEqual(AssertMessages, assertion.Roles, trace.Roles, trace)
			}
		case AssertUnresolvedRequest:
			if err = needsView(trace, AssertUnresolvedRequest); err == nil {
				err = expectFlag(AssertUnresolvedRequest, assertion.Value, trace.UnresolvedRequest, trace)
			}
		case AssertConverged:
			if err = needsView(trace, AssertConverged); err == nil {
				err = expectFlag(AssertConverged, assertion.Value, trace.Converged, trace)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
