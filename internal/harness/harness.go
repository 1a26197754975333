package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/condense/internal/engine"
	"github.com/roach88/condense/internal/format"
	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/property"
	"github.com/roach88/condense/internal/store"
	"github.com/roach88/condense/internal/testutil"
	"github.com/roach88/condense/internal/view"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and engine
// 2. Enqueue the scenario's events and drain the Run loop
// 3. Resume the session (validate and repair)
// 4. Prepare a turn (integrity gate and view)
// 5. Evaluate assertions against the trace
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rule, err := property.ParseLoopRule(scenario.LoopRule)
	if err != nil {
		return nil, fmt.Errorf("loop_rule: %w", err)
	}

	clk := testutil.NewDeterministicClock()
	logger := slog.New(slog.DiscardHandler) // Suppress logs in tests
	builder := view.NewBuilder(
		view.WithLoopRule(rule),
		view.WithMaxIterations(scenario.MaxIterations),
		view.WithSink(view.SlogSink(logger)),
	)
	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithClock(clk),
		engine.WithViewBuilder(builder),
		engine.WithSessionGenerator(testutil.NewFixedSessionGenerator(scenario.Session)),
	)

	events, err := scenario.Build(clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build events: %w", err)
	}

	result := NewResult()
	sessionID := eng.NewSession()
	result.Trace.Session = sessionID

	for _, e := range events {
		eng.Enqueue(engine.Append{SessionID: sessionID, Event: e})
	}
	eng.Stop()
	if err := eng.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to run engine: %w", err)
	}

	// Resume replaces the session monitor, so read it first.
	for _, v := range eng.Violations(sessionID) {
		result.Trace.Monitor = append(result.Trace.Monitor, TraceViolation{
			Code:    string(v.Code),
			CallID:  v.CallID,
			EventID: v.EventID,
		})
	}

	report, err := eng.Resume(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}
	for _, v := range report.Violations {
		result.Trace.Violations = append(result.Trace.Violations, TraceViolation{
			Code:    string(v.Code),
			CallID:  v.CallID,
			EventID: v.EventID,
		})
	}
	for _, r := range report.Repairs {
		callID, _ := ir.CallIDOf(r)
		result.Trace.Repairs = append(result.Trace.Repairs, callID)
	}
	for _, v := range report.Remaining {
		result.Trace.Remaining = append(result.Trace.Remaining, string(v.Code))
	}

	v, err := eng.PrepareTurn(ctx, sessionID)
	switch {
	case engine.IsCorruptLogError(err):
		result.Trace.Blocked = true
	case err != nil:
		return nil, fmt.Errorf("failed to prepare turn: %w", err)
	default:
		recordView(&result.Trace, v)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// recordView copies the view into the trace. Synthetic events get stable
// display names since their IDs are derived hashes.
func recordView(t *Trace, v *view.View) {
	for _, e := range v.Events {
		t.View = append(t.View, displayID(e))
	}
	t.Boundaries = append(t.Boundaries, v.Boundaries.Members()...)
	t.UnresolvedRequest = v.UnresolvedRequest
	t.Converged = v.Converged
	t.Iterations = v.Iterations
	for _, msg := range format.OpenAI(v) {
		t.Roles = append(t.Roles, msg.Role)
	}
}

func displayID(e ir.Event) string {
	switch ev := e.(type) {
	case ir.Summary:
		return "summary:" + ev.CompactionID
	case ir.ErrorObservation:
		if ev.ID == ir.RepairEventID(ev.CallID, ev.ActionID) {
			return "repair:" + ev.CallID
		}
	}
	return ir.IDOf(e)
}

// errBlocked is reported when a view assertion meets a blocked session.
var errBlocked = errors.New("session was blocked before a view was built")
