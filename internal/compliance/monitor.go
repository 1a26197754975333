// Package compliance watches a live event stream for tool-call contract
// violations.
//
// A Monitor is a per-session state machine fed one event at a time in
// arrival order. It never rejects an event: violations are recorded, logged
// and counted for observability, and processing continues. The hard gate for
// outbound model calls lives in package integrity.
//
// A Monitor is not safe for concurrent use. The owner of the session's append
// path serializes calls to Process.
package compliance

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/condense/internal/ir"
)

// ViolationCode categorizes a live-stream violation.
type ViolationCode string

const (
	// CodeInterleavedMessage: a Message arrived while calls were pending.
	CodeInterleavedMessage ViolationCode = "interleaved_message"

	// CodeDuplicateResult: an observation arrived for a completed call.
	CodeDuplicateResult ViolationCode = "duplicate_result"

	// CodeUnmatchedResult: an observation arrived for a call never issued, or
	// before its Action.
	CodeUnmatchedResult ViolationCode = "unmatched_result"
)

// Violation records one contract violation.
type Violation struct {
	Code    ViolationCode `json:"code"`
	EventID string        `json:"event_id"`
	CallID  string        `json:"call_id,omitempty"`
	Message string        `json:"message"`
}

func (v Violation) String() string {
	if v.CallID == "" {
		return fmt.Sprintf("%s: event=%s: %s", v.Code, v.EventID, v.Message)
	}
	return fmt.Sprintf("%s: call_id=%s event=%s: %s", v.Code, v.CallID, v.EventID, v.Message)
}

// Monitor tracks pending and completed calls for one session.
type Monitor struct {
	session    string
	pending    map[string]string // call-id -> action-id
	completed  map[string]bool
	violations []Violation
	logger     *slog.Logger
	metrics    *Metrics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger violations are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics the monitor updates.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithSession labels log lines with a session ID.
func WithSession(id string) Option {
	return func(m *Monitor) {
		m.session = id
	}
}

// New returns a Monitor with empty state.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		pending:   make(map[string]string),
		completed: make(map[string]bool),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Process classifies e against the current state, updates the state and
// returns the violations e caused. The event is always accepted.
func (m *Monitor) Process(e ir.Event) []Violation {
	if m.metrics != nil {
		m.metrics.events.WithLabelValues(string(e.Kind())).Inc()
	}

	v, ok := m.step(e)
	if !ok {
		return nil
	}

	m.violations = append(m.violations, v)
	m.logger.Warn("compliance violation",
		"session", m.session,
		"code", v.Code,
		"event_id", v.EventID,
		"call_id", v.CallID,
		"pending", len(m.pending),
	)
	if m.metrics != nil {
		m.metrics.violations.WithLabelValues(string(v.Code)).Inc()
	}
	return []Violation{v}
}

// Prime replays history into the state without recording, logging or
// counting anything. Used when a monitor is attached to an existing session.
func (m *Monitor) Prime(events []ir.Event) {
	for _, e := range events {
		m.step(e)
	}
}

// step applies the transition table for e.
func (m *Monitor) step(e ir.Event) (Violation, bool) {
	id := ir.IDOf(e)

	switch ev := e.(type) {
	case ir.Action:
		if _, already := m.pending[ev.CallID]; !already {
			m.addPending(1)
		}
		m.pending[ev.CallID] = ev.ID
		return Violation{}, false

	case ir.Message:
		if len(m.pending) == 0 {
			return Violation{}, false
		}
		return Violation{
			Code:    CodeInterleavedMessage,
			EventID: id,
			Message: fmt.Sprintf("message interleaved with %d pending call(s)", len(m.pending)),
		}, true

	case ir.Observation, ir.RejectedObservation, ir.ErrorObservation:
		callID, _ := ir.CallIDOf(e)
		if _, ok := m.pending[callID]; ok {
			delete(m.pending, callID)
			m.completed[callID] = true
			m.addPending(-1)
			return Violation{}, false
		}
		if m.completed[callID] {
			return Violation{
				Code:    CodeDuplicateResult,
				EventID: id,
				CallID:  callID,
				Message: "result for a call that already completed",
			}, true
		}
		return Violation{
			Code:    CodeUnmatchedResult,
			EventID: id,
			CallID:  callID,
			Message: "result for a call that was never issued",
		}, true
	}
	return Violation{}, false
}

func (m *Monitor) addPending(delta float64) {
	if m.metrics != nil {
		m.metrics.pending.Add(delta)
	}
}

// Violations returns every violation recorded so far, in arrival order.
func (m *Monitor) Violations() []Violation {
	return slices.Clone(m.violations)
}

// Pending returns a copy of the pending call-id to action-id mapping.
func (m *Monitor) Pending() map[string]string {
	return maps.Clone(m.pending)
}

// Completed returns the completed call-ids in sorted order.
func (m *Monitor) Completed() []string {
	return slices.Sorted(maps.Keys(m.completed))
}
