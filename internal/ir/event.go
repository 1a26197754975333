package ir

import (
	"encoding/json"
	"time"
)

// EventKind is the discriminator of the event union.
type EventKind string

const (
	KindMessage             EventKind = "message"
	KindAction              EventKind = "action"
	KindObservation         EventKind = "observation"
	KindRejectedObservation EventKind = "rejected_observation"
	KindErrorObservation    EventKind = "error_observation"
	KindCompaction          EventKind = "compaction"
	KindCompactionRequest   EventKind = "compaction_request"
	KindSummary             EventKind = "summary"
)

// Source tags who produced an event.
type Source string

const (
	SourceUser        Source = "user"
	SourceAgent       Source = "agent"
	SourceEnvironment Source = "environment"
)

// Role is the conversational role of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Meta is the envelope every event carries.
type Meta struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

// Event is a sealed interface over the known event kinds.
// Only the types in this file implement it.
type Event interface {
	EventMeta() Meta
	Kind() EventKind
	event() // Sealed
}

// Message is a conversational turn.
type Message struct {
	Meta
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Action is a tool invocation issued by the model. Sibling actions from one
// model turn share ResponseID.
type Action struct {
	Meta
	CallID     string          `json:"call_id"`
	ResponseID string          `json:"response_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Reasoning  string          `json:"reasoning,omitempty"` // Thinking content attached to the batch
}

// Observation is the successful result of an Action.
type Observation struct {
	Meta
	CallID   string `json:"call_id"`
	ActionID string `json:"action_id"`
	Content  string `json:"content"`
}

// RejectedObservation records an Action that was refused before execution.
type RejectedObservation struct {
	Meta
	CallID   string `json:"call_id"`
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// ErrorObservation records an Action whose execution failed or was interrupted.
type ErrorObservation struct {
	Meta
	CallID   string `json:"call_id"`
	ActionID string `json:"action_id"`
	Content  string `json:"content"`
}

// Compaction is a committed directive declaring events forgotten.
// Summary and SummaryOffset are set together when the compaction replaces the
// forgotten span with summary text.
type Compaction struct {
	Meta
	Forgotten     []string `json:"forgotten"`
	Summary       *string  `json:"summary,omitempty"`
	SummaryOffset *int     `json:"summary_offset,omitempty"`
}

// CompactionRequest marks that a compaction is due but has not happened.
type CompactionRequest struct {
	Meta
	Reason string `json:"reason,omitempty"`
}

// Summary is the synthetic event the view builder splices in place of a
// compacted span. It never appears in a raw log.
type Summary struct {
	Meta
	CompactionID string `json:"compaction_id"`
	Content      string `json:"content"`
}

// Other is any event kind this engine does not interpret.
type Other struct {
	Meta
	OtherKind string `json:"kind"`
}

func (e Message) EventMeta() Meta             { return e.Meta }
func (e Action) EventMeta() Meta              { return e.Meta }
func (e Observation) EventMeta() Meta         { return e.Meta }
func (e RejectedObservation) EventMeta() Meta { return e.Meta }
func (e ErrorObservation) EventMeta() Meta    { return e.Meta }
func (e Compaction) EventMeta() Meta          { return e.Meta }
func (e CompactionRequest) EventMeta() Meta   { return e.Meta }
func (e Summary) EventMeta() Meta             { return e.Meta }
func (e Other) EventMeta() Meta               { return e.Meta }

func (Message) Kind() EventKind             { return KindMessage }
func (Action) Kind() EventKind              { return KindAction }
func (Observation) Kind() EventKind         { return KindObservation }
func (RejectedObservation) Kind() EventKind { return KindRejectedObservation }
func (ErrorObservation) Kind() EventKind    { return KindErrorObservation }
func (Compaction) Kind() EventKind          { return KindCompaction }
func (CompactionRequest) Kind() EventKind   { return KindCompactionRequest }
func (Summary) Kind() EventKind             { return KindSummary }
func (e Other) Kind() EventKind             { return EventKind(e.OtherKind) }

func (Message) event()             {}
func (Action) event()              {}
func (Observation) event()         {}
func (RejectedObservation) event() {}
func (ErrorObservation) event()    {}
func (Compaction) event()          {}
func (CompactionRequest) event()   {}
func (Summary) event()             {}
func (Other) event()               {}

// HasSummary reports whether the compaction carries both summary text and an
// insertion offset.
func (e Compaction) HasSummary() bool {
	return e.Summary != nil && e.SummaryOffset != nil
}

// IDOf returns the event ID.
func IDOf(e Event) string {
	return e.EventMeta().ID
}

// IsObservation reports whether e is one of the three terminal states of a
// call: Observation, RejectedObservation or ErrorObservation.
func IsObservation(e Event) bool {
	switch e.(type) {
	case Observation, RejectedObservation, ErrorObservation:
		return true
	}
	return false
}

// CallIDOf returns the call-id carried by an Action or an observation-class
// event. ok is false for every other kind.
func CallIDOf(e Event) (callID string, ok bool) {
	switch ev := e.(type) {
	case Action:
		return ev.CallID, true
	case Observation:
		return ev.CallID, true
	case RejectedObservation:
		return ev.CallID, true
	case ErrorObservation:
		return ev.CallID, true
	}
	return "", false
}

// ActionIDOf returns the answered action ID of an observation-class event.
func ActionIDOf(e Event) (actionID string, ok bool) {
	switch ev := e.(type) {
	case Observation:
		return ev.ActionID, true
	case RejectedObservation:
		return ev.ActionID, true
	case ErrorObservation:
		return ev.ActionID, true
	}
	return "", false
}

// IsModelConvertible reports whether e can be handed to a message formatter.
// Compaction directives, requests and unknown kinds are not.
func IsModelConvertible(e Event) bool {
	switch e.(type) {
	case Message, Action, Observation, RejectedObservation, ErrorObservation, Summary:
		return true
	}
	return false
}

// IsToolEvent reports whether e is an Action or an observation-class event.
func IsToolEvent(e Event) bool {
	_, ok := CallIDOf(e)
	return ok
}

// IDs returns the IDs of events in order.
func IDs(events []Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = IDOf(e)
	}
	return ids
}
