package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// WireEvent is the flat serialization of an Event. One struct covers every
// kind; fields that do not apply to a kind are left empty.
//
// Used by the store (JSON payload column), snapshots (CBOR) and the
// conformance harness.
type WireEvent struct {
	Kind          EventKind       `json:"kind" cbor:"kind"`
	ID            string          `json:"id" cbor:"id"`
	Timestamp     time.Time       `json:"timestamp" cbor:"timestamp"`
	Source        Source          `json:"source,omitempty" cbor:"source,omitempty"`
	Role          Role            `json:"role,omitempty" cbor:"role,omitempty"`
	Content       string          `json:"content,omitempty" cbor:"content,omitempty"`
	CallID        string          `json:"call_id,omitempty" cbor:"call_id,omitempty"`
	ResponseID    string          `json:"response_id,omitempty" cbor:"response_id,omitempty"`
	ActionID      string          `json:"action_id,omitempty" cbor:"action_id,omitempty"`
	ToolName      string          `json:"tool_name,omitempty" cbor:"tool_name,omitempty"`
	Arguments     json.RawMessage `json:"arguments,omitempty" cbor:"arguments,omitempty"`
	Reasoning     string          `json:"reasoning,omitempty" cbor:"reasoning,omitempty"`
	Reason        string          `json:"reason,omitempty" cbor:"reason,omitempty"`
	Forgotten     []string        `json:"forgotten,omitempty" cbor:"forgotten,omitempty"`
	Summary       *string         `json:"summary,omitempty" cbor:"summary,omitempty"`
	SummaryOffset *int            `json:"summary_offset,omitempty" cbor:"summary_offset,omitempty"`
	CompactionID  string          `json:"compaction_id,omitempty" cbor:"compaction_id,omitempty"`
}

// WireError reports a wire event that cannot be decoded into an Event.
type WireError struct {
	ID      string
	Kind    EventKind
	Message string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("wire event %q (%s): %s", e.ID, e.Kind, e.Message)
}

// ToWire flattens an event.
func ToWire(e Event) WireEvent {
	meta := e.EventMeta()
	w := WireEvent{
		Kind:      e.Kind(),
		ID:        meta.ID,
		Timestamp: meta.Timestamp,
		Source:    meta.Source,
	}

	switch ev := e.(type) {
	case Message:
		w.Role = ev.Role
		w.Content = ev.Content
	case Action:
		w.CallID = ev.CallID
		w.ResponseID = ev.ResponseID
		w.ToolName = ev.ToolName
		w.Arguments = ev.Arguments
		w.Reasoning = ev.Reasoning
	case Observation:
		w.CallID = ev.CallID
		w.ActionID = ev.ActionID
		w.Content = ev.Content
	case RejectedObservation:
		w.CallID = ev.CallID
		w.ActionID = ev.ActionID
		w.Reason = ev.Reason
	case ErrorObservation:
		w.CallID = ev.CallID
		w.ActionID = ev.ActionID
		w.Content = ev.Content
	case Compaction:
		w.Forgotten = ev.Forgotten
		w.Summary = ev.Summary
		w.SummaryOffset = ev.SummaryOffset
	case CompactionRequest:
		w.Reason = ev.Reason
	case Summary:
		w.CompactionID = ev.CompactionID
		w.Content = ev.Content
	case Other:
		// Kind already carries the original discriminator.
	}
	return w
}

// FromWire rebuilds an event. Unknown kinds become Other. Tool events without
// a call-id are rejected: they could never be matched.
func FromWire(w WireEvent) (Event, error) {
	if w.ID == "" {
		return nil, &WireError{ID: w.ID, Kind: w.Kind, Message: "id is required"}
	}
	if w.Kind == "" {
		return nil, &WireError{ID: w.ID, Kind: w.Kind, Message: "kind is required"}
	}

	meta := Meta{ID: w.ID, Timestamp: w.Timestamp, Source: w.Source}

	switch w.Kind {
	case KindAction, KindObservation, KindRejectedObservation, KindErrorObservation:
		if w.CallID == "" {
			return nil, &WireError{ID: w.ID, Kind: w.Kind, Message: "call_id is required"}
		}
	}

	switch w.Kind {
	case KindMessage:
		role := w.Role
		if role == "" {
			role = RoleUser
		}
		return Message{Meta: meta, Role: role, Content: w.Content}, nil
	case KindAction:
		return Action{
			Meta:       meta,
			CallID:     w.CallID,
			ResponseID: w.ResponseID,
			ToolName:   w.ToolName,
			Arguments:  w.Arguments,
			Reasoning:  w.Reasoning,
		}, nil
	case KindObservation:
		return Observation{Meta: meta, CallID: w.CallID, ActionID: w.ActionID, Content: w.Content}, nil
	case KindRejectedObservation:
		return RejectedObservation{Meta: meta, CallID: w.CallID, ActionID: w.ActionID, Reason: w.Reason}, nil
	case KindErrorObservation:
		return ErrorObservation{Meta: meta, CallID: w.CallID, ActionID: w.ActionID, Content: w.Content}, nil
	case KindCompaction:
		if (w.Summary == nil) != (w.SummaryOffset == nil) {
			return nil, &WireError{ID: w.ID, Kind: w.Kind, Message: "summary and summary_offset must be set together"}
		}
		if w.SummaryOffset != nil && *w.SummaryOffset < 0 {
			return nil, &WireError{ID: w.ID, Kind: w.Kind, Message: "summary_offset must be non-negative"}
		}
		return Compaction{Meta: meta, Forgotten: w.Forgotten, Summary: w.Summary, SummaryOffset: w.SummaryOffset}, nil
	case KindCompactionRequest:
		return CompactionRequest{Meta: meta, Reason: w.Reason}, nil
	case KindSummary:
		return Summary{Meta: meta, CompactionID: w.CompactionID, Content: w.Content}, nil
	default:
		return Other{Meta: meta, OtherKind: string(w.Kind)}, nil
	}
}

// ToWireAll flattens a slice of events.
func ToWireAll(events []Event) []WireEvent {
	out := make([]WireEvent, len(events))
	for i, e := range events {
		out[i] = ToWire(e)
	}
	return out
}

// FromWireAll rebuilds a slice of events, stopping at the first bad record.
func FromWireAll(wires []WireEvent) ([]Event, error) {
	out := make([]Event, 0, len(wires))
	for i, w := range wires {
		e, err := FromWire(w)
		if err != nil {
			return nil, fmt.Errorf("event[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
