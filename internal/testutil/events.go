package testutil

import (
	"github.com/roach88/condense/internal/ir"
)

// Builders for terse test logs. All events carry Epoch as their timestamp.

// Message returns a user message.
func Message(id, content string) ir.Message {
	return ir.Message{
		Meta:    ir.Meta{ID: id, Timestamp: Epoch, Source: ir.SourceUser},
		Role:    ir.RoleUser,
		Content: content,
	}
}

// Action returns a tool invocation with no reasoning.
func Action(id, callID, responseID string) ir.Action {
	return ir.Action{
		Meta:       ir.Meta{ID: id, Timestamp: Epoch, Source: ir.SourceAgent},
		CallID:     callID,
		ResponseID: responseID,
		ToolName:   "shell",
	}
}

// ReasoningAction returns a tool invocation carrying reasoning content.
func ReasoningAction(id, callID, responseID, reasoning string) ir.Action {
	a := Action(id, callID, responseID)
	a.Reasoning = reasoning
	return a
}

// Observation returns a successful result for callID.
func Observation(id, callID, actionID string) ir.Observation {
	return ir.Observation{
		Meta:     ir.Meta{ID: id, Timestamp: Epoch, Source: ir.SourceEnvironment},
		CallID:   callID,
		ActionID: actionID,
		Content:  "ok",
	}
}

// Compaction returns a directive forgetting ids, without a summary.
func Compaction(id string, forgotten ...string) ir.Compaction {
	return ir.Compaction{
		Meta:      ir.Meta{ID: id, Timestamp: Epoch, Source: ir.SourceEnvironment},
		Forgotten: forgotten,
	}
}

// SummaryCompaction returns a directive forgetting ids and reinserting
// summary at offset.
func SummaryCompaction(id, summary string, offset int, forgotten ...string) ir.Compaction {
	c := Compaction(id, forgotten...)
	c.Summary = &summary
	c.SummaryOffset = &offset
	return c
}

// Request returns a compaction request.
func Request(id string) ir.CompactionRequest {
	return ir.CompactionRequest{
		Meta:   ir.Meta{ID: id, Timestamp: Epoch, Source: ir.SourceEnvironment},
		Reason: "budget",
	}
}

// Log snapshots events.
func Log(events ...ir.Event) ir.Log {
	return ir.NewLog(events)
}
