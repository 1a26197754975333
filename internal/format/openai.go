// Package format turns a View into provider chat messages.
package format

import (
	"github.com/sashabaranov/go-openai"

	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/view"
)

// OpenAI renders v as chat completion messages.
//
// Sibling actions sharing a response-id become a single assistant message
// carrying every tool call, with the batch reasoning as its content. Each
// such message is followed directly by the tool results for its calls, in
// call order, wherever those results sit in the view. Chat APIs require that
// adjacency, and a repaired observation is usually appended long after its
// action.
func OpenAI(v *view.View) []openai.ChatCompletionMessage {
	return OpenAIEvents(v.Events)
}

// OpenAIEvents renders an already enforced event sequence. Events that are
// not model-convertible are skipped.
func OpenAIEvents(events []ir.Event) []openai.ChatCompletionMessage {
	results := make(map[string]ir.Event)
	for _, e := range events {
		if !ir.IsObservation(e) {
			continue
		}
		callID, _ := ir.CallIDOf(e)
		if _, seen := results[callID]; !seen {
			results[callID] = e
		}
	}

	out := make([]openai.ChatCompletionMessage, 0, len(events))
	emitted := make(map[string]bool) // event IDs already rendered

	for i, e := range events {
		if emitted[ir.IDOf(e)] {
			continue
		}
		switch ev := e.(type) {
		case ir.Message:
			out = append(out, openai.ChatCompletionMessage{
				Role:    chatRole(ev.Role),
				Content: ev.Content,
			})
		case ir.Summary:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: ev.Content,
			})
		case ir.Action:
			batch := collectBatch(events[i:], ev)
			out = append(out, assistantMessage(batch))
			for _, a := range batch {
				emitted[a.ID] = true
				if r, ok := results[a.CallID]; ok && !emitted[ir.IDOf(r)] {
					out = append(out, toolMessage(r))
					emitted[ir.IDOf(r)] = true
				}
			}
		case ir.Observation, ir.RejectedObservation, ir.ErrorObservation:
			out = append(out, toolMessage(ev))
		}
		emitted[ir.IDOf(e)] = true
	}
	return out
}

// collectBatch returns first and every later action of the same response.
// An action without a response-id is a batch of one.
func collectBatch(rest []ir.Event, first ir.Action) []ir.Action {
	batch := []ir.Action{first}
	if first.ResponseID == "" {
		return batch
	}
	for _, e := range rest[1:] {
		if a, ok := e.(ir.Action); ok && a.ResponseID == first.ResponseID {
			batch = append(batch, a)
		}
	}
	return batch
}

func assistantMessage(batch []ir.Action) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		ToolCalls: make([]openai.ToolCall, 0, len(batch)),
	}
	for _, a := range batch {
		if msg.Content == "" {
			msg.Content = a.Reasoning
		}
		args := string(a.Arguments)
		if args == "" {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   a.CallID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      a.ToolName,
				Arguments: args,
			},
		})
	}
	return msg
}

func toolMessage(e ir.Event) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool}
	switch ev := e.(type) {
	case ir.Observation:
		msg.ToolCallID = ev.CallID
		msg.Content = ev.Content
	case ir.RejectedObservation:
		msg.ToolCallID = ev.CallID
		msg.Content = "Tool call rejected: " + ev.Reason
	case ir.ErrorObservation:
		msg.ToolCallID = ev.CallID
		msg.Content = ev.Content
	}
	return msg
}

func chatRole(r ir.Role) string {
	switch r {
	case ir.RoleSystem:
		return openai.ChatMessageRoleSystem
	case ir.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
