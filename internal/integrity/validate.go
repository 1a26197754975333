package integrity

import (
	"fmt"
	"slices"

	"github.com/roach88/condense/internal/ir"
)

// ViolationCode categorizes a structural violation.
type ViolationCode string

const (
	// CodeOrphanAction marks an Action no observation answers.
	CodeOrphanAction ViolationCode = "orphan_action"

	// CodeOrphanObservation marks an observation with no preceding Action for
	// its call-id.
	CodeOrphanObservation ViolationCode = "orphan_observation"

	// CodeDuplicateObservation marks a second observation for a call-id that
	// was already answered.
	CodeDuplicateObservation ViolationCode = "duplicate_observation"

	// CodeDuplicateAction marks an Action reusing a call-id an earlier
	// Action already holds. No observation can tell the two apart.
	CodeDuplicateAction ViolationCode = "duplicate_action"
)

// Violation describes one structural problem in a log.
type Violation struct {
	Code    ViolationCode `json:"code"`
	CallID  string        `json:"call_id"`
	EventID string        `json:"event_id"`
	Message string        `json:"message"`
}

// String formats the violation as code, call-id, event and message.
func (v Violation) String() string {
	return fmt.Sprintf("%s: call_id=%s event=%s: %s", v.Code, v.CallID, v.EventID, v.Message)
}

// Validate returns every structural violation in log, ordered by the
// position of the offending event. An empty result means every Action has
// its own call-id and exactly one observation, and no observation is
// orphaned or duplicated.
func Validate(log ir.Log) []Violation {
	type positioned struct {
		position  int
		violation Violation
	}
	var found []positioned

	type pendingAction struct {
		id       string
		position int
	}
	pending := make(map[string]pendingAction)
	answered := make(map[string]bool)

	for i, e := range log.All() {
		callID, ok := ir.CallIDOf(e)
		if !ok {
			continue
		}

		if a, isAction := e.(ir.Action); isAction {
			if _, held := pending[callID]; held || answered[callID] {
				found = append(found, positioned{i, Violation{
					Code:    CodeDuplicateAction,
					CallID:  callID,
					EventID: a.ID,
					Message: "action reuses a call-id already issued",
				}})
				continue
			}
			pending[callID] = pendingAction{id: a.ID, position: i}
			continue
		}

		_, isPending := pending[callID]
		switch {
		case answered[callID]:
			found = append(found, positioned{i, Violation{
				Code:    CodeDuplicateObservation,
				CallID:  callID,
				EventID: ir.IDOf(e),
				Message: fmt.Sprintf("%s answers a call that already has a result", e.Kind()),
			}})
		case isPending:
			delete(pending, callID)
			answered[callID] = true
		default:
			found = append(found, positioned{i, Violation{
				Code:    CodeOrphanObservation,
				CallID:  callID,
				EventID: ir.IDOf(e),
				Message: fmt.Sprintf("%s has no preceding action", e.Kind()),
			}})
		}
	}

	for callID, p := range pending {
		found = append(found, positioned{p.position, Violation{
			Code:    CodeOrphanAction,
			CallID:  callID,
			EventID: p.id,
			Message: "action has no observation",
		}})
	}

	slices.SortStableFunc(found, func(a, b positioned) int {
		return a.position - b.position
	})

	violations := make([]Violation, len(found))
	for i, f := range found {
		violations[i] = f.violation
	}
	return violations
}

// orphanActions returns the Actions Validate reports as orphans, in log order.
func orphanActions(log ir.Log) []ir.Action {
	var out []ir.Action
	for _, v := range Validate(log) {
		if v.Code != CodeOrphanAction {
			continue
		}
		if i, ok := log.Index(v.EventID); ok {
			if a, isAction := log.At(i).(ir.Action); isAction {
				out = append(out, a)
			}
		}
	}
	return out
}
