package property

import (
	"github.com/roach88/condense/internal/boundary"
	"github.com/roach88/condense/internal/ir"
)

// CallMatching requires every Action in the candidate to have an
// observation-class counterpart with the same call-id, and every observation
// to have its Action.
type CallMatching struct{}

// Name returns "call_matching".
func (CallMatching) Name() string { return "call_matching" }

// Enforce evicts Actions with no observation in the candidate and
// observations whose Action is absent from it.
func (CallMatching) Enforce(candidate []ir.Event, _ ir.Log) Eviction {
	actions, observations := callIndex(candidate)

	evict := Eviction{}
	for _, e := range candidate {
		callID, ok := ir.CallIDOf(e)
		if !ok {
			continue
		}
		if _, isAction := e.(ir.Action); isAction {
			if !observations[callID] {
				evict.Add(ir.IDOf(e))
			}
			continue
		}
		if !actions[callID] {
			evict.Add(ir.IDOf(e))
		}
	}
	return evict
}

// ManipulationIndices removes every position at which a matched call has
// been issued but not yet answered.
func (CallMatching) ManipulationIndices(candidate []ir.Event, _ ir.Log) *boundary.Set {
	set := boundary.Complete(len(candidate))
	actions, observations := callIndex(candidate)

	open := make(map[string]int)
	for i, e := range candidate {
		if len(open) > 0 {
			set.Remove(i)
		}
		callID, ok := ir.CallIDOf(e)
		if !ok {
			continue
		}
		if _, isAction := e.(ir.Action); isAction {
			if observations[callID] {
				open[callID]++
			}
			continue
		}
		if actions[callID] && open[callID] > 0 {
			open[callID]--
			if open[callID] == 0 {
				delete(open, callID)
			}
		}
	}
	return set
}

// callIndex reports which call-ids have an Action and which have an
// observation-class event in events.
func callIndex(events []ir.Event) (actions, observations map[string]bool) {
	actions = make(map[string]bool)
	observations = make(map[string]bool)
	for _, e := range events {
		callID, ok := ir.CallIDOf(e)
		if !ok {
			continue
		}
		if _, isAction := e.(ir.Action); isAction {
			actions[callID] = true
		} else {
			observations[callID] = true
		}
	}
	return actions, observations
}
