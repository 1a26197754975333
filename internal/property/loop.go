package property

import (
	"slices"

	"github.com/roach88/condense/internal/boundary"
	"github.com/roach88/condense/internal/ir"
)

// Loop is a tool loop found in an event sequence. Start and End are inclusive
// indices into that sequence; IDs lists the loop's tool events in order.
type Loop struct {
	Start int
	End   int
	IDs   []string
}

// FindToolLoops returns the tool loops of events under rule.
//
// A run is a maximal stretch of Actions and observation-class events that no
// Message or Summary interrupts. A Compaction that forgets any event of the
// run so far ends it, so tool events appended after the compacted span start
// afresh. Other Compactions and unknown kinds neither join nor break a run.
// Under LoopRuleAllRuns every run is a loop.
// Under LoopRuleReasoning a loop starts at the first Action of the first batch
// carrying reasoning and extends to the end of its run; tool events before
// that batch belong to no loop.
func FindToolLoops(events []ir.Event, rule LoopRule) []Loop {
	var loops []Loop
	var current *Loop
	reasoningBatches := reasoningResponses(events)

	flush := func() {
		if current != nil {
			loops = append(loops, *current)
			current = nil
		}
	}

	for i, e := range events {
		switch ev := e.(type) {
		case ir.Message, ir.Summary:
			flush()
			continue
		case ir.Compaction:
			if current != nil && forgetsAny(ev, current.IDs) {
				flush()
			}
			continue
		case ir.Action:
			if current == nil && rule != LoopRuleAllRuns && !carriesReasoning(ev, reasoningBatches) {
				continue
			}
		case ir.Observation, ir.RejectedObservation, ir.ErrorObservation:
			if current == nil && rule != LoopRuleAllRuns {
				continue
			}
		default:
			continue
		}

		if current == nil {
			current = &Loop{Start: i}
		}
		current.End = i
		current.IDs = append(current.IDs, ir.IDOf(e))
	}
	flush()
	return loops
}

// reasoningResponses returns the response-ids whose batch carries reasoning
// on any member.
func reasoningResponses(events []ir.Event) map[string]bool {
	out := make(map[string]bool)
	for _, e := range events {
		if a, ok := e.(ir.Action); ok && a.Reasoning != "" && a.ResponseID != "" {
			out[a.ResponseID] = true
		}
	}
	return out
}

func forgetsAny(c ir.Compaction, ids []string) bool {
	for _, id := range c.Forgotten {
		if slices.Contains(ids, id) {
			return true
		}
	}
	return false
}

func carriesReasoning(a ir.Action, batches map[string]bool) bool {
	if a.Reasoning != "" {
		return true
	}
	return a.ResponseID != "" && batches[a.ResponseID]
}

// LoopAtomicity keeps tool loops whole.
type LoopAtomicity struct {
	Rule LoopRule
}

// Name returns "loop_atomicity".
func (LoopAtomicity) Name() string { return "loop_atomicity" }

// Enforce evicts the present events of any loop of the raw log that the
// candidate holds only in part.
func (p LoopAtomicity) Enforce(candidate []ir.Event, log ir.Log) Eviction {
	present := idSet(candidate)

	evict := Eviction{}
	for _, loop := range FindToolLoops(log.Events(), p.rule()) {
		var kept []string
		for _, id := range loop.IDs {
			if _, ok := present[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 && len(kept) < len(loop.IDs) {
			for _, id := range kept {
				evict.Add(id)
			}
		}
	}
	return evict
}

// ManipulationIndices removes every position strictly inside a loop of the
// candidate.
func (p LoopAtomicity) ManipulationIndices(candidate []ir.Event, _ ir.Log) *boundary.Set {
	set := boundary.Complete(len(candidate))
	for _, loop := range FindToolLoops(candidate, p.rule()) {
		set.RemoveRange(loop.Start+1, loop.End+1)
	}
	return set
}

func (p LoopAtomicity) rule() LoopRule {
	if p.Rule == "" {
		return LoopRuleReasoning
	}
	return p.Rule
}
