// Package property implements the atomicity properties a View must satisfy
// before it is handed to a model: call matching, batch atomicity and tool-loop
// atomicity.
//
// Each property inspects a candidate sequence against the full raw log and
// reports two things: the events it wants evicted because they only partially
// represent an atomic unit, and the Boundary Set consistent with its
// invariant over the candidate. Properties are pure and hold no state.
package property

import (
	"fmt"
	"slices"

	"github.com/roach88/condense/internal/boundary"
	"github.com/roach88/condense/internal/ir"
)

// Property is one atomicity invariant.
type Property interface {
	// Name identifies the property in diagnostics.
	Name() string

	// Enforce returns the IDs of candidate events that must be evicted for the
	// invariant to hold. An empty result means the candidate satisfies it.
	Enforce(candidate []ir.Event, log ir.Log) Eviction

	// ManipulationIndices returns the positions in candidate where events may
	// be inserted or removed without splitting a unit.
	ManipulationIndices(candidate []ir.Event, log ir.Log) *boundary.Set
}

// Eviction is a set of event IDs to drop from a candidate.
type Eviction map[string]struct{}

// Add records id.
func (e Eviction) Add(id string) {
	e[id] = struct{}{}
}

// Has reports whether id is evicted.
func (e Eviction) Has(id string) bool {
	_, ok := e[id]
	return ok
}

// IDs returns the evicted IDs in sorted order.
func (e Eviction) IDs() []string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Apply returns the events of candidate that are not evicted, in order.
func (e Eviction) Apply(candidate []ir.Event) []ir.Event {
	out := make([]ir.Event, 0, len(candidate))
	for _, ev := range candidate {
		if !e.Has(ir.IDOf(ev)) {
			out = append(out, ev)
		}
	}
	return out
}

// LoopRule selects which action/observation runs count as tool loops.
type LoopRule string

const (
	// LoopRuleReasoning treats a run as a loop from its first
	// reasoning-bearing batch to the next Message or Summary.
	LoopRuleReasoning LoopRule = "reasoning"

	// LoopRuleAllRuns treats every maximal action/observation run as a loop.
	LoopRuleAllRuns LoopRule = "all_runs"
)

// ParseLoopRule converts a configuration string into a LoopRule.
func ParseLoopRule(s string) (LoopRule, error) {
	switch LoopRule(s) {
	case LoopRuleReasoning, LoopRuleAllRuns:
		return LoopRule(s), nil
	case "":
		return LoopRuleReasoning, nil
	default:
		return "", fmt.Errorf("unknown loop rule %q (want %q or %q)", s, LoopRuleReasoning, LoopRuleAllRuns)
	}
}

// Default returns the properties in enforcement order: call matching, then
// batch atomicity, then loop atomicity.
func Default(rule LoopRule) []Property {
	return []Property{
		CallMatching{},
		BatchAtomicity{},
		LoopAtomicity{Rule: rule},
	}
}

func idSet(events []ir.Event) map[string]struct{} {
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[ir.IDOf(e)] = struct{}{}
	}
	return set
}
