package property

import (
	"github.com/roach88/condense/internal/boundary"
	"github.com/roach88/condense/internal/ir"
)

// BatchAtomicity keeps the Actions of one model response together. Actions
// sharing a response-id form a batch; a batch is either fully present or
// fully absent.
type BatchAtomicity struct{}

// Name returns "batch_atomicity".
func (BatchAtomicity) Name() string { return "batch_atomicity" }

// Enforce evicts the present members of any batch whose full membership in
// the raw log is not in the candidate.
func (BatchAtomicity) Enforce(candidate []ir.Event, log ir.Log) Eviction {
	inLog := make(map[string]int)
	for _, e := range log.All() {
		if a, ok := e.(ir.Action); ok && a.ResponseID != "" {
			inLog[a.ResponseID]++
		}
	}

	present := make(map[string][]string)
	for _, e := range candidate {
		if a, ok := e.(ir.Action); ok && a.ResponseID != "" {
			present[a.ResponseID] = append(present[a.ResponseID], a.ID)
		}
	}

	evict := Eviction{}
	for responseID, ids := range present {
		if len(ids) < inLog[responseID] {
			for _, id := range ids {
				evict.Add(id)
			}
		}
	}
	return evict
}

// ManipulationIndices removes every position after a batch's first Action up
// to and including its last.
func (BatchAtomicity) ManipulationIndices(candidate []ir.Event, _ ir.Log) *boundary.Set {
	set := boundary.Complete(len(candidate))

	first := make(map[string]int)
	last := make(map[string]int)
	for i, e := range candidate {
		a, ok := e.(ir.Action)
		if !ok || a.ResponseID == "" {
			continue
		}
		if _, seen := first[a.ResponseID]; !seen {
			first[a.ResponseID] = i
		}
		last[a.ResponseID] = i
	}

	for responseID, start := range first {
		set.RemoveRange(start+1, last[responseID]+1)
	}
	return set
}
