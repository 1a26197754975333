package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condense/internal/ir"
	tu "github.com/roach88/condense/internal/testutil"
)

// =============================================================================
// CallMatching
// =============================================================================

func TestCallMatching_MatchedPairKept(t *testing.T) {
	events := []ir.Event{tu.Action("a1", "c1", "r1"), tu.Observation("o1", "c1", "a1")}
	log := ir.NewLog(events)

	assert.Empty(t, CallMatching{}.Enforce(events, log))
	assert.Equal(t, []int{0, 2}, CallMatching{}.ManipulationIndices(events, log).Members())
}

func TestCallMatching_EvictsOrphans(t *testing.T) {
	events := []ir.Event{
		tu.Message("m1", "hi"),
		tu.Action("a1", "c1", "r1"),
		tu.Observation("o2", "c2", "a2"),
	}

	evict := CallMatching{}.Enforce(events, ir.NewLog(events))
	assert.Equal(t, []string{"a1", "o2"}, evict.IDs())
}

func TestCallMatching_RejectedAndErrorCountAsResults(t *testing.T) {
	events := []ir.Event{
		tu.Action("a1", "c1", "r1"),
		tu.Action("a2", "c2", "r1"),
		ir.RejectedObservation{Meta: ir.Meta{ID: "o1"}, CallID: "c1", ActionID: "a1", Reason: "no"},
		ir.ErrorObservation{Meta: ir.Meta{ID: "o2"}, CallID: "c2", ActionID: "a2", Content: "boom"},
	}

	assert.Empty(t, CallMatching{}.Enforce(events, ir.NewLog(events)))
}

func TestCallMatching_BoundariesAroundPairs(t *testing.T) {
	events := []ir.Event{
		tu.Message("m1", "hi"),
		tu.Action("a1", "c1", "r1"),
		tu.Observation("o1", "c1", "a1"),
		tu.Message("m2", "next"),
		tu.Action("a2", "c2", "r2"),
		tu.Action("a3", "c3", "r2"),
		tu.Observation("o2", "c2", "a2"),
		tu.Observation("o3", "c3", "a3"),
	}

	set := CallMatching{}.ManipulationIndices(events, ir.NewLog(events))
	// Inside (a1,o1): 2. Inside (a2..o3): 5, 6, 7.
	assert.Equal(t, []int{0, 1, 3, 4, 8}, set.Members())
}

// =============================================================================
// BatchAtomicity
// =============================================================================

func TestBatchAtomicity_EvictsPartialBatch(t *testing.T) {
	a1 := tu.Action("a1", "c1", "r1")
	a2 := tu.Action("a2", "c2", "r1")
	log := ir.NewLog([]ir.Event{a1, a2})

	evict := BatchAtomicity{}.Enforce([]ir.Event{a2}, log)
	assert.Equal(t, []string{"a2"}, evict.IDs())

	assert.Empty(t, BatchAtomicity{}.Enforce([]ir.Event{a1, a2}, log))
	assert.Empty(t, BatchAtomicity{}.Enforce(nil, log))
}

func TestBatchAtomicity_Boundaries(t *testing.T) {
	events := []ir.Event{
		tu.Message("m1", "hi"),
		tu.Action("a1", "c1", "r1"),
		tu.Observation("o1", "c1", "a1"),
		tu.Action("a2", "c2", "r1"),
		tu.Observation("o2", "c2", "a2"),
	}

	set := BatchAtomicity{}.ManipulationIndices(events, ir.NewLog(events))
	// Batch r1 spans positions 1..3; 2 and 3 fall inside it.
	assert.Equal(t, []int{0, 1, 4, 5}, set.Members())
}

func TestBatchAtomicity_IgnoresEmptyResponseID(t *testing.T) {
	events := []ir.Event{tu.Action("a1", "c1", ""), tu.Action("a2", "c2", "")}
	log := ir.NewLog(events)

	assert.Empty(t, BatchAtomicity{}.Enforce(events[:1], log))
	assert.Equal(t, []int{0, 1, 2}, BatchAtomicity{}.ManipulationIndices(events, log).Members())
}

// =============================================================================
// Tool loops
// =============================================================================

func loopSample() []ir.Event {
	return []ir.Event{
		tu.Message("m1", "fix the build"),
		tu.Action("a0", "c0", "r0"),
		tu.Observation("o0", "c0", "a0"),
		tu.ReasoningAction("a1", "c1", "r1", "inspect first"),
		tu.Observation("o1", "c1", "a1"),
		tu.Compaction("k-ignored"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
		tu.Message("m2", "thanks"),
		tu.Action("a3", "c3", "r3"),
		tu.Observation("o3", "c3", "a3"),
	}
}

func TestFindToolLoops_ReasoningRule(t *testing.T) {
	loops := FindToolLoops(loopSample(), LoopRuleReasoning)

	require.Len(t, loops, 1)
	assert.Equal(t, 3, loops[0].Start)
	assert.Equal(t, 7, loops[0].End)
	assert.Equal(t, []string{"a1", "o1", "a2", "o2"}, loops[0].IDs)
}

func TestFindToolLoops_AllRunsRule(t *testing.T) {
	loops := FindToolLoops(loopSample(), LoopRuleAllRuns)

	require.Len(t, loops, 2)
	assert.Equal(t, []string{"a0", "o0", "a1", "o1", "a2", "o2"}, loops[0].IDs)
	assert.Equal(t, 1, loops[0].Start)
	assert.Equal(t, 7, loops[0].End)
	assert.Equal(t, []string{"a3", "o3"}, loops[1].IDs)
}

func TestFindToolLoops_ReasoningOnSiblingMarksBatch(t *testing.T) {
	events := []ir.Event{
		tu.Action("a1", "c1", "r1"),
		tu.ReasoningAction("a2", "c2", "r1", "parallel"),
		tu.Observation("o1", "c1", "a1"),
		tu.Observation("o2", "c2", "a2"),
	}

	loops := FindToolLoops(events, LoopRuleReasoning)
	require.Len(t, loops, 1)
	assert.Equal(t, 0, loops[0].Start)
	assert.Equal(t, 3, loops[0].End)
}

func TestFindToolLoops_SummaryInterrupts(t *testing.T) {
	events := []ir.Event{
		tu.ReasoningAction("a1", "c1", "r1", "x"),
		tu.Observation("o1", "c1", "a1"),
		ir.Summary{Meta: ir.Meta{ID: "s1"}, CompactionID: "k1", Content: "gist"},
		tu.ReasoningAction("a2", "c2", "r2", "y"),
		tu.Observation("o2", "c2", "a2"),
	}

	loops := FindToolLoops(events, LoopRuleReasoning)
	require.Len(t, loops, 2)
	assert.Equal(t, []string{"a1", "o1"}, loops[0].IDs)
	assert.Equal(t, []string{"a2", "o2"}, loops[1].IDs)
}

func TestFindToolLoops_CompactionOfRunEndsIt(t *testing.T) {
	events := []ir.Event{
		tu.Message("m1", "go"),
		tu.ReasoningAction("a1", "c1", "r1", "plan"),
		tu.Observation("o1", "c1", "a1"),
		tu.Compaction("k1", "a1", "o1"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
	}

	loops := FindToolLoops(events, LoopRuleReasoning)
	require.Len(t, loops, 1)
	assert.Equal(t, []string{"a1", "o1"}, loops[0].IDs)

	loops = FindToolLoops(events, LoopRuleAllRuns)
	require.Len(t, loops, 2)
	assert.Equal(t, []string{"a1", "o1"}, loops[0].IDs)
	assert.Equal(t, []string{"a2", "o2"}, loops[1].IDs)
}

func TestFindToolLoops_Empty(t *testing.T) {
	assert.Empty(t, FindToolLoops(nil, LoopRuleReasoning))
	assert.Empty(t, FindToolLoops([]ir.Event{tu.Message("m1", "hi")}, LoopRuleAllRuns))
}

// =============================================================================
// LoopAtomicity
// =============================================================================

func TestLoopAtomicity_EvictsPartialLoop(t *testing.T) {
	log := ir.NewLog(loopSample())
	// a1/o1 were forgotten; a2/o2 complete the loop in the log.
	candidate := []ir.Event{
		tu.Message("m1", "fix the build"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
		tu.Message("m2", "thanks"),
	}

	evict := LoopAtomicity{Rule: LoopRuleReasoning}.Enforce(candidate, log)
	assert.Equal(t, []string{"a2", "o2"}, evict.IDs())
}

func TestLoopAtomicity_WholeOrAbsentLoopKept(t *testing.T) {
	events := loopSample()
	log := ir.NewLog(events)

	assert.Empty(t, LoopAtomicity{}.Enforce(events, log))
	assert.Empty(t, LoopAtomicity{}.Enforce([]ir.Event{tu.Message("m2", "thanks")}, log))
}

func TestLoopAtomicity_KeepsToolEventsAfterCompactedLoop(t *testing.T) {
	log := ir.NewLog([]ir.Event{
		tu.Message("m1", "go"),
		tu.ReasoningAction("a1", "c1", "r1", "plan"),
		tu.Observation("o1", "c1", "a1"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
		tu.Compaction("k1", "a1", "o1", "a2", "o2"),
		tu.Action("a3", "c3", "r3"),
		tu.Observation("o3", "c3", "a3"),
	})
	candidate := []ir.Event{
		tu.Message("m1", "go"),
		tu.Action("a3", "c3", "r3"),
		tu.Observation("o3", "c3", "a3"),
	}

	for _, rule := range []LoopRule{LoopRuleReasoning, LoopRuleAllRuns} {
		assert.Empty(t, LoopAtomicity{Rule: rule}.Enforce(candidate, log), rule)
	}
}

func TestLoopAtomicity_Boundaries(t *testing.T) {
	events := []ir.Event{
		tu.Message("m1", "go"),
		tu.ReasoningAction("a1", "c1", "r1", "plan"),
		tu.Observation("o1", "c1", "a1"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
		tu.Message("m2", "done?"),
	}
	log := ir.NewLog(events)

	reasoning := LoopAtomicity{Rule: LoopRuleReasoning}.ManipulationIndices(events, log)
	assert.Equal(t, []int{0, 1, 5, 6}, reasoning.Members())

	// Without reasoning on a1 the default rule finds no loop; all_runs still does.
	plain := []ir.Event{
		tu.Message("m1", "go"),
		tu.Action("a1", "c1", "r1"),
		tu.Observation("o1", "c1", "a1"),
		tu.Action("a2", "c2", "r2"),
		tu.Observation("o2", "c2", "a2"),
	}
	assert.Equal(t, 6, LoopAtomicity{}.ManipulationIndices(plain, log).Len())
	assert.Equal(t, []int{0, 1, 5}, LoopAtomicity{Rule: LoopRuleAllRuns}.ManipulationIndices(plain, log).Members())
}

// =============================================================================
// Helpers
// =============================================================================

func TestParseLoopRule(t *testing.T) {
	rule, err := ParseLoopRule("all_runs")
	require.NoError(t, err)
	assert.Equal(t, LoopRuleAllRuns, rule)

	rule, err = ParseLoopRule("")
	require.NoError(t, err)
	assert.Equal(t, LoopRuleReasoning, rule)

	_, err = ParseLoopRule("sometimes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown loop rule")
}

func TestDefaultOrder(t *testing.T) {
	props := Default(LoopRuleAllRuns)
	require.Len(t, props, 3)
	assert.Equal(t, "call_matching", props[0].Name())
	assert.Equal(t, "batch_atomicity", props[1].Name())
	assert.Equal(t, "loop_atomicity", props[2].Name())
	assert.Equal(t, LoopRuleAllRuns, props[2].(LoopAtomicity).Rule)
}

func TestEvictionApply(t *testing.T) {
	events := []ir.Event{tu.Message("m1", "a"), tu.Message("m2", "b"), tu.Message("m3", "c")}
	evict := Eviction{}
	evict.Add("m2")

	assert.Equal(t, []string{"m1", "m3"}, ir.IDs(evict.Apply(events)))
}
