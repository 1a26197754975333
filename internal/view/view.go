// Package view builds the model-facing View of a raw event log.
//
// Building a View applies every committed Compaction, splices the newest
// summary back in, and then enforces the atomicity properties to a fixed
// point so that no tool call, batch or tool loop reaches the model in part.
// The result carries the Boundary Set valid for exactly that sequence.
//
// Build is a pure function of its input snapshot. It never fails: when the
// properties cannot agree within the iteration cap it keeps the best-effort
// sequence, reports a Diagnostic, and offers only the endpoints as
// boundaries.
package view

import (
	"github.com/roach88/condense/internal/boundary"
	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/property"
)

// DefaultMaxIterations caps the fixed-point loop.
const DefaultMaxIterations = 10

// View is the derived, never-stored sequence handed to a message formatter.
type View struct {
	// Events are the surviving events in order, including at most one
	// synthetic Summary.
	Events []ir.Event

	// Compactions lists every Compaction found in the raw log, in log order.
	Compactions []ir.Compaction

	// UnresolvedRequest is true when a CompactionRequest trails the latest
	// Compaction.
	UnresolvedRequest bool

	// Boundaries is the Boundary Set over Events.
	Boundaries *boundary.Set

	// Iterations is the number of enforcement passes run.
	Iterations int

	// Converged is false when the iteration cap was reached.
	Converged bool

	// Evicted lists the IDs removed by the properties, in eviction order.
	Evicted []string
}

// Len returns the number of events in the view.
func (v *View) Len() int {
	return len(v.Events)
}

// IDs returns the IDs of the view's events.
func (v *View) IDs() []string {
	return ir.IDs(v.Events)
}

// Builder builds views. A Builder holds configuration only and may be shared
// across goroutines.
type Builder struct {
	maxIterations int
	properties    []property.Property
	sink          Sink
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxIterations sets the fixed-point iteration cap. Values below 1 are
// ignored.
func WithMaxIterations(n int) Option {
	return func(b *Builder) {
		if n >= 1 {
			b.maxIterations = n
		}
	}
}

// WithLoopRule selects the tool-loop predicate used by loop atomicity.
func WithLoopRule(rule property.LoopRule) Option {
	return func(b *Builder) {
		b.properties = property.Default(rule)
	}
}

// WithProperties replaces the enforced properties. Order is significant:
// enforcement restarts from the first property after any eviction.
func WithProperties(props ...property.Property) Option {
	return func(b *Builder) {
		b.properties = props
	}
}

// WithSink routes diagnostics to sink.
func WithSink(sink Sink) Option {
	return func(b *Builder) {
		b.sink = sink
	}
}

// NewBuilder returns a Builder with the default properties and iteration cap.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxIterations: DefaultMaxIterations,
		properties:    property.Default(property.LoopRuleReasoning),
		sink:          func(Diagnostic) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.sink == nil {
		b.sink = func(Diagnostic) {}
	}
	return b
}

// BuildView builds a view with the default Builder.
func BuildView(log ir.Log) *View {
	return NewBuilder().Build(log)
}

// Build derives the view of log.
func (b *Builder) Build(log ir.Log) *View {
	v := &View{}

	forgotten := make(map[string]struct{})
	for _, e := range log.All() {
		switch ev := e.(type) {
		case ir.Compaction:
			v.Compactions = append(v.Compactions, ev)
			forgotten[ev.ID] = struct{}{}
			for _, id := range ev.Forgotten {
				forgotten[id] = struct{}{}
			}
		case ir.CompactionRequest:
			forgotten[ev.ID] = struct{}{}
		}
	}

	kept := make([]ir.Event, 0, log.Len())
	for _, e := range log.All() {
		if _, gone := forgotten[ir.IDOf(e)]; gone {
			continue
		}
		if !ir.IsModelConvertible(e) {
			continue
		}
		kept = append(kept, e)
	}

	kept = spliceSummary(kept, v.Compactions, forgotten)
	v.UnresolvedRequest = hasUnresolvedRequest(log)

	v.Events, v.Iterations, v.Converged, v.Evicted = b.enforce(kept, log)

	if !v.Converged {
		b.sink(Diagnostic{
			Level:      LevelWarn,
			Message:    "atomicity properties did not converge; offering endpoint boundaries only",
			Iterations: v.Iterations,
			Evicted:    v.Evicted,
			Remaining:  len(v.Events),
		})
		v.Boundaries = boundary.Endpoints(len(v.Events))
		return v
	}
	v.Boundaries = b.boundaries(v.Events, log)
	return v
}

// spliceSummary inserts one Summary for the newest Compaction carrying
// summary text, at its offset clamped to the sequence length.
func spliceSummary(kept []ir.Event, compactions []ir.Compaction, forgotten map[string]struct{}) []ir.Event {
	for i := len(compactions) - 1; i >= 0; i-- {
		c := compactions[i]
		if !c.HasSummary() {
			continue
		}
		summary := ir.Summary{
			Meta: ir.Meta{
				ID:        ir.SummaryEventID(c.ID),
				Timestamp: c.Timestamp,
				Source:    ir.SourceEnvironment,
			},
			CompactionID: c.ID,
			Content:      *c.Summary,
		}
		if _, gone := forgotten[summary.ID]; gone {
			return kept
		}

		offset := min(*c.SummaryOffset, len(kept))
		out := make([]ir.Event, 0, len(kept)+1)
		out = append(out, kept[:offset]...)
		out = append(out, summary)
		out = append(out, kept[offset:]...)
		return out
	}
	return kept
}

// hasUnresolvedRequest reports whether a CompactionRequest appears after the
// last Compaction.
func hasUnresolvedRequest(log ir.Log) bool {
	for i := log.Len() - 1; i >= 0; i-- {
		switch log.At(i).(type) {
		case ir.Compaction:
			return false
		case ir.CompactionRequest:
			return true
		}
	}
	return false
}

// enforce runs the properties in order, restarting from the first after any
// eviction, until a full pass evicts nothing or the cap is reached.
func (b *Builder) enforce(candidate []ir.Event, log ir.Log) (events []ir.Event, iterations int, converged bool, evicted []string) {
	for iterations < b.maxIterations {
		iterations++
		changed := false
		for _, p := range b.properties {
			eviction := p.Enforce(candidate, log)
			if len(eviction) == 0 {
				continue
			}
			candidate = eviction.Apply(candidate)
			evicted = append(evicted, eviction.IDs()...)
			changed = true
			break
		}
		if !changed {
			return candidate, iterations, true, evicted
		}
	}
	return candidate, iterations, false, evicted
}

// boundaries intersects every property's set over events.
func (b *Builder) boundaries(events []ir.Event, log ir.Log) *boundary.Set {
	result := boundary.Complete(len(events))
	for _, p := range b.properties {
		next, err := result.Intersect(p.ManipulationIndices(events, log))
		if err != nil {
			return boundary.Endpoints(len(events))
		}
		result = next
	}
	return result
}
