// Package compact plans Compaction directives over a View.
//
// The planner only ever cuts at Boundary Set members, so the span it
// forgets never contains part of a tool call, a batch or a tool loop.
// Deciding what the summary says is left to a Summarizer.
package compact

import (
	"context"
	"fmt"

	"github.com/roach88/condense/internal/clock"
	"github.com/roach88/condense/internal/ir"
	"github.com/roach88/condense/internal/view"
)

// Summarizer produces summary text for a span of events about to be
// forgotten.
type Summarizer interface {
	Summarize(ctx context.Context, events []ir.Event) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, events []ir.Event) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, events []ir.Event) (string, error) {
	return f(ctx, events)
}

// Static returns a Summarizer that always answers text.
func Static(text string) Summarizer {
	return SummarizerFunc(func(context.Context, []ir.Event) (string, error) {
		return text, nil
	})
}

// Planner decides when to compact and what to forget.
type Planner struct {
	// KeepFirst is the number of leading events to leave alone. The actual
	// cut is the first boundary at or after it.
	KeepFirst int

	// MaxEvents is the view length above which compaction is due.
	MaxEvents int

	// Summarizer supplies summary text. Nil plans a compaction without
	// a summary.
	Summarizer Summarizer

	// Clock stamps the directive. Nil uses the wall clock.
	Clock clock.Clock

	// NewID mints the directive ID. Nil uses ir.NewEventID.
	NewID func() string
}

// Due reports whether v should be compacted: it is longer than MaxEvents,
// or a CompactionRequest is outstanding.
func (p *Planner) Due(v *view.View) bool {
	if v.UnresolvedRequest {
		return true
	}
	return p.MaxEvents > 0 && v.Len() > p.MaxEvents
}

// Span returns the half-open range of view positions the planner would
// forget. Both ends are boundaries of v. ok is false when the range is
// empty.
func (p *Planner) Span(v *view.View) (start, end int, ok bool) {
	n := v.Len()
	start = v.Boundaries.FindNext(max(p.KeepFirst, 0), false)
	if start >= n {
		return 0, 0, false
	}
	end = v.Boundaries.FindNext(max(n/2, start+1), false)
	if end > n {
		end = n
	}
	return start, end, end > start
}

// Plan returns the Compaction to commit for v. ok is false when nothing is
// due or nothing can be forgotten. The directive is not persisted.
func (p *Planner) Plan(ctx context.Context, v *view.View) (*ir.Compaction, bool, error) {
	if !p.Due(v) {
		return nil, false, nil
	}
	start, end, ok := p.Span(v)
	if !ok {
		return nil, false, nil
	}

	span := v.Events[start:end]
	forgotten := make([]string, len(span))
	for i, e := range span {
		// A Summary's ID is derived from its compaction, so forgetting it
		// hides the earlier summary for good.
		forgotten[i] = ir.IDOf(e)
	}

	c := &ir.Compaction{
		Meta: ir.Meta{
			ID:        p.newID(),
			Timestamp: p.clk().Now(),
			Source:    ir.SourceEnvironment,
		},
		Forgotten: forgotten,
	}

	if p.Summarizer != nil {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		text, err := p.Summarizer.Summarize(ctx, span)
		if err != nil {
			return nil, false, fmt.Errorf("summarize %d events: %w", len(span), err)
		}
		offset := summaryOffset(v.Events[:start])
		c.Summary = &text
		c.SummaryOffset = &offset
	}
	return c, true, nil
}

// summaryOffset counts the events ahead of the span that will still be kept
// once the new summary replaces any older one.
func summaryOffset(head []ir.Event) int {
	n := 0
	for _, e := range head {
		if _, isSummary := e.(ir.Summary); !isSummary {
			n++
		}
	}
	return n
}

func (p *Planner) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return ir.NewEventID()
}

func (p *Planner) clk() clock.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clock.Real()
}
