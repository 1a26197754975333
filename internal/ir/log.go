package ir

import (
	"iter"
	"slices"
)

// Log is an immutable snapshot of a raw event log: an arena of events with
// stable IDs, in append order.
//
// NewLog copies its input so the caller may keep appending to its own slice
// while algorithms run over the snapshot. No method hands out a mutable view.
type Log struct {
	events []Event
	index  map[string]int // id -> first position
}

// NewLog snapshots events.
func NewLog(events []Event) Log {
	snapshot := slices.Clone(events)
	index := make(map[string]int, len(snapshot))
	for i, e := range snapshot {
		id := IDOf(e)
		if _, seen := index[id]; !seen {
			index[id] = i
		}
	}
	return Log{events: snapshot, index: index}
}

// Len returns the number of events in the snapshot.
func (l Log) Len() int {
	return len(l.events)
}

// At returns the event at position i.
func (l Log) At(i int) Event {
	return l.events[i]
}

// Events returns a copy of the events.
func (l Log) Events() []Event {
	return slices.Clone(l.events)
}

// All iterates positions and events in order.
func (l Log) All() iter.Seq2[int, Event] {
	return func(yield func(int, Event) bool) {
		for i, e := range l.events {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Index returns the first position of the event with the given ID.
func (l Log) Index(id string) (int, bool) {
	i, ok := l.index[id]
	return i, ok
}

// Contains reports whether an event with the given ID is in the snapshot.
func (l Log) Contains(id string) bool {
	_, ok := l.index[id]
	return ok
}

// Append returns a new snapshot with extra appended. l is unchanged.
func (l Log) Append(extra ...Event) Log {
	combined := make([]Event, 0, len(l.events)+len(extra))
	combined = append(combined, l.events...)
	combined = append(combined, extra...)
	return NewLog(combined)
}
