package engine

import (
	"sync"

	"github.com/roach88/condense/internal/ir"
)

// Append is one event bound for a session's raw log.
type Append struct {
	SessionID string
	Event     ir.Event
}

// eventQueue is an unbounded FIFO of pending appends.
//
// The queue uses a channel for signaling so the Run loop can wait on it
// alongside context cancellation.
type eventQueue struct {
	mu      sync.Mutex
	appends []Append
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		appends: make([]Append, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a to the back of the queue. Returns false once closed.
func (q *eventQueue) Enqueue(a Append) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.appends = append(q.appends, a)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front append without blocking.
func (q *eventQueue) TryDequeue() (Append, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.appends) == 0 {
		return Append{}, false
	}
	a := q.appends[0]
	q.appends[0] = Append{} // release the event for GC

	if len(q.appends) == 1 {
		q.appends = q.appends[:0]
	} else {
		q.appends = q.appends[1:]
	}
	return a, true
}

// Wait returns a channel that fires when appends may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued appends.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.appends)
}

// Drained reports whether the queue is closed and empty.
func (q *eventQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.appends) == 0
}

// Close stops further enqueues and wakes the waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
