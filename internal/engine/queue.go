package engine

import (
	"context"
	"sync"
)

// DefaultQueueCapacity bounds the internal event queue.
const DefaultQueueCapacity = 16384

// eventQueue is a thread-safe bounded FIFO queue of internal events.
//
// Producers (ticker, game feeds, pollers) call Enqueue, which blocks while
// the queue is full until space frees up or the producer's context ends.
// Nothing is dropped: a full queue slows producers down instead, so a
// TimeTick is never lost.
//
// The Tour's control loop is the only consumer. It uses TryDequeue together
// with Wait for context-aware waiting.
//
// Two signal channels (buffered, size 1) coalesce wakeups: signal for "an
// event may be available", space for "a slot may be free". A producer that
// takes a slot and sees more room passes the space signal on, so several
// blocked producers all wake up eventually.
type eventQueue struct {
	mu       sync.Mutex
	events   []internalEvent
	capacity int
	closed   bool
	signal   chan struct{}
	space    chan struct{}
}

// newEventQueue creates an empty queue holding at most capacity events.
func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &eventQueue{
		events:   make([]internalEvent, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue, blocking while it is full.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed or ctx ends first.
func (q *eventQueue) Enqueue(ctx context.Context, e internalEvent) bool {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return false
		}
		if len(q.events) < q.capacity {
			q.events = append(q.events, e)
			if len(q.events) < q.capacity {
				notify(q.space)
			}
			notify(q.signal)
			q.mu.Unlock()
			return true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-q.space:
		}
	}
}

// TryDequeue attempts to dequeue without blocking.
// Returns (nil, false) if queue is empty.
func (q *eventQueue) TryDequeue() (internalEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil, false
	}

	e := q.events[0]
	q.events[0] = nil

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	if !q.closed {
		notify(q.space)
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked producers and waiters by closing both signal channels.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
	close(q.space)
}

// notify does a non-blocking send; the buffer of 1 coalesces signals.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
