// Package engine follows one team through one team battle arena and
// announces what happens as narrative events.
//
// ARCHITECTURE:
//
// Single-Writer Control Loop:
// A Tour processes every internal event in one goroutine. The arena
// metadata, the roster, the live game monitor and the result accumulators
// are only read and written there, so none of them need locks.
//
// Event Processing Flow:
//  1. Workers (the ticker, game feeds, scheduled remote calls) enqueue
//     internal events on a bounded FIFO queue
//  2. Tour.Run() dequeues them one at a time
//  3. handle() routes each to the handler of its kind
//  4. Handlers move the state machine forward and may start more workers
//  5. Narrative events are named, stamped, recorded and fanned out to
//     every subscriber in the order they were produced
//
// State Machine:
//
//	initial -> notStarted -> running -> ended
//
// The first tick leaves initial according to the arena schedule. TourBegin
// is announced only when the start was witnessed; TourEnd is always the last
// narrative event.
//
// Live Games:
// Small arenas (up to 300 participants by default) are followed with one
// games-by-users stream covering every participant. Larger arenas switch for
// good to polling which team members are playing and following their games
// in batches of games-by-ids streams.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Narrative events are stamped with a monotonic Sequence number. Recordings
// replay in sequence order, never in wall-clock order.
//
// Back-pressure:
// Enqueueing blocks when the internal queue is full and announcing blocks
// when a subscriber falls behind. Nothing is dropped silently.
package engine
