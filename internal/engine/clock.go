package engine

import (
	"sync/atomic"
	"time"
)

// WallClock tells the Tour what time it is.
//
// Only the scheduling decisions (has the arena started, has it ended) and the
// announcement timestamps read it. Tests substitute a manual clock.
type WallClock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock WallClock = systemClock{}

// Sequence stamps narrative events with strictly increasing numbers.
//
// Recordings are ordered by sequence number rather than by wall clock time,
// so two announcements made within the same instant keep their order on
// replay.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// In practice only the control loop calls Next.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence whose first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence continuing after start.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.seq.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last number handed out.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
