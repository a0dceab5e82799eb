package engine

import (
	"context"

	"github.com/roach88/tba/internal/accumulator"
	"github.com/roach88/tba/internal/platform"
)

// Timer periods in ticks of one second.
const (
	arenaRefreshTicks  = 60
	rosterRefreshTicks = 60
	standingsTicks     = 20 * 60
)

// action is scheduled remote work. It runs on a worker goroutine and
// returns the internal event to enqueue with its result.
type action struct {
	op  RemoteOp
	run func(ctx context.Context) (internalEvent, error)
}

type timer = accumulator.Accumulator[accumulator.Tick, action]

// state is the lifecycle of a Tour. The set of implementations is closed
// and transitions only move forward:
//
//	initial -> notStarted -> running -> ended
//	initial -> running -> ended
//	initial -> ended
type state interface {
	arena() platform.Arena
	withArena(platform.Arena) state
}

// membership is the roster of the monitored team. known is false until the
// first roster has been seen.
type membership struct {
	known bool
	ids   map[string]struct{}
}

func (m membership) has(id string) bool {
	_, ok := m.ids[id]
	return ok
}

// data is what every state after initial carries. roster is the latest
// participant list, kept so monitoring can begin on the tick the arena starts.
type data struct {
	a       platform.Arena
	members membership
	roster  participants
	timers  []timer
}

type initial struct {
	a platform.Arena
}

type notStarted struct {
	d data
}

type running struct {
	d       data
	monitor monitor
	results []accumulator.Game
}

type ended struct {
	d data
}

func (s initial) arena() platform.Arena    { return s.a }
func (s notStarted) arena() platform.Arena { return s.d.a }
func (s running) arena() platform.Arena    { return s.d.a }
func (s ended) arena() platform.Arena      { return s.d.a }

func (s initial) withArena(a platform.Arena) state { s.a = a; return s }
func (s notStarted) withArena(a platform.Arena) state {
	s.d.a = a
	return s
}
func (s running) withArena(a platform.Arena) state {
	s.d.a = a
	return s
}
func (s ended) withArena(a platform.Arena) state {
	s.d.a = a
	return s
}

// stateName is used in logs and tests.
func stateName(s state) string {
	switch s.(type) {
	case initial:
		return "initial"
	case notStarted:
		return "not_started"
	case running:
		return "running"
	case ended:
		return "ended"
	default:
		return "unknown"
	}
}

// resultAccumulators are installed when monitoring starts after the arena
// began; FirstBlood is only meaningful when the start was witnessed.
func resultAccumulators(withFirstBlood bool) []accumulator.Game {
	accs := make([]accumulator.Game, 0, 5)
	if withFirstBlood {
		accs = append(accs, accumulator.NewFirstBlood())
	}
	return append(accs,
		accumulator.NewStreak(),
		accumulator.NewUpset(),
		accumulator.NewPhoenix(),
		accumulator.NewAvenge(),
	)
}
