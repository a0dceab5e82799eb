package engine

import (
	"slices"
	"time"

	"github.com/roach88/tba/internal/platform"
)

// internalEvent is anything the control loop consumes. The set of
// implementations is closed; producers only ever create these values and
// enqueue them, the control loop alone interprets them.
type internalEvent interface {
	kind() string
}

// timeTick advances the scheduler. ticks is the number of elapsed periods it
// stands for; it is above 1 only when the ticker fell behind.
type timeTick struct {
	at    time.Time
	ticks int
}

// arenaUpdate carries fresh arena metadata.
type arenaUpdate struct {
	arena platform.Arena
}

// participant is a member of the monitored team.
type participant struct {
	id        string
	withdrawn bool
}

// participants is a recomputed roster: the monitored team's members, every
// participant of the arena, and display names seen in the results.
type participants struct {
	members []participant
	all     map[string]struct{}
	names   map[string]string
}

func (p participants) memberIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(p.members))
	for _, m := range p.members {
		ids[m.id] = struct{}{}
	}
	return ids
}

// active returns the sorted ids of members who have not withdrawn and are not
// in skip.
func (p participants) active(skip map[string]struct{}) []string {
	var ids []string
	for _, m := range p.members {
		if m.withdrawn {
			continue
		}
		if _, ok := skip[m.id]; ok {
			continue
		}
		ids = append(ids, m.id)
	}
	slices.Sort(ids)
	return ids
}

// memberPoll lists members who are online and playing right now.
type memberPoll struct {
	playing []platform.UserStatus
}

// gameOutcome is a finished game reported by a feed.
type gameOutcome struct {
	game platform.GameMeta
}

// standingsUpdate carries team scores.
type standingsUpdate struct {
	scores []platform.TeamStanding
}

// feedFailed reports that a feed could not be opened or ended on its own.
type feedFailed struct {
	feed string
}

// batchAddFailed reports that games could not be added to a running batch.
type batchAddFailed struct {
	stream  string
	members []string
}

func (timeTick) kind() string        { return "time_tick" }
func (arenaUpdate) kind() string     { return "arena_update" }
func (participants) kind() string    { return "participants" }
func (memberPoll) kind() string      { return "member_poll" }
func (gameOutcome) kind() string     { return "game_outcome" }
func (standingsUpdate) kind() string { return "standings" }
func (feedFailed) kind() string      { return "feed_failed" }
func (batchAddFailed) kind() string  { return "batch_add_failed" }
