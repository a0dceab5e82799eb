package engine

import (
	"context"
	"maps"
	"slices"
)

// DefaultSmallMonitorLimit is the largest arena followed with a single
// games-by-users stream.
const DefaultSmallMonitorLimit = 300

// monitor is how live games are followed while running. The set of
// implementations is closed.
type monitor interface {
	close()
}

// small follows every game between the arena's participants through one
// stream keyed by the full participant set.
type small struct {
	feed  *feed
	users map[string]struct{}
}

func (m *small) close() {
	m.feed.close()
}

// large follows only the games of team members, discovered by polling who
// is playing. Games are grouped in batches of bounded size; monitored holds
// the members whose current game is attached to a batch.
type large struct {
	batches   []*batch
	monitored map[string]struct{}
}

func newLarge() *large {
	return &large{monitored: make(map[string]struct{})}
}

func (m *large) close() {
	for _, b := range m.batches {
		b.feed.close()
	}
	m.batches = nil
}

// tracked reports whether a game is already followed by some batch.
func (m *large) tracked(gameID string) bool {
	for _, b := range m.batches {
		if _, ok := b.games[gameID]; ok {
			return true
		}
	}
	return false
}

// expire closes and drops every batch whose games are all finished.
func (m *large) expire() []string {
	var dropped []string
	kept := m.batches[:0]
	for _, b := range m.batches {
		if b.finished() {
			b.feed.close()
			dropped = append(dropped, b.stream)
			continue
		}
		kept = append(kept, b)
	}
	clear(m.batches[len(kept):])
	m.batches = kept
	return dropped
}

// resolve marks a finished game and releases its players for the next poll.
func (m *large) resolve(gameID string) {
	for _, b := range m.batches {
		if _, ok := b.games[gameID]; !ok {
			continue
		}
		b.games[gameID] = true
		for member, game := range b.members {
			if game == gameID {
				delete(b.members, member)
				delete(m.monitored, member)
			}
		}
	}
}

// batch returns the batch streaming under id.
func (m *large) batch(stream string) (*batch, int) {
	for i, b := range m.batches {
		if b.stream == stream {
			return b, i
		}
	}
	return nil, -1
}

// detach forgets members of a batch so the next poll can pick them up again.
func (m *large) detach(b *batch, members []string) {
	for _, member := range members {
		if game, ok := b.members[member]; ok {
			delete(b.games, game)
			delete(b.members, member)
		}
		delete(m.monitored, member)
	}
}

// drop removes a batch entirely and releases all of its members.
func (m *large) drop(stream string) {
	b, i := m.batch(stream)
	if b == nil {
		return
	}
	b.feed.close()
	m.detach(b, slices.Collect(maps.Keys(b.members)))
	m.batches = append(m.batches[:i], m.batches[i+1:]...)
}

// batch is one games-by-ids stream. games maps each game id to whether its
// result has been seen; members maps each attached member to their game.
type batch struct {
	stream  string
	games   map[string]bool
	members map[string]string
	feed    *feed
}

func newBatch(stream string) *batch {
	return &batch{
		stream:  stream,
		games:   make(map[string]bool),
		members: make(map[string]string),
	}
}

func (b *batch) finished() bool {
	if len(b.games) == 0 {
		return false
	}
	for _, done := range b.games {
		if !done {
			return false
		}
	}
	return true
}

// feed is a worker goroutine reading one game stream. Closing it cancels the
// worker's context, which closes the stream.
type feed struct {
	name   string
	cancel context.CancelFunc
}

func (f *feed) close() {
	if f != nil {
		f.cancel()
	}
}
