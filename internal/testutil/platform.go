package testutil

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/roach88/tba/internal/platform"
)

// Operation names recorded by FakePlatform.
const (
	OpArenaByID      = "arena"
	OpArenaResults   = "results"
	OpTeamStandings  = "standings"
	OpGamesByUserIDs = "games-by-users"
	OpGamesByGameIDs = "games-by-ids"
	OpAddGameIDs     = "add-game-ids"
	OpUserStatus     = "user-status"
	OpUserByID       = "user"
)

// FakePlatform is an in-memory platform.Capability.
//
// Tests seed it with arena data, then inspect the streams the monitor opened
// and push games into them.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakePlatform struct {
	mu sync.Mutex

	arena     platform.Arena
	results   []platform.ArenaResult
	standings []platform.TeamStanding
	statuses  map[string]platform.UserStatus
	users     map[string]platform.User
	maxGames  int
	failures  map[string]error

	calls       map[string]int
	userStreams []*FakeStream
	idStreams   map[string]*FakeStream
	opened      chan struct{}
}

// NewFakePlatform creates a fake serving arena with a stream capacity of
// 500 games.
func NewFakePlatform(arena platform.Arena) *FakePlatform {
	return &FakePlatform{
		arena:     arena,
		statuses:  make(map[string]platform.UserStatus),
		users:     make(map[string]platform.User),
		maxGames:  500,
		failures:  make(map[string]error),
		calls:     make(map[string]int),
		idStreams: make(map[string]*FakeStream),
		opened:    make(chan struct{}, 1024),
	}
}

// SetResults replaces the participant list.
func (f *FakePlatform) SetResults(results []platform.ArenaResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = slices.Clone(results)
}

// SetStandings replaces the team scores.
func (f *FakePlatform) SetStandings(standings []platform.TeamStanding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.standings = slices.Clone(standings)
}

// SetStatus records the online state of a user.
func (f *FakePlatform) SetStatus(s platform.UserStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[s.ID] = s
}

// SetUser registers a user for UserByID.
func (f *FakePlatform) SetUser(u platform.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// SetMaxGamesPerStream changes the reported stream capacity.
func (f *FakePlatform) SetMaxGamesPerStream(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxGames = n
}

// Fail makes every call of op return err until cleared with a nil err.
func (f *FakePlatform) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how often op was called.
func (f *FakePlatform) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// UserStreams returns every stream opened with GamesByUserIDs, oldest first.
func (f *FakePlatform) UserStreams() []*FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.userStreams)
}

// IDStream returns the stream opened under streamID.
func (f *FakePlatform) IDStream(streamID string) (*FakeStream, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.idStreams[streamID]
	return s, ok
}

// IDStreams returns the number of streams opened with GamesByGameIDs.
func (f *FakePlatform) IDStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.idStreams)
}

// Opened signals once for every stream opened.
func (f *FakePlatform) Opened() <-chan struct{} {
	return f.opened
}

func (f *FakePlatform) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failures[op]
}

func (f *FakePlatform) ArenaByID(ctx context.Context, id string) (platform.Arena, error) {
	if err := f.record(OpArenaByID); err != nil {
		return platform.Arena{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.arena.ID {
		return platform.Arena{}, platform.ErrNotFound
	}
	return f.arena, nil
}

func (f *FakePlatform) ArenaResults(ctx context.Context, arenaID string) ([]platform.ArenaResult, error) {
	if err := f.record(OpArenaResults); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.results), nil
}

func (f *FakePlatform) TeamStandings(ctx context.Context, arenaID string) ([]platform.TeamStanding, error) {
	if err := f.record(OpTeamStandings); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.standings), nil
}

func (f *FakePlatform) GamesByUserIDs(ctx context.Context, userIDs []string) (platform.GameStream, error) {
	if err := f.record(OpGamesByUserIDs); err != nil {
		return nil, err
	}
	s := NewFakeStream(userIDs)
	f.mu.Lock()
	f.userStreams = append(f.userStreams, s)
	f.mu.Unlock()
	f.signalOpened()
	return s, nil
}

func (f *FakePlatform) GamesByGameIDs(ctx context.Context, streamID string, gameIDs []string) (platform.GameStream, error) {
	if err := f.record(OpGamesByGameIDs); err != nil {
		return nil, err
	}
	s := NewFakeStream(gameIDs)
	f.mu.Lock()
	f.idStreams[streamID] = s
	f.mu.Unlock()
	f.signalOpened()
	return s, nil
}

func (f *FakePlatform) AddGameIDs(ctx context.Context, streamID string, gameIDs []string) error {
	if err := f.record(OpAddGameIDs); err != nil {
		return err
	}
	f.mu.Lock()
	s, ok := f.idStreams[streamID]
	f.mu.Unlock()
	if !ok {
		return platform.ErrNotFound
	}
	s.add(gameIDs)
	return nil
}

func (f *FakePlatform) UserStatus(ctx context.Context, userIDs []string) ([]platform.UserStatus, error) {
	if err := f.record(OpUserStatus); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.UserStatus, 0, len(userIDs))
	for _, id := range userIDs {
		s, ok := f.statuses[id]
		if !ok {
			s = platform.UserStatus{ID: id}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *FakePlatform) UserByID(ctx context.Context, id string) (platform.User, error) {
	if err := f.record(OpUserByID); err != nil {
		return platform.User{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return platform.User{}, platform.ErrNotFound
	}
	return u, nil
}

func (f *FakePlatform) MaxGamesPerStream() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxGames
}

func (f *FakePlatform) signalOpened() {
	select {
	case f.opened <- struct{}{}:
	default:
	}
}

// FakeStream is an in-memory platform.GameStream fed by Push.
type FakeStream struct {
	mu    sync.Mutex
	ids   []string
	games chan platform.GameMeta
	done  chan struct{}
	once  sync.Once
}

// NewFakeStream creates an open stream for ids.
func NewFakeStream(ids []string) *FakeStream {
	return &FakeStream{
		ids:   slices.Clone(ids),
		games: make(chan platform.GameMeta),
		done:  make(chan struct{}),
	}
}

// IDs returns the user or game ids the stream covers, including added ones.
func (s *FakeStream) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

func (s *FakeStream) add(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ids...)
}

// Push hands g to the reader. It returns false if the stream was closed
// before the game was read.
func (s *FakeStream) Push(g platform.GameMeta) bool {
	select {
	case s.games <- g:
		return true
	case <-s.done:
		return false
	}
}

func (s *FakeStream) Next() (platform.GameMeta, error) {
	select {
	case g := <-s.games:
		return g, nil
	case <-s.done:
		return platform.GameMeta{}, io.EOF
	}
}

func (s *FakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

var _ platform.Capability = (*FakePlatform)(nil)
