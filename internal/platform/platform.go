// Package platform describes the remote game platform as the monitor sees
// it: the data model of arenas, games and users, and the Capability contract
// that a platform client must satisfy.
//
// The monitor depends only on this package. Timeouts and retries are the
// Capability's business; the monitor never imposes its own.
package platform

import (
	"context"
	"errors"
	"time"

	"golang.org/x/text/cases"
)

// ErrNotFound is returned when a requested arena or user does not exist.
var ErrNotFound = errors.New("not found")

// Capability is the set of remote operations the monitor needs.
//
// Thread-safety: implementations must be safe for concurrent use; the
// monitor calls them from several worker goroutines at once.
type Capability interface {
	// ArenaByID looks up an arena.
	ArenaByID(ctx context.Context, id string) (Arena, error)

	// ArenaResults returns every participant of an arena with their team.
	ArenaResults(ctx context.Context, arenaID string) ([]ArenaResult, error)

	// TeamStandings returns the current team scores of a team battle.
	TeamStandings(ctx context.Context, arenaID string) ([]TeamStanding, error)

	// GamesByUserIDs opens a live stream of games played between the users.
	GamesByUserIDs(ctx context.Context, userIDs []string) (GameStream, error)

	// GamesByGameIDs opens a live stream for the given games under streamID.
	GamesByGameIDs(ctx context.Context, streamID string, gameIDs []string) (GameStream, error)

	// AddGameIDs adds games to a stream previously opened with GamesByGameIDs.
	AddGameIDs(ctx context.Context, streamID string, gameIDs []string) error

	// UserStatus reports whether users are online and which game they play.
	UserStatus(ctx context.Context, userIDs []string) ([]UserStatus, error)

	// UserByID looks up a user for their display name.
	UserByID(ctx context.Context, id string) (User, error)

	// MaxGamesPerStream is the capacity of a single GamesByGameIDs stream.
	MaxGamesPerStream() int
}

// GameStream is a live stream of game updates.
//
// Next blocks until the next game is available and returns io.EOF when the
// stream ends. Close releases the stream, unblocks a pending Next and may be
// called any number of times.
type GameStream interface {
	Next() (GameMeta, error)
	Close() error
}

// ArenaStatus is the lifecycle state of an arena as reported by the platform.
type ArenaStatus string

const (
	ArenaCreated  ArenaStatus = "created"
	ArenaStarted  ArenaStatus = "started"
	ArenaFinished ArenaStatus = "finished"
)

// TeamInfo identifies a team taking part in a battle.
type TeamInfo struct {
	ID   string
	Name string
}

// Arena is a scheduled tournament.
type Arena struct {
	ID       string
	Name     string
	StartsAt time.Time
	Duration time.Duration
	Status   ArenaStatus
	Teams    []TeamInfo
}

// EndsAt is the scheduled end of the arena.
func (a Arena) EndsAt() time.Time {
	return a.StartsAt.Add(a.Duration)
}

// Team returns the battle team with the given id.
func (a Arena) Team(id string) (TeamInfo, bool) {
	for _, t := range a.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return TeamInfo{}, false
}

// TeamName returns the display name of a team, or the id when the team is
// unknown.
func (a Arena) TeamName(id string) string {
	if t, ok := a.Team(id); ok && t.Name != "" {
		return t.Name
	}
	return id
}

// ArenaResult is one participant row of an arena.
type ArenaResult struct {
	Username  string
	TeamID    string
	Withdrawn bool
}

// UserID is the normalized id of the participant.
func (r ArenaResult) UserID() string {
	return NormalizeID(r.Username)
}

// TeamStanding is the score of one team.
type TeamStanding struct {
	TeamID string
	Score  int
}

// Color is a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// GameStatus follows the platform's numeric status codes. Every status above
// StatusStarted means the game is over.
type GameStatus int

const (
	StatusCreated   GameStatus = 10
	StatusStarted   GameStatus = 20
	StatusAborted   GameStatus = 25
	StatusMate      GameStatus = 30
	StatusResign    GameStatus = 31
	StatusStalemate GameStatus = 32
	StatusTimeout   GameStatus = 33
	StatusDraw      GameStatus = 34
	StatusOutoftime GameStatus = 35
	StatusCheat     GameStatus = 36
	StatusNoStart   GameStatus = 37
)

// Ended reports whether the game is over.
func (s GameStatus) Ended() bool {
	return s > StatusStarted
}

// Aborted reports whether the game ended without being played out. Aborted
// games have no result.
func (s GameStatus) Aborted() bool {
	return s == StatusAborted || s == StatusNoStart
}

// Player is one side of a game.
type Player struct {
	UserID      string
	Rating      int
	Provisional bool
}

// GameMeta is a game update from a game stream. Winner is empty for draws
// and unfinished games.
type GameMeta struct {
	ID     string
	Status GameStatus
	White  Player
	Black  Player
	Winner Color
}

// Involves reports whether the user plays in the game.
func (g GameMeta) Involves(userID string) bool {
	return g.White.UserID == userID || g.Black.UserID == userID
}

// UserStatus is the online state of a user.
type UserStatus struct {
	ID            string
	Online        bool
	PlayingGameID string
}

// Playing reports whether the user is online with an active game.
func (s UserStatus) Playing() bool {
	return s.Online && s.PlayingGameID != ""
}

// User is a platform account.
type User struct {
	ID   string
	Name string
}

// NormalizeID turns a username into the platform's case-insensitive user id.
func NormalizeID(name string) string {
	// Casers keep state between calls and cannot be shared across goroutines.
	return cases.Fold().String(name)
}
