package engine

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by Run when the Tour was already started.
var ErrAlreadyRunning = errors.New("tour already running")

// RemoteError wraps a failed call to the platform made by a scheduled action
// or a game feed.
//
// Remote errors never stop monitoring. They are logged, counted, and the
// work is retried the next time it is scheduled.
type RemoteError struct {
	// Op identifies the remote operation.
	Op RemoteOp

	// Arena is the arena being monitored.
	Arena string

	Err error
}

// RemoteOp names the remote operations the Tour performs.
type RemoteOp string

const (
	OpArenaRefresh RemoteOp = "arena_refresh"
	OpRoster       RemoteOp = "roster"
	OpStandings    RemoteOp = "standings"
	OpMemberPoll   RemoteOp = "member_poll"
	OpGameFeed     RemoteOp = "game_feed"
	OpAddGames     RemoteOp = "add_games"
	OpUserLookup   RemoteOp = "user_lookup"
)

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (arena=%s): %v", e.Op, e.Arena, e.Err)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err is a RemoteError for op.
// Uses errors.As to handle wrapped errors.
func IsRemoteError(err error, op RemoteOp) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Op == op
	}
	return false
}
