package accumulator

import (
	"maps"
	"slices"

	"github.com/roach88/tba/internal/event"
)

// Outcome is the result of a game from a team member's point of view.
type Outcome int

const (
	Win Outcome = iota + 1
	Draw
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	default:
		return "unknown"
	}
}

// GameResult is a finished game seen from the member UserID.
//
// RatingDiff is the opponent's rating minus the member's rating, so a
// positive value means the member was the lower rated player.
// AnyProvisional is set when either player's rating is provisional.
type GameResult struct {
	GameID         string
	UserID         string
	OpponentID     string
	Outcome        Outcome
	RatingDiff     int
	AnyProvisional bool
}

// Game accumulators consume game results and produce narrative events.
type (
	Game       = Accumulator[GameResult, event.Event]
	GameOutput = Result[GameResult, event.Event]
)

const (
	// UpsetRatingDiff is the minimum rating advantage of the loser for a win
	// to count as an upset.
	UpsetRatingDiff = 200
	// PhoenixLosses is the number of consecutive losses a win must follow to
	// count as a comeback.
	PhoenixLosses = 3
)

// Streak counts consecutive wins per user and announces every streak of two
// or more.
type Streak struct {
	wins map[string]int
}

func NewStreak() Streak { return Streak{} }

func (s Streak) Accept(r GameResult) GameOutput {
	if r.Outcome != Win {
		if _, ok := s.wins[r.UserID]; !ok {
			return Self[GameResult, event.Event](s)
		}
		return Self[GameResult, event.Event](Streak{wins: without(s.wins, r.UserID)})
	}

	n := s.wins[r.UserID] + 1
	next := Streak{wins: with(s.wins, r.UserID, n)}
	if n < 2 {
		return Self[GameResult, event.Event](next)
	}
	return SelfAndValue[GameResult, event.Event](next, event.Streak{Member: r.UserID, WinsInRow: n})
}

// Upset announces a win against an opponent rated at least UpsetRatingDiff
// higher, when neither rating is provisional. A user announced this way is
// not announced again until they fail to win a game.
type Upset struct {
	unanswered map[string]struct{}
}

func NewUpset() Upset { return Upset{} }

func (u Upset) Accept(r GameResult) GameOutput {
	_, seen := u.unanswered[r.UserID]

	if r.Outcome != Win {
		if !seen {
			return Self[GameResult, event.Event](u)
		}
		return Self[GameResult, event.Event](Upset{unanswered: without(u.unanswered, r.UserID)})
	}

	if seen || r.AnyProvisional || r.RatingDiff < UpsetRatingDiff {
		return Self[GameResult, event.Event](u)
	}

	next := Upset{unanswered: with(u.unanswered, r.UserID, struct{}{})}
	return SelfAndValue[GameResult, event.Event](next, event.Upset{Member: r.UserID, Foe: r.OpponentID})
}

// Avenge keeps, per foe, the members who lost to that foe. The next member to
// beat the foe avenges all of them at once.
type Avenge struct {
	victims map[string][]string
}

func NewAvenge() Avenge { return Avenge{} }

func (a Avenge) Accept(r GameResult) GameOutput {
	switch r.Outcome {
	case Loss:
		current := a.victims[r.OpponentID]
		if slices.Contains(current, r.UserID) {
			return Self[GameResult, event.Event](a)
		}
		updated := append(slices.Clone(current), r.UserID)
		return Self[GameResult, event.Event](Avenge{victims: with(a.victims, r.OpponentID, updated)})

	case Win:
		current := a.victims[r.OpponentID]
		if len(current) == 0 {
			return Self[GameResult, event.Event](a)
		}
		ev, err := event.NewAvenge(r.UserID, current, r.OpponentID)
		if err != nil {
			return Self[GameResult, event.Event](a)
		}
		return SelfAndValue[GameResult, event.Event](Avenge{victims: without(a.victims, r.OpponentID)}, ev)

	default:
		return Self[GameResult, event.Event](a)
	}
}

// Phoenix counts consecutive losses per user and announces a win that ends a
// run of at least PhoenixLosses losses.
type Phoenix struct {
	losses map[string]int
}

func NewPhoenix() Phoenix { return Phoenix{} }

func (p Phoenix) Accept(r GameResult) GameOutput {
	if r.Outcome == Loss {
		return Self[GameResult, event.Event](Phoenix{losses: with(p.losses, r.UserID, p.losses[r.UserID]+1)})
	}

	count, ok := p.losses[r.UserID]
	if !ok {
		return Self[GameResult, event.Event](p)
	}
	next := Phoenix{losses: without(p.losses, r.UserID)}
	if r.Outcome == Win && count >= PhoenixLosses {
		return SelfAndValue[GameResult, event.Event](next, event.Phoenix{Member: r.UserID, Foe: r.OpponentID})
	}
	return Self[GameResult, event.Event](next)
}

// FirstBlood announces the first win and is then done.
type FirstBlood struct{}

func NewFirstBlood() FirstBlood { return FirstBlood{} }

func (f FirstBlood) Accept(r GameResult) GameOutput {
	if r.Outcome != Win {
		return Self[GameResult, event.Event](f)
	}
	return Value[GameResult, event.Event](event.FirstBlood{Member: r.UserID, Foe: r.OpponentID})
}

func with[K comparable, V any](m map[K]V, k K, v V) map[K]V {
	out := make(map[K]V, len(m)+1)
	maps.Copy(out, m)
	out[k] = v
	return out
}

func without[K comparable, V any](m map[K]V, k K) map[K]V {
	out := maps.Clone(m)
	delete(out, k)
	return out
}
