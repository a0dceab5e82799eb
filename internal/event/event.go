// Package event defines the narrative events announced while a team battle
// is being monitored.
//
// Narrative events are the public output of the monitor. They are immutable
// values; every variant implements Event and the set of variants is closed
// (the interface carries an unexported marker method), so consumers can
// exhaustively type-switch over them.
//
// Events carry user ids while they travel inside the monitor. Before they are
// handed to subscribers, ids are replaced with display names (see
// ReplaceNames).
package event

import (
	"errors"
	"sort"
	"time"
)

// Kind names an event variant. Kinds are stable strings used in the recording
// format and as metric labels.
type Kind string

const (
	KindJoin       Kind = "join"
	KindTourBegin  Kind = "tour_begin"
	KindFirstBlood Kind = "first_blood"
	KindStreak     Kind = "streak"
	KindUpset      Kind = "upset"
	KindAvenge     Kind = "avenge"
	KindPhoenix    Kind = "phoenix"
	KindStandings  Kind = "standings"
	KindTourEnd    Kind = "tour_end"
)

// Kinds lists every kind in announcement order.
var Kinds = []Kind{
	KindJoin, KindTourBegin, KindFirstBlood, KindStreak, KindUpset,
	KindAvenge, KindPhoenix, KindStandings, KindTourEnd,
}

// ErrEmptyMembers is returned when constructing an event that requires at
// least one member.
var ErrEmptyMembers = errors.New("event requires at least one member")

// Event is a narrative event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	isEvent()
}

// Join announces team members seen for the first time.
type Join struct {
	Members []string `json:"members"`
}

// TourBegin announces that the arena has started.
type TourBegin struct{}

// FirstBlood announces the first win of the team in this battle.
type FirstBlood struct {
	Member string `json:"member"`
	Foe    string `json:"foe"`
}

// Streak announces consecutive wins; WinsInRow is always at least 2.
type Streak struct {
	Member    string `json:"member"`
	WinsInRow int    `json:"wins_in_row"`
}

// Upset announces a win against a clearly higher rated opponent.
type Upset struct {
	Member string `json:"member"`
	Foe    string `json:"foe"`
}

// Avenge announces a win against a foe who earlier beat team members.
// Avenged is sorted and never empty.
type Avenge struct {
	Member  string   `json:"member"`
	Avenged []string `json:"avenged"`
	Foe     string   `json:"foe"`
}

// Phoenix announces a win after a run of losses.
type Phoenix struct {
	Member string `json:"member"`
	Foe    string `json:"foe"`
}

// TeamScore is one row of the standings.
type TeamScore struct {
	Team  string `json:"team"`
	Score int    `json:"score"`
}

// Standings is the team ranking, sorted by descending score.
type Standings struct {
	Teams []TeamScore `json:"teams"`
}

// TourEnd announces that the arena has finished.
type TourEnd struct{}

func (Join) Kind() Kind       { return KindJoin }
func (TourBegin) Kind() Kind  { return KindTourBegin }
func (FirstBlood) Kind() Kind { return KindFirstBlood }
func (Streak) Kind() Kind     { return KindStreak }
func (Upset) Kind() Kind      { return KindUpset }
func (Avenge) Kind() Kind     { return KindAvenge }
func (Phoenix) Kind() Kind    { return KindPhoenix }
func (Standings) Kind() Kind  { return KindStandings }
func (TourEnd) Kind() Kind    { return KindTourEnd }

func (Join) isEvent()       {}
func (TourBegin) isEvent()  {}
func (FirstBlood) isEvent() {}
func (Streak) isEvent()     {}
func (Upset) isEvent()      {}
func (Avenge) isEvent()     {}
func (Phoenix) isEvent()    {}
func (Standings) isEvent()  {}
func (TourEnd) isEvent()    {}

// NewJoin returns a Join for the given members, sorted.
func NewJoin(members []string) (Join, error) {
	if len(members) == 0 {
		return Join{}, ErrEmptyMembers
	}
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return Join{Members: sorted}, nil
}

// NewAvenge returns an Avenge with the avenged members sorted.
func NewAvenge(member string, avenged []string, foe string) (Avenge, error) {
	if len(avenged) == 0 {
		return Avenge{}, ErrEmptyMembers
	}
	sorted := append([]string(nil), avenged...)
	sort.Strings(sorted)
	return Avenge{Member: member, Avenged: sorted, Foe: foe}, nil
}

// NewStandings returns standings sorted by descending score. Equal scores are
// ordered by team name so the ranking is deterministic.
func NewStandings(scores []TeamScore) Standings {
	teams := append([]TeamScore(nil), scores...)
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Score != teams[j].Score {
			return teams[i].Score > teams[j].Score
		}
		return teams[i].Team < teams[j].Team
	})
	return Standings{Teams: teams}
}

// Timed is an event stamped with its logical sequence number and the wall
// clock time it was announced. It is the unit of the recording format.
type Timed struct {
	Seq   int64
	At    time.Time
	Event Event
}
