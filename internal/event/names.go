package event

import "slices"

// NameFunc maps a user id to a display name.
type NameFunc func(id string) string

// ReplaceNames returns a copy of e with every user id rewritten through
// member (for team members) and foe (for opponents). Events without user ids
// are returned unchanged. Member lists are sorted by the rewritten names.
func ReplaceNames(e Event, member, foe NameFunc) Event {
	switch ev := e.(type) {
	case Join:
		return Join{Members: mapNames(ev.Members, member)}
	case FirstBlood:
		return FirstBlood{Member: member(ev.Member), Foe: foe(ev.Foe)}
	case Streak:
		return Streak{Member: member(ev.Member), WinsInRow: ev.WinsInRow}
	case Upset:
		return Upset{Member: member(ev.Member), Foe: foe(ev.Foe)}
	case Avenge:
		return Avenge{Member: member(ev.Member), Avenged: mapNames(ev.Avenged, member), Foe: foe(ev.Foe)}
	case Phoenix:
		return Phoenix{Member: member(ev.Member), Foe: foe(ev.Foe)}
	default:
		return e
	}
}

func mapNames(ids []string, fn NameFunc) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fn(id)
	}
	slices.Sort(out)
	return out
}
