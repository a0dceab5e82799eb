package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJoin_SortsMembers(t *testing.T) {
	j, err := NewJoin([]string{"carol", "alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, j.Members)
}

func TestNewJoin_RejectsEmpty(t *testing.T) {
	_, err := NewJoin(nil)
	assert.ErrorIs(t, err, ErrEmptyMembers)
}

func TestNewAvenge_RejectsEmpty(t *testing.T) {
	_, err := NewAvenge("alice", []string{}, "mallory")
	assert.ErrorIs(t, err, ErrEmptyMembers)
}

func TestNewStandings_SortedDescending(t *testing.T) {
	s := NewStandings([]TeamScore{
		{Team: "Gamma", Score: 10},
		{Team: "Alpha", Score: 42},
		{Team: "Beta", Score: 10},
	})

	assert.Equal(t, []TeamScore{
		{Team: "Alpha", Score: 42},
		{Team: "Beta", Score: 10},
		{Team: "Gamma", Score: 10},
	}, s.Teams)
}

func TestNewStandings_DoesNotMutateInput(t *testing.T) {
	in := []TeamScore{{Team: "b", Score: 1}, {Team: "a", Score: 2}}
	NewStandings(in)
	assert.Equal(t, "b", in[0].Team)
}

func TestReplaceNames(t *testing.T) {
	member := func(id string) string { return "M:" + id }
	foe := func(id string) string { return strings.ToUpper(id) }

	tests := []struct {
		name string
		in   Event
		want Event
	}{
		{"join", Join{Members: []string{"a", "b"}}, Join{Members: []string{"M:a", "M:b"}}},
		{"first blood", FirstBlood{Member: "a", Foe: "x"}, FirstBlood{Member: "M:a", Foe: "X"}},
		{"streak", Streak{Member: "a", WinsInRow: 3}, Streak{Member: "M:a", WinsInRow: 3}},
		{"upset", Upset{Member: "a", Foe: "x"}, Upset{Member: "M:a", Foe: "X"}},
		{"avenge", Avenge{Member: "a", Avenged: []string{"b", "c"}, Foe: "x"},
			Avenge{Member: "M:a", Avenged: []string{"M:b", "M:c"}, Foe: "X"}},
		{"phoenix", Phoenix{Member: "a", Foe: "x"}, Phoenix{Member: "M:a", Foe: "X"}},
		{"tour begin", TourBegin{}, TourBegin{}},
		{"standings", Standings{Teams: []TeamScore{{Team: "t", Score: 1}}}, Standings{Teams: []TeamScore{{Team: "t", Score: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceNames(tt.in, member, foe))
		})
	}
}

func TestReplaceNames_SortsByDisplayName(t *testing.T) {
	names := map[string]string{"aa01": "Zed", "bb02": "Alice", "cc03": "Mia"}
	member := func(id string) string { return names[id] }

	join, err := NewJoin([]string{"cc03", "aa01", "bb02"})
	require.NoError(t, err)
	assert.Equal(t, Join{Members: []string{"Alice", "Mia", "Zed"}}, ReplaceNames(join, member, member))

	avenge, err := NewAvenge("bb02", []string{"aa01", "cc03"}, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mia", "Zed"}, ReplaceNames(avenge, member, member).(Avenge).Avenged)
}

func TestReplaceNames_LeavesOriginalUntouched(t *testing.T) {
	in := Join{Members: []string{"a"}}
	ReplaceNames(in, func(string) string { return "z" }, func(s string) string { return s })
	assert.Equal(t, []string{"a"}, in.Members)
}

func TestUnmarshal_EveryKind(t *testing.T) {
	events := []Event{
		Join{Members: []string{"a"}},
		TourBegin{},
		FirstBlood{Member: "a", Foe: "b"},
		Streak{Member: "a", WinsInRow: 2},
		Upset{Member: "a", Foe: "b"},
		Avenge{Member: "a", Avenged: []string{"c"}, Foe: "b"},
		Phoenix{Member: "a", Foe: "b"},
		Standings{Teams: []TeamScore{{Team: "t", Score: 3}}},
		TourEnd{},
	}
	require.Len(t, events, len(Kinds))

	for _, e := range events {
		b, err := Marshal(e)
		require.NoError(t, err)

		got, err := Unmarshal(b)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestMarshal_Envelope(t *testing.T) {
	b, err := Marshal(Streak{Member: "alice", WinsInRow: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"streak","data":{"member":"alice","wins_in_row":4}}`, string(b))
}

func TestUnmarshal_UnknownKind(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind":"resign"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestUnmarshal_Malformed(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
