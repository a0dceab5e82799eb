package providers

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/pipeline"
)

// battle is one of every announcement, in the order a tour could make them.
func battle() []event.Event {
	return []event.Event{
		event.Join{Members: []string{"Alice"}},
		event.Join{Members: []string{"Alice", "Bob", "Dave"}},
		event.TourBegin{},
		event.FirstBlood{Member: "Alice", Foe: "Carol"},
		event.Streak{Member: "Alice", WinsInRow: 3},
		event.Upset{Member: "Bob", Foe: "Carol"},
		event.Avenge{Member: "Bob", Avenged: []string{"Alice"}, Foe: "Carol"},
		event.Avenge{Member: "Bob", Avenged: []string{"Bob"}, Foe: "Carol"},
		event.Avenge{Member: "Bob", Avenged: []string{"Alice", "Bob", "Dave"}, Foe: "Carol"},
		event.Phoenix{Member: "Dave", Foe: "Carol"},
		event.NewStandings([]event.TeamScore{
			{Team: "Rooks", Score: 7},
			{Team: "Bishops", Score: 0},
			{Team: "Knights", Score: 42},
		}),
		event.TourEnd{},
	}
}

func TestRenderer_Golden(t *testing.T) {
	for _, lang := range []string{"en", "sv"} {
		t.Run(lang, func(t *testing.T) {
			r, err := NewRenderer(lang)
			require.NoError(t, err)

			var lines []string
			for _, ev := range battle() {
				lines = append(lines, r.Render(ev))
			}

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, "announcements_"+lang, []byte(strings.Join(lines, "\n")+"\n"))
		})
	}
}

func TestNewRenderer_Languages(t *testing.T) {
	r, err := NewRenderer("sv-SE")
	require.NoError(t, err)
	assert.Equal(t, language.Swedish, r.Language())

	r, err = NewRenderer("en-GB")
	require.NoError(t, err)
	assert.Equal(t, language.English, r.Language())

	_, err = NewRenderer("fr")
	assert.Error(t, err)

	_, err = NewRenderer("not a language")
	assert.Error(t, err)
}

func TestRenderer_StandingsWithoutScores(t *testing.T) {
	r, err := NewRenderer("en")
	require.NoError(t, err)

	got := r.Render(event.NewStandings([]event.TeamScore{{Team: "Knights"}, {Team: "Rooks"}}))

	assert.Equal(t, "Standings:", got)
}

func TestTextTransformer(t *testing.T) {
	tr, err := newTextTransformer(pipeline.ProviderConfig{Provider: TransformerText, Config: map[string]string{"lang": "sv"}})
	require.NoError(t, err)

	out, err := tr.Transform(event.Streak{Member: "Alice", WinsInRow: 2})
	require.NoError(t, err)
	assert.Equal(t, TextEvent{Message: "Alice har vunnit 2 partier i rad!"}, out)

	_, err = tr.Transform("already text")
	assert.ErrorIs(t, err, pipeline.ErrUnexpectedEvent)

	_, err = newTextTransformer(pipeline.ProviderConfig{Provider: TransformerText, Config: map[string]string{"lang": "xx-invalid-!"}})
	assert.Error(t, err)
}

func TestJSONTransformer(t *testing.T) {
	tr, err := newJSONTransformer(pipeline.ProviderConfig{Provider: TransformerJSON})
	require.NoError(t, err)

	out, err := tr.Transform(event.Upset{Member: "Bob", Foe: "Carol"})
	require.NoError(t, err)

	text, ok := out.(TextEvent)
	require.True(t, ok)
	back, err := event.Unmarshal([]byte(text.Message))
	require.NoError(t, err)
	assert.Equal(t, event.Upset{Member: "Bob", Foe: "Carol"}, back)

	_, err = tr.Transform(42)
	assert.ErrorIs(t, err, pipeline.ErrUnexpectedEvent)
}
