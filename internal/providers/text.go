package providers

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/pipeline"
)

// TextEvent is a rendered announcement, ready for a text sink.
type TextEvent struct {
	Message string
}

func (e TextEvent) String() string {
	return e.Message
}

// Message keys of the announcement catalog.
const (
	msgJoin       = "join"
	msgAnd        = "and"
	msgBegin      = "begin"
	msgFirstBlood = "firstblood"
	msgStreak     = "streak"
	msgUpset      = "upset"
	msgAvenge     = "avenge"
	msgAvengeSelf = "avenge.self"
	msgAvengeBoth = "avenge.both"
	msgPhoenix    = "phoenix"
	msgStandings  = "standings"
	msgEnd        = "end"
)

// Languages lists the supported announcement languages, default first.
var Languages = []language.Tag{language.English, language.Swedish}

var languageMatcher = language.NewMatcher(Languages)

var announcements = mustBuildCatalog()

func mustBuildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	set := func(tag language.Tag, key string, msg catalog.Message) {
		if err := b.Set(tag, key, msg); err != nil {
			panic(fmt.Sprintf("providers: catalog %s/%s: %v", tag, key, err))
		}
	}
	str := func(tag language.Tag, msgs map[string]string) {
		for key, msg := range msgs {
			set(tag, key, catalog.String(msg))
		}
	}

	set(language.English, msgJoin, plural.Selectf(2, "%d",
		"one", "%[1]s joined the battle!",
		"other", "%[2]d members joined the battle: %[1]s",
	))
	str(language.English, map[string]string{
		msgAnd:        "and",
		msgBegin:      "The battle has begun. Good luck everyone!",
		msgFirstBlood: "First blood! %[1]s beat %[2]s.",
		msgStreak:     "%[1]s is on a streak with %[2]d wins in a row!",
		msgUpset:      "Upset! %[1]s beat the higher rated %[2]s.",
		msgAvenge:     "%[1]s avenged %[3]s by beating %[2]s!",
		msgAvengeSelf: "%[1]s took revenge on %[2]s!",
		msgAvengeBoth: "%[1]s took revenge on %[2]s and avenged %[3]s as well!",
		msgPhoenix:    "%[1]s rose from the ashes and beat %[2]s!",
		msgStandings:  "Standings:",
		msgEnd:        "The battle is over. Well played everyone!",
	})

	set(language.Swedish, msgJoin, plural.Selectf(2, "%d",
		"one", "%[1]s har anslutit till striden!",
		"other", "%[2]d medlemmar har anslutit till striden: %[1]s",
	))
	str(language.Swedish, map[string]string{
		msgAnd:        "och",
		msgBegin:      "Striden har börjat. Lycka till allihop!",
		msgFirstBlood: "Första blod! %[1]s vann mot %[2]s.",
		msgStreak:     "%[1]s har vunnit %[2]d partier i rad!",
		msgUpset:      "Skräll! %[1]s vann mot högre rankade %[2]s.",
		msgAvenge:     "%[1]s hämnades %[3]s genom att vinna mot %[2]s!",
		msgAvengeSelf: "%[1]s tog revansch mot %[2]s!",
		msgAvengeBoth: "%[1]s tog revansch mot %[2]s och hämnades även %[3]s!",
		msgPhoenix:    "%[1]s reste sig ur askan och vann mot %[2]s!",
		msgStandings:  "Ställning:",
		msgEnd:        "Striden är över. Bra spelat allihop!",
	})
	return b
}

// Renderer turns narrative events into sentences in one language.
//
// Thread-safety: Renderer is safe for concurrent use.
type Renderer struct {
	tag language.Tag
	p   *message.Printer
}

// NewRenderer returns a Renderer for lang, a BCP 47 tag such as "en" or
// "sv-SE". Languages without a catalog are rejected.
func NewRenderer(lang string) (*Renderer, error) {
	t, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("language %q: %w", lang, err)
	}
	_, idx, conf := languageMatcher.Match(t)
	if conf == language.No {
		return nil, fmt.Errorf("language %q: no announcements available", lang)
	}
	tag := Languages[idx]
	return &Renderer{tag: tag, p: message.NewPrinter(tag, message.Catalog(announcements))}, nil
}

// Language returns the catalog language in use.
func (r *Renderer) Language() language.Tag {
	return r.tag
}

// Render returns the announcement for ev.
func (r *Renderer) Render(ev event.Event) string {
	switch e := ev.(type) {
	case event.Join:
		return r.p.Sprintf(msgJoin, r.group(e.Members), len(e.Members))
	case event.TourBegin:
		return r.p.Sprintf(msgBegin)
	case event.FirstBlood:
		return r.p.Sprintf(msgFirstBlood, e.Member, e.Foe)
	case event.Streak:
		return r.p.Sprintf(msgStreak, e.Member, e.WinsInRow)
	case event.Upset:
		return r.p.Sprintf(msgUpset, e.Member, e.Foe)
	case event.Avenge:
		others := slices.DeleteFunc(slices.Clone(e.Avenged), func(m string) bool { return m == e.Member })
		switch {
		case len(others) == 0:
			return r.p.Sprintf(msgAvengeSelf, e.Member, e.Foe)
		case len(others) < len(e.Avenged):
			return r.p.Sprintf(msgAvengeBoth, e.Member, e.Foe, r.group(others))
		default:
			return r.p.Sprintf(msgAvenge, e.Member, e.Foe, r.group(others))
		}
	case event.Phoenix:
		return r.p.Sprintf(msgPhoenix, e.Member, e.Foe)
	case event.Standings:
		return r.standings(e)
	case event.TourEnd:
		return r.p.Sprintf(msgEnd)
	}
	return ""
}

// group joins names as "a, b and c".
func (r *Renderer) group(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + " " + r.p.Sprintf(msgAnd) + " " + names[last]
}

// standings lists the teams that have scored, one per line.
func (r *Renderer) standings(s event.Standings) string {
	var b strings.Builder
	b.WriteString(r.p.Sprintf(msgStandings))
	rank := 0
	for _, ts := range s.Teams {
		if ts.Score <= 0 {
			continue
		}
		rank++
		fmt.Fprintf(&b, "\n%2d: %3d %s", rank, ts.Score, ts.Team)
	}
	return b.String()
}

// textTransformer renders narrative events with a Renderer.
type textTransformer struct {
	r *Renderer
}

func (t textTransformer) Transform(ev pipeline.Event) (pipeline.Event, error) {
	e, ok := ev.(event.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %T", pipeline.ErrUnexpectedEvent, ev)
	}
	return TextEvent{Message: t.r.Render(e)}, nil
}

func newTextTransformer(cfg pipeline.ProviderConfig) (pipeline.Transformer, error) {
	r, err := NewRenderer(cfg.Get("lang", "en"))
	if err != nil {
		return nil, err
	}
	return textTransformer{r: r}, nil
}

// jsonTransformer renders narrative events as their JSON envelope.
type jsonTransformer struct{}

func (jsonTransformer) Transform(ev pipeline.Event) (pipeline.Event, error) {
	e, ok := ev.(event.Event)
	if !ok {
		return nil, fmt.Errorf("%w: %T", pipeline.ErrUnexpectedEvent, ev)
	}
	b, err := event.Marshal(e)
	if err != nil {
		return nil, err
	}
	return TextEvent{Message: string(b)}, nil
}

func newJSONTransformer(pipeline.ProviderConfig) (pipeline.Transformer, error) {
	return jsonTransformer{}, nil
}
