package providers

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/pipeline"
)

func TestRegister_Names(t *testing.T) {
	reg := pipeline.NewRegistry()
	Register(reg, Deps{})

	assert.Equal(t, pipeline.Providers{
		Sources:      []string{"replay", "teambattle"},
		Transformers: []string{"json", "text"},
		Sinks:        []string{"console", "file", "websocket"},
	}, reg.Names())
}

func TestRegister_ReplayToConsole(t *testing.T) {
	s := openStore(t)
	record(t, s, "rec-1", recordedAt, []event.Timed{
		{At: recordedAt, Event: event.TourBegin{}},
		{At: recordedAt, Event: event.FirstBlood{Member: "Alice", Foe: "Carol"}},
		{At: recordedAt, Event: event.TourEnd{}},
	})

	var en, sv bytes.Buffer
	reg := pipeline.NewRegistry()
	Register(reg, Deps{Store: s, Stdout: &en, Logger: discard()})
	svReg := pipeline.NewRegistry()
	Register(svReg, Deps{Store: s, Stdout: &sv, Logger: discard()})

	replay := pipeline.ProviderConfig{Provider: SourceReplay, Config: map[string]string{"recording": "rec-1"}}
	pipelines, errs := reg.Resolve(context.Background(), []pipeline.Config{{
		Name:         "english",
		Source:       replay,
		Transformers: []pipeline.ProviderConfig{{Provider: TransformerText}},
		Sink:         pipeline.ProviderConfig{Provider: SinkConsole},
	}})
	require.Empty(t, errs)
	svPipelines, errs := svReg.Resolve(context.Background(), []pipeline.Config{{
		Name:         "swedish",
		Source:       replay,
		Transformers: []pipeline.ProviderConfig{{Provider: TransformerText, Config: map[string]string{"lang": "sv"}}},
		Sink:         pipeline.ProviderConfig{Provider: SinkConsole},
	}})
	require.Empty(t, errs)

	require.NoError(t, pipeline.Run(context.Background(), append(pipelines, svPipelines...), pipeline.WithLogger(discard())))

	assert.Equal(t, "The battle has begun. Good luck everyone!\n"+
		"First blood! Alice beat Carol.\n"+
		"The battle is over. Well played everyone!\n", en.String())
	assert.Equal(t, "Striden har börjat. Lycka till allihop!\n"+
		"Första blod! Alice vann mot Carol.\n"+
		"Striden är över. Bra spelat allihop!\n", sv.String())
}

func TestRegister_ReplayWithoutDatabaseSkipped(t *testing.T) {
	reg := pipeline.NewRegistry()
	Register(reg, Deps{Logger: discard()})

	pipelines, errs := reg.Resolve(context.Background(), []pipeline.Config{{
		Source: pipeline.ProviderConfig{Provider: SourceReplay},
		Sink:   pipeline.ProviderConfig{Provider: SinkConsole},
	}})

	assert.Empty(t, pipelines)
	require.Len(t, errs, 1)
	var re *pipeline.ResolveError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, pipeline.RoleSource, re.Role)
}
