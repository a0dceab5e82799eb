package providers

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tba/internal/engine"
	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/platform"
	"github.com/roach88/tba/internal/store"
)

// Provider names.
const (
	SourceTeamBattle = "teambattle"
	SourceReplay     = "replay"

	TransformerText = "text"
	TransformerJSON = "json"

	SinkConsole   = "console"
	SinkFile      = "file"
	SinkWebsocket = "websocket"
)

// Deps are the shared collaborators of the built-in providers. Zero fields
// fall back to defaults; providers that need a missing collaborator fail to
// build, which skips their pipelines.
type Deps struct {
	// Platform is required by the teambattle source.
	Platform platform.Capability
	// Store enables recording of live tours and is required by replay.
	Store *store.Store

	Stdout   io.Writer
	Logger   *slog.Logger
	Metrics  *engine.Metrics
	Gatherer prometheus.Gatherer
	Clock    engine.WallClock
	Names    *engine.NameCache

	// TourOptions are appended to the options of every Tour.
	TourOptions []engine.Option
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) stdout() io.Writer {
	if d.Stdout == nil {
		return os.Stdout
	}
	return d.Stdout
}

func (d Deps) gatherer() prometheus.Gatherer {
	if d.Gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return d.Gatherer
}

// Register adds the built-in providers to reg.
func Register(reg *pipeline.Registry, deps Deps) {
	if deps.Names == nil {
		deps.Names = engine.NewNameCache()
	}

	reg.RegisterSource(SourceTeamBattle, deps.newTeamBattleSource)
	reg.RegisterSource(SourceReplay, deps.newReplaySource)

	reg.RegisterTransformer(TransformerText, newTextTransformer)
	reg.RegisterTransformer(TransformerJSON, newJSONTransformer)

	reg.RegisterSink(SinkConsole, deps.newConsoleSink)
	reg.RegisterSink(SinkFile, newFileSink)
	reg.RegisterSink(SinkWebsocket, deps.newWebsocketSink)
}
