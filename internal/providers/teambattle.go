package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tba/internal/engine"
	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/store"
)

// ErrTeamNotInArena is returned when the configured team does not take part
// in the configured arena.
var ErrTeamNotInArena = errors.New("team is not part of the arena")

// teamBattleSource follows one team in a live arena.
type teamBattleSource struct {
	tour      *engine.Tour
	recording string
	store     *store.Store
	logger    *slog.Logger
}

func (s *teamBattleSource) Events(ctx context.Context) <-chan pipeline.Event {
	return forward(ctx, s.tour.Events(ctx))
}

func (s *teamBattleSource) Run(ctx context.Context) error {
	return s.tour.Run(ctx)
}

// Close stops the Tour and drops its recording when nothing was recorded.
func (s *teamBattleSource) Close() error {
	if err := s.tour.Close(); err != nil {
		return err
	}
	if s.recording == "" {
		return nil
	}
	discarded, err := s.store.DiscardEmptyRecording(context.Background(), s.recording)
	if err != nil {
		return err
	}
	if discarded {
		s.logger.Info("discarded empty recording", "recording", s.recording)
	}
	return nil
}

// forward relays a typed event channel as pipeline events. The result is
// closed when in closes or ctx ends.
func forward[T any](ctx context.Context, in <-chan T) <-chan pipeline.Event {
	out := make(chan pipeline.Event)
	go func() {
		defer close(out)
		for ev := range in {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (d Deps) newTeamBattleSource(ctx context.Context, cfg pipeline.ProviderConfig) (pipeline.Source, error) {
	if d.Platform == nil {
		return nil, fmt.Errorf("teambattle needs a platform client")
	}
	teamID, err := cfg.Require("team")
	if err != nil {
		return nil, err
	}
	arenaID, err := cfg.Require("arena")
	if err != nil {
		return nil, err
	}
	record, err := cfg.Bool("record", true)
	if err != nil {
		return nil, err
	}

	arena, err := d.Platform.ArenaByID(ctx, arenaID)
	if err != nil {
		return nil, fmt.Errorf("arena %s: %w", arenaID, err)
	}
	team, ok := arena.Team(teamID)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrTeamNotInArena, teamID, arenaID)
	}

	opts := []engine.Option{
		engine.WithLogger(d.logger()),
		engine.WithMetrics(d.Metrics),
		engine.WithNameCache(d.Names),
	}
	if d.Clock != nil {
		opts = append(opts, engine.WithClock(d.Clock))
	}
	opts = append(opts, d.TourOptions...)

	src := &teamBattleSource{logger: d.logger()}
	if record && d.Store != nil {
		now := engine.SystemClock.Now()
		if d.Clock != nil {
			now = d.Clock.Now()
		}
		rec, err := d.Store.NewRecording(ctx, team.ID, arena.ID, now)
		if err != nil {
			return nil, fmt.Errorf("start recording: %w", err)
		}
		src.recording = rec.ID
		src.store = d.Store
		opts = append(opts, engine.WithRecorder(d.Store.Recorder(rec.ID)))
		d.logger().Info("recording tour", "recording", rec.ID, "team", team.ID, "arena", arena.ID)
	}

	src.tour = engine.New(team, arena, d.Platform, opts...)
	return src, nil
}

var (
	_ pipeline.Source = (*teamBattleSource)(nil)
	_ io.Closer       = (*teamBattleSource)(nil)
)
