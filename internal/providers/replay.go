package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/store"
)

// MaxReplayDelay caps the pause between replayed events when speedup is on.
const MaxReplayDelay = 5 * time.Second

// latestRecording selects the most recently started recording.
const latestRecording = "latest"

// replaySource plays back a recording.
//
// Every Events call starts an independent playback. Pauses reproduce the
// recorded gaps between events, counted from the first TourBegin; events
// before it are delivered back to back.
type replaySource struct {
	recording store.Recording
	events    []event.Timed
	speedup   bool
	sleep     func(ctx context.Context, d time.Duration) bool
	logger    *slog.Logger
}

func (s *replaySource) Events(ctx context.Context) <-chan pipeline.Event {
	out := make(chan pipeline.Event)
	go func() {
		defer close(out)
		s.play(ctx, out)
	}()
	return out
}

func (s *replaySource) play(ctx context.Context, out chan<- pipeline.Event) {
	var prev time.Time
	for i, te := range s.events {
		if !prev.IsZero() {
			if !s.sleep(ctx, s.delay(te.At.Sub(prev))) {
				return
			}
		}
		select {
		case out <- te.Event:
		case <-ctx.Done():
			return
		}
		if !prev.IsZero() || te.Event.Kind() == event.KindTourBegin {
			prev = te.At
		}
		s.logger.Debug("replayed", "recording", s.recording.ID, "index", i, "kind", te.Event.Kind())
	}
}

func (s *replaySource) delay(gap time.Duration) time.Duration {
	if gap < 0 {
		return 0
	}
	if s.speedup {
		return min(gap, MaxReplayDelay)
	}
	return gap
}

// Run has nothing to drive; playback happens per subscription.
func (s *replaySource) Run(ctx context.Context) error {
	return nil
}

// sleepContext waits for d or until ctx ends; it reports whether the full
// delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d Deps) newReplaySource(ctx context.Context, cfg pipeline.ProviderConfig) (pipeline.Source, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("replay needs a recording database")
	}
	id := cfg.Get("recording", latestRecording)
	speedup, err := cfg.Bool("speedup", true)
	if err != nil {
		return nil, err
	}

	var rec store.Recording
	if id == latestRecording {
		rec, err = d.Store.LatestRecording(ctx)
	} else {
		rec, err = d.Store.GetRecording(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", id, err)
	}

	events, err := d.Store.ReadEvents(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	d.logger().Info("replay loaded", "recording", rec.ID, "team", rec.Team, "arena", rec.Arena, "events", len(events))

	return &replaySource{
		recording: rec,
		events:    events,
		speedup:   speedup,
		sleep:     sleepContext,
		logger:    d.logger(),
	}, nil
}
