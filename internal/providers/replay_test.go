package providers

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/store"
)

var recordedAt = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "recordings.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// record stores events as recording id, stamping seq in order.
func record(t *testing.T, s *store.Store, id string, startedAt time.Time, events []event.Timed) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateRecording(ctx, store.Recording{ID: id, Team: "knights", Arena: "spring24", StartedAt: startedAt}))
	for i, te := range events {
		te.Seq = int64(i + 1)
		require.NoError(t, s.AppendEvent(ctx, id, te))
	}
}

func recordedBattle() []event.Timed {
	return []event.Timed{
		{At: recordedAt, Event: event.Join{Members: []string{"Alice"}}},
		{At: recordedAt.Add(30 * time.Second), Event: event.TourBegin{}},
		{At: recordedAt.Add(40 * time.Second), Event: event.Upset{Member: "Alice", Foe: "Carol"}},
		{At: recordedAt.Add(2 * time.Minute), Event: event.Streak{Member: "Alice", WinsInRow: 2}},
		{At: recordedAt.Add(2 * time.Minute), Event: event.TourEnd{}},
	}
}

// sleeps records requested delays without waiting.
type sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err() == nil
}

func (s *sleeps) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func newReplay(t *testing.T, deps Deps, config map[string]string) (*replaySource, *sleeps) {
	t.Helper()
	src, err := deps.newReplaySource(context.Background(), pipeline.ProviderConfig{Provider: SourceReplay, Config: config})
	require.NoError(t, err)
	rs := src.(*replaySource)
	sl := &sleeps{}
	rs.sleep = sl.sleep
	return rs, sl
}

func drain(t *testing.T, ch <-chan pipeline.Event) []pipeline.Event {
	t.Helper()
	var out []pipeline.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("channel was not closed")
			return out
		}
	}
}

func kinds(events []pipeline.Event) []event.Kind {
	out := make([]event.Kind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.(event.Event).Kind())
	}
	return out
}

func TestReplay_SpeedupCapsDelays(t *testing.T) {
	s := openStore(t)
	record(t, s, "rec-1", recordedAt, recordedBattle())

	src, sl := newReplay(t, Deps{Store: s, Logger: discard()}, map[string]string{"recording": "rec-1"})
	got := drain(t, src.Events(context.Background()))

	assert.Equal(t, []event.Kind{
		event.KindJoin, event.KindTourBegin, event.KindUpset, event.KindStreak, event.KindTourEnd,
	}, kinds(got))
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 0}, sl.Delays(),
		"no pause before TourBegin, later gaps capped")
}

func TestReplay_RealTimeDelays(t *testing.T) {
	s := openStore(t)
	record(t, s, "rec-1", recordedAt, recordedBattle())

	src, sl := newReplay(t, Deps{Store: s, Logger: discard()}, map[string]string{"recording": "rec-1", "speedup": "false"})
	drain(t, src.Events(context.Background()))

	assert.Equal(t, []time.Duration{10 * time.Second, 80 * time.Second, 0}, sl.Delays())
}

func TestReplay_EverySubscriptionPlaysEverything(t *testing.T) {
	s := openStore(t)
	record(t, s, "rec-1", recordedAt, recordedBattle())
	src, _ := newReplay(t, Deps{Store: s, Logger: discard()}, map[string]string{"recording": "rec-1"})

	first := src.Events(context.Background())
	second := src.Events(context.Background())

	assert.Len(t, drain(t, first), 5)
	assert.Len(t, drain(t, second), 5)
	assert.NoError(t, src.Run(context.Background()))
}

func TestReplay_Latest(t *testing.T) {
	s := openStore(t)
	record(t, s, "older", recordedAt, recordedBattle()[:1])
	record(t, s, "newer", recordedAt.Add(24*time.Hour), recordedBattle())

	src, _ := newReplay(t, Deps{Store: s, Logger: discard()}, nil)

	assert.Equal(t, "newer", src.recording.ID)
	assert.Len(t, drain(t, src.Events(context.Background())), 5)
}

func TestReplay_CancelStopsPlayback(t *testing.T) {
	s := openStore(t)
	record(t, s, "rec-1", recordedAt, recordedBattle())
	src, _ := newReplay(t, Deps{Store: s, Logger: discard()}, map[string]string{"recording": "rec-1", "speedup": "false"})
	src.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	ch := src.Events(ctx)
	<-ch
	<-ch
	cancel()

	assert.Empty(t, drain(t, ch), "nothing after the 10s pause was cut short")
}

func TestReplay_BuildErrors(t *testing.T) {
	ctx := context.Background()

	_, err := Deps{}.newReplaySource(ctx, pipeline.ProviderConfig{Provider: SourceReplay})
	assert.Error(t, err, "no store")

	s := openStore(t)
	deps := Deps{Store: s, Logger: discard()}

	_, err = deps.newReplaySource(ctx, pipeline.ProviderConfig{Provider: SourceReplay, Config: map[string]string{"recording": "missing"}})
	assert.ErrorIs(t, err, store.ErrRecordingNotFound)

	_, err = deps.newReplaySource(ctx, pipeline.ProviderConfig{Provider: SourceReplay})
	assert.ErrorIs(t, err, store.ErrRecordingNotFound, "latest of an empty database")

	record(t, s, "rec-1", recordedAt, recordedBattle())
	_, err = deps.newReplaySource(ctx, pipeline.ProviderConfig{Provider: SourceReplay, Config: map[string]string{"speedup": "sometimes"}})
	assert.Error(t, err)
}

func TestSleepContext(t *testing.T) {
	assert.True(t, sleepContext(context.Background(), 0))
	assert.True(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepContext(ctx, time.Hour))
	assert.False(t, sleepContext(ctx, 0))
}
