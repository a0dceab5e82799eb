package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource emits a fixed list of events to every subscriber once Run is
// called, then closes the subscriptions.
type fakeSource struct {
	events []Event
	runErr error

	mu   sync.Mutex
	subs []chan Event
	runs int
}

func (s *fakeSource) Events(ctx context.Context) <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, len(s.events))
	s.subs = append(s.subs, ch)
	return ch
}

func (s *fakeSource) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runs++
	subs := s.subs
	s.mu.Unlock()

	for _, ch := range subs {
		for _, ev := range s.events {
			ch <- ev
		}
		close(ch)
	}
	return s.runErr
}

func (s *fakeSource) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// blockingSource never produces anything and runs until cancelled.
type blockingSource struct{}

func (blockingSource) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	context.AfterFunc(ctx, func() { close(ch) })
	return ch
}

func (blockingSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type fakeSink struct {
	mu       sync.Mutex
	got      []Event
	closes   int
	failWith error
}

func (s *fakeSink) Accept(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.got = append(s.got, ev)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSink) Got() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.got...)
}

func (s *fakeSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type transformFunc func(Event) (Event, error)

func (f transformFunc) Transform(ev Event) (Event, error) { return f(ev) }

func upper() Transformer {
	return transformFunc(func(ev Event) (Event, error) {
		s, ok := ev.(string)
		if !ok {
			return nil, ErrUnexpectedEvent
		}
		return strings.ToUpper(s), nil
	})
}

func suffix(sfx string) Transformer {
	return transformFunc(func(ev Event) (Event, error) {
		return fmt.Sprint(ev) + sfx, nil
	})
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProviderConfig_KeyIsStructural(t *testing.T) {
	a := ProviderConfig{Provider: "teambattle", Config: map[string]string{"team": "knights", "arena": "spring24"}}
	b := ProviderConfig{Provider: "teambattle", Config: map[string]string{"arena": "spring24", "team": "knights"}}
	c := ProviderConfig{Provider: "teambattle", Config: map[string]string{"arena": "spring24", "team": "rooks"}}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, ProviderConfig{Provider: "console"}.Key(), ProviderConfig{Provider: "console", Config: map[string]string{}}.Key())
	assert.NotEqual(t,
		ProviderConfig{Provider: "x", Config: map[string]string{"a": "b c"}}.Key(),
		ProviderConfig{Provider: "x", Config: map[string]string{"a": "b", "c": ""}}.Key(),
	)
}

func TestProviderConfig_Accessors(t *testing.T) {
	c := ProviderConfig{Provider: "replay", Config: map[string]string{"recording": "latest", "speedup": "false", "bad": "maybe"}}

	assert.Equal(t, "latest", c.Get("recording", ""))
	assert.Equal(t, "en", c.Get("lang", "en"))

	v, err := c.Require("recording")
	require.NoError(t, err)
	assert.Equal(t, "latest", v)
	_, err = c.Require("missing")
	assert.Error(t, err)

	b, err := c.Bool("speedup", true)
	require.NoError(t, err)
	assert.False(t, b)
	b, err = c.Bool("absent", true)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = c.Bool("bad", true)
	assert.Error(t, err)

	with := c.With("lang", "sv")
	assert.Equal(t, "sv", with.Get("lang", ""))
	assert.Equal(t, "", c.Get("lang", ""), "With does not modify the original")
}

func TestPipeline_TransformLeftToRight(t *testing.T) {
	p := Pipeline{Transformers: []Transformer{upper(), suffix("!")}}

	out, err := p.transform("streak")
	require.NoError(t, err)
	assert.Equal(t, "STREAK!", out)

	_, err = p.transform(42)
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestRun_DeliversInOrder(t *testing.T) {
	src := &fakeSource{events: []Event{"a", "b", "c"}}
	sink := &fakeSink{}

	err := Run(context.Background(), []Pipeline{{Name: "p", Source: src, Transformers: []Transformer{upper()}, Sink: sink}}, quiet())

	require.NoError(t, err)
	assert.Equal(t, []Event{"A", "B", "C"}, sink.Got())
	assert.Equal(t, 1, sink.Closes())
}

func TestRun_SharedSourceRunsOnce(t *testing.T) {
	src := &fakeSource{events: []Event{"x"}}
	first, second := &fakeSink{}, &fakeSink{}

	err := Run(context.Background(), []Pipeline{
		{Name: "one", Source: src, Sink: first},
		{Name: "two", Source: src, Transformers: []Transformer{suffix("?")}, Sink: second},
	}, quiet())

	require.NoError(t, err)
	assert.Equal(t, 1, src.Runs())
	assert.Equal(t, []Event{"x"}, first.Got())
	assert.Equal(t, []Event{"x?"}, second.Got())
}

func TestRun_SharedSinkClosedOnce(t *testing.T) {
	sink := &fakeSink{}

	err := Run(context.Background(), []Pipeline{
		{Name: "one", Source: &fakeSource{events: []Event{"a"}}, Sink: sink},
		{Name: "two", Source: &fakeSource{events: []Event{"b"}}, Sink: sink},
	}, quiet())

	require.NoError(t, err)
	assert.ElementsMatch(t, []Event{"a", "b"}, sink.Got())
	assert.Equal(t, 1, sink.Closes())
}

func TestRun_TransformFailureDropsEvent(t *testing.T) {
	src := &fakeSource{events: []Event{"a", 7, "b"}}
	sink := &fakeSink{}

	err := Run(context.Background(), []Pipeline{{Name: "p", Source: src, Transformers: []Transformer{upper()}, Sink: sink}}, quiet())

	require.NoError(t, err)
	assert.Equal(t, []Event{"A", "B"}, sink.Got())
}

func TestRun_SinkFailureKeepsGoing(t *testing.T) {
	src := &fakeSource{events: []Event{"a", "b"}}
	broken := &fakeSink{failWith: errors.New("closed pipe")}
	healthy := &fakeSink{}

	err := Run(context.Background(), []Pipeline{
		{Name: "broken", Source: src, Sink: broken},
		{Name: "healthy", Source: src, Sink: healthy},
	}, quiet())

	require.NoError(t, err)
	assert.Equal(t, []Event{"a", "b"}, healthy.Got())
	assert.Equal(t, 1, broken.Closes())
}

func TestRun_SourceErrorReturned(t *testing.T) {
	src := &fakeSource{runErr: errors.New("arena vanished")}

	err := Run(context.Background(), []Pipeline{{Name: "p", Source: src, Sink: &fakeSink{}}}, quiet())

	assert.ErrorContains(t, err, "arena vanished")
}

func TestRun_CancellationIsNotAnError(t *testing.T) {
	sink := &fakeSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Pipeline{{Name: "p", Source: blockingSource{}, Sink: sink}}, quiet())
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, sink.Closes())
}

func TestRun_NoPipelines(t *testing.T) {
	assert.NoError(t, Run(context.Background(), nil))
}
