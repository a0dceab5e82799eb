package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/tba/internal/event"
	"github.com/roach88/tba/internal/platform"
)

// Recorder persists announced events. Failures are logged and never stop
// monitoring.
type Recorder interface {
	Record(ctx context.Context, ev event.Timed) error
}

const (
	// DefaultSubscriberBuffer bounds each subscriber's channel.
	DefaultSubscriberBuffer = 4096
	// DefaultTickInterval is the scheduler period; all timer periods are
	// expressed in ticks of this length.
	DefaultTickInterval = time.Second
)

// Tour monitors one team in one team battle arena.
//
// A single control loop (Run) owns all monitoring state. Worker goroutines
// (the ticker, one per open game stream, one per scheduled remote call) never
// touch that state; they only enqueue internal events for the control loop.
// Announced narrative events are fanned out by the control loop to every
// subscriber in the order they were produced.
//
// Thread-safety model:
//   - Run(): must be called exactly once
//   - Events(): safe from any goroutine, before, during or after Run
//   - everything else is confined to the control loop
//
// INVARIANTS:
//   - state only moves forward: initial, notStarted, running, ended
//   - exactly one monitor is active while running
//   - no narrative event follows TourEnd
type Tour struct {
	team     platform.TeamInfo
	arenaID  string
	platform platform.Capability
	clock    WallClock
	seq      *Sequence
	queue    *eventQueue
	logger   *slog.Logger
	recorder Recorder
	metrics  *Metrics
	names    *NameCache

	queueCapacity int
	subBuffer     int
	smallLimit    int
	tickInterval  time.Duration

	// Owned by the control loop.
	state     state
	finished  map[string]struct{}
	feedSeq   int
	streamSeq int

	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	subsMu sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// Option configures a Tour.
type Option func(*Tour)

// WithClock replaces the system clock.
func WithClock(c WallClock) Option {
	return func(t *Tour) {
		t.clock = c
	}
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tour) {
		t.logger = l
	}
}

// WithRecorder records every announced event.
func WithRecorder(r Recorder) Option {
	return func(t *Tour) {
		t.recorder = r
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(t *Tour) {
		t.metrics = m
	}
}

// WithNameCache shares a name cache between Tours.
func WithNameCache(c *NameCache) Option {
	return func(t *Tour) {
		t.names = c
	}
}

// WithQueueCapacity bounds the internal event queue.
//
// Default: 16384 (DefaultQueueCapacity)
func WithQueueCapacity(n int) Option {
	return func(t *Tour) {
		t.queueCapacity = n
	}
}

// WithSubscriberBuffer bounds every subscriber channel. A full channel
// blocks the control loop until the subscriber catches up.
//
// Default: 4096 (DefaultSubscriberBuffer)
func WithSubscriberBuffer(n int) Option {
	return func(t *Tour) {
		t.subBuffer = n
	}
}

// WithSmallMonitorLimit sets the participant count up to which one
// games-by-users stream follows the whole arena.
//
// Default: 300 (DefaultSmallMonitorLimit)
func WithSmallMonitorLimit(n int) Option {
	return func(t *Tour) {
		t.smallLimit = n
	}
}

// WithTickInterval changes the scheduler period. Timer periods are counted
// in ticks, so a shorter interval speeds everything up.
//
// Default: 1s (DefaultTickInterval)
func WithTickInterval(d time.Duration) Option {
	return func(t *Tour) {
		t.tickInterval = d
	}
}

// New creates a Tour for team in arena. Nothing happens until Run.
func New(team platform.TeamInfo, arena platform.Arena, p platform.Capability, opts ...Option) *Tour {
	t := &Tour{
		team:          team,
		arenaID:       arena.ID,
		platform:      p,
		clock:         SystemClock,
		seq:           NewSequence(),
		logger:        slog.Default(),
		queueCapacity: DefaultQueueCapacity,
		subBuffer:     DefaultSubscriberBuffer,
		smallLimit:    DefaultSmallMonitorLimit,
		tickInterval:  DefaultTickInterval,
		state:         initial{a: arena},
		finished:      make(map[string]struct{}),
		done:          make(chan struct{}),
		subs:          make(map[*subscriber]struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.names == nil {
		t.names = NewNameCache()
	}
	t.queue = newEventQueue(t.queueCapacity)
	t.logger = t.logger.With("arena", arena.ID, "team", team.ID)
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t
}

// Team returns the monitored team.
func (t *Tour) Team() platform.TeamInfo {
	return t.team
}

// Done is closed when monitoring has completed and every subscriber channel
// has been closed.
func (t *Tour) Done() <-chan struct{} {
	return t.done
}

// Run is the control loop. It blocks until the arena has ended or ctx is
// cancelled; both are a normal end of monitoring and return nil.
//
// ERROR HANDLING: failures of remote calls, game streams and the recorder are
// logged and monitoring continues; scheduled work is retried on its next
// period.
func (t *Tour) Run(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	stop := context.AfterFunc(ctx, t.cancel)
	defer stop()
	defer t.shutdown()

	t.logger.Info("tour monitor starting", "starts_at", t.state.arena().StartsAt)
	t.spawn(t.tick)

	for {
		if ev, ok := t.queue.TryDequeue(); ok {
			t.metrics.queueDepth(t.queue.Len())
			t.handle(ev)
			if _, over := t.state.(ended); over {
				t.logger.Info("tour monitor finished")
				return nil
			}
			continue
		}

		select {
		case <-t.ctx.Done():
			t.logger.Info("tour monitor stopping", "state", stateName(t.state))
			return nil
		case <-t.queue.Wait():
		}
	}
}

// Close stops the Tour. A Tour that never ran is released and can no longer
// be run; a running one is cancelled and Close waits for Run to finish.
// Subscriptions are closed either way.
func (t *Tour) Close() error {
	if t.started.CompareAndSwap(false, true) {
		t.shutdown()
		return nil
	}
	t.cancel()
	<-t.done
	return nil
}

// shutdown stops every worker, then ends every subscription.
func (t *Tour) shutdown() {
	t.stopOnce.Do(func() {
		t.cancel()
		if s, ok := t.state.(running); ok {
			s.monitor.close()
		}
		t.workers.Wait()
		t.queue.Close()
		t.closeSubscribers()
		close(t.done)
	})
}

// tick emits a timeTick every interval. When the queue is full the ticker
// falls behind; the next tick then carries every elapsed period so no
// scheduled work is skipped.
func (t *Tour) tick(ctx context.Context) {
	if !t.queue.Enqueue(ctx, timeTick{at: t.clock.Now(), ticks: 1}) {
		return
	}

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n := int(now.Sub(last) / t.tickInterval)
			if n < 1 {
				n = 1
			}
			last = last.Add(time.Duration(n) * t.tickInterval)
			if !t.queue.Enqueue(ctx, timeTick{at: t.clock.Now(), ticks: n}) {
				return
			}
		}
	}
}

// spawn runs fn on a tracked worker goroutine.
func (t *Tour) spawn(fn func(ctx context.Context)) {
	t.workers.Add(1)
	go func() {
		defer t.workers.Done()
		fn(t.ctx)
	}()
}

// runAction performs scheduled remote work on a worker and enqueues its
// result. A failure produces no event.
func (t *Tour) runAction(a action) {
	t.spawn(func(ctx context.Context) {
		ev, err := a.run(ctx)
		if err != nil {
			if ctx.Err() == nil {
				t.remoteFailed(a.op, err)
			}
			return
		}
		if ev != nil {
			t.queue.Enqueue(ctx, ev)
		}
	})
}

func (t *Tour) remoteFailed(op RemoteOp, err error) {
	t.metrics.remoteFailure(op)
	t.logger.Warn("remote call failed", "error", &RemoteError{Op: op, Arena: t.arenaID, Err: err})
}

// startFeed opens a game stream on a worker and forwards finished games.
// If the stream cannot be opened or ends by itself, the control loop is told
// with a feedFailed event.
func (t *Tour) startFeed(name string, open func(ctx context.Context) (platform.GameStream, error)) *feed {
	ctx, cancel := context.WithCancel(t.ctx)
	f := &feed{name: name, cancel: cancel}

	t.spawn(func(context.Context) {
		defer cancel()

		stream, err := open(ctx)
		if err != nil {
			if ctx.Err() == nil {
				t.remoteFailed(OpGameFeed, fmt.Errorf("open %s: %w", name, err))
				t.queue.Enqueue(ctx, feedFailed{feed: name})
			}
			return
		}
		t.metrics.feedOpened()
		defer t.metrics.feedClosed()
		defer stream.Close()
		stopClose := context.AfterFunc(ctx, func() { stream.Close() })
		defer stopClose()

		t.logger.Debug("feed opened", "feed", name)
		for {
			g, err := stream.Next()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, io.EOF) {
					t.logger.Info("feed ended", "feed", name)
				} else {
					t.remoteFailed(OpGameFeed, fmt.Errorf("read %s: %w", name, err))
				}
				t.queue.Enqueue(ctx, feedFailed{feed: name})
				return
			}
			if !g.Status.Ended() {
				continue
			}
			if !t.queue.Enqueue(ctx, gameOutcome{game: g}) {
				return
			}
		}
	})
	return f
}

// emit announces a narrative event: ids are replaced by names, the event is
// stamped and recorded, then handed to every subscriber.
func (t *Tour) emit(ev event.Event) {
	named := event.ReplaceNames(ev, t.displayName, t.displayName)
	timed := event.Timed{Seq: t.seq.Next(), At: t.clock.Now(), Event: named}

	t.metrics.narrative(string(ev.Kind()))
	t.logger.Debug("announce", "kind", ev.Kind(), "seq", timed.Seq)

	if t.recorder != nil {
		if err := t.recorder.Record(t.ctx, timed); err != nil {
			t.metrics.recordFailed()
			t.logger.Error("record event failed", "error", err, "seq", timed.Seq, "kind", ev.Kind())
		}
	}

	t.publish(named)
}

func (t *Tour) displayName(id string) string {
	name, err := t.names.Resolve(t.ctx, id, t.platform.UserByID)
	if err != nil && t.ctx.Err() == nil {
		t.remoteFailed(OpUserLookup, fmt.Errorf("user %s: %w", id, err))
	}
	return name
}

// subscriber is one Events channel. done is closed when the subscriber goes
// away; ch is only ever closed by the Tour.
type subscriber struct {
	ch   chan event.Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) leave() {
	s.once.Do(func() { close(s.done) })
}

// Events returns a new subscription to the announced narrative events.
//
// Every call returns an independent channel that receives all events
// announced after the call, in order. The channel is closed when monitoring
// completes. Cancelling ctx ends the subscription; the channel is then
// closed at the next announcement. After monitoring has completed Events
// returns a closed channel.
func (t *Tour) Events(ctx context.Context) <-chan event.Event {
	s := &subscriber{
		ch:   make(chan event.Event, t.subBuffer),
		done: make(chan struct{}),
	}

	t.subsMu.Lock()
	if t.closed {
		t.subsMu.Unlock()
		close(s.ch)
		return s.ch
	}
	t.subs[s] = struct{}{}
	t.subsMu.Unlock()

	context.AfterFunc(ctx, s.leave)
	return s.ch
}

// publish hands ev to every subscriber, blocking on full channels.
func (t *Tour) publish(ev event.Event) {
	t.subsMu.Lock()
	subs := make([]*subscriber, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.subsMu.Unlock()

	for _, s := range subs {
		select {
		case <-s.done:
			t.unsubscribe(s)
			continue
		default:
		}

		select {
		case s.ch <- ev:
		case <-s.done:
			t.unsubscribe(s)
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Tour) unsubscribe(s *subscriber) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	if _, ok := t.subs[s]; ok {
		delete(t.subs, s)
		close(s.ch)
	}
}

func (t *Tour) closeSubscribers() {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	t.closed = true
	for s := range t.subs {
		close(s.ch)
	}
	clear(t.subs)
}
