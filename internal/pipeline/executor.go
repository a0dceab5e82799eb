package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultDeliveryBuffer bounds the events waiting for a pipeline's sink.
const DefaultDeliveryBuffer = 256

type runOptions struct {
	logger *slog.Logger
	buffer int
}

// Option configures Run.
type Option func(*runOptions)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDeliveryBuffer sets how many transformed events may wait for a sink.
func WithDeliveryBuffer(n int) Option {
	return func(o *runOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// Run drives pipelines until every source has finished or ctx is
// cancelled. Cancellation is a normal end and returns nil. Every distinct
// sink is closed once before Run returns.
func Run(ctx context.Context, pipelines []Pipeline, opts ...Option) error {
	o := runOptions{logger: slog.Default(), buffer: DefaultDeliveryBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	defer closeSinks(pipelines, o.logger)

	if len(pipelines) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	// Subscribe before any source runs so no event is missed.
	subs := make([]<-chan Event, len(pipelines))
	for i, p := range pipelines {
		subs[i] = p.Source.Events(gctx)
	}

	for i, p := range pipelines {
		in := subs[i]
		g.Go(func() error {
			return deliver(gctx, p, in, o)
		})
	}

	started := make(map[Source]struct{})
	for _, p := range pipelines {
		if _, ok := started[p.Source]; ok {
			continue
		}
		started[p.Source] = struct{}{}
		src, name := p.Source, p.Name
		g.Go(func() error {
			if err := src.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("source of %s: %w", name, err)
			}
			return nil
		})
	}

	o.logger.Info("pipelines running", "pipelines", len(pipelines), "sources", len(started))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// deliver runs one pipeline: a puller transforms events from in and an
// ordered deliverer hands them to the sink.
func deliver(ctx context.Context, p Pipeline, in <-chan Event, o runOptions) error {
	logger := o.logger.With("pipeline", p.Name)
	out := make(chan Event, o.buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(out)
		for {
			var (
				ev Event
				ok bool
			)
			select {
			case <-gctx.Done():
				return nil
			case ev, ok = <-in:
				if !ok {
					return nil
				}
			}

			transformed, err := p.transform(ev)
			if err != nil {
				logger.Warn("transform failed, event dropped", "error", err, "event", fmt.Sprintf("%T", ev))
				continue
			}

			select {
			case out <- transformed:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for ev := range out {
			if gctx.Err() != nil {
				return nil
			}
			if err := p.Sink.Accept(gctx, ev); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				logger.Warn("sink failed, event dropped", "error", err, "event", fmt.Sprintf("%T", ev))
			}
		}
		return nil
	})

	return g.Wait()
}

func closeSinks(pipelines []Pipeline, logger *slog.Logger) {
	closed := make(map[Sink]struct{})
	for _, p := range pipelines {
		if _, ok := closed[p.Sink]; ok {
			continue
		}
		closed[p.Sink] = struct{}{}
		if err := p.Sink.Close(); err != nil {
			logger.Warn("closing sink failed", "pipeline", p.Name, "error", err)
		}
	}
}
