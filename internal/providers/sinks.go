package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/roach88/tba/internal/pipeline"
)

// ErrSinkClosed is returned by Accept after Close.
var ErrSinkClosed = errors.New("sink closed")

// writerSink prints one TextEvent per line.
//
// Thread-safety: Accept and Close may be called concurrently.
type writerSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

func (s *writerSink) Accept(_ context.Context, ev pipeline.Event) error {
	text, ok := ev.(TextEvent)
	if !ok {
		return fmt.Errorf("%w: %T", pipeline.ErrUnexpectedEvent, ev)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	_, err := fmt.Fprintln(s.w, text.Message)
	return err
}

func (s *writerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (d Deps) newConsoleSink(context.Context, pipeline.ProviderConfig) (pipeline.Sink, error) {
	return &writerSink{w: d.stdout()}, nil
}

func newFileSink(_ context.Context, cfg pipeline.ProviderConfig) (pipeline.Sink, error) {
	path, err := cfg.Require("path")
	if err != nil {
		return nil, err
	}
	appendMode, err := cfg.Bool("append", true)
	if err != nil {
		return nil, err
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &writerSink{w: f, closer: f}, nil
}
