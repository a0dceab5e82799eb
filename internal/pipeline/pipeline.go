package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Event is anything flowing through a pipeline: narrative events from a
// Source, or whatever a Transformer turned them into.
type Event = any

// ErrUnexpectedEvent is returned by transformers and sinks handed an event
// type they do not handle. The event is dropped.
var ErrUnexpectedEvent = errors.New("unexpected event type")

// Source produces events.
//
// Events returns a new subscription receiving every event produced after the
// call; the channel is closed when the source is done or ctx ends. Run
// drives the source and blocks until it has finished or ctx is cancelled.
// Implementations must be comparable (pointer types), since shared sources
// are recognized by identity.
type Source interface {
	Events(ctx context.Context) <-chan Event
	Run(ctx context.Context) error
}

// Transformer maps one event to another.
type Transformer interface {
	Transform(ev Event) (Event, error)
}

// Sink consumes events. Accept may be called from several pipelines at once
// when the sink is shared. Close is called once, after the last Accept.
type Sink interface {
	Accept(ctx context.Context, ev Event) error
	Close() error
}

// ProviderConfig names a provider and its configuration.
type ProviderConfig struct {
	Provider string            `yaml:"provider" json:"provider"`
	Config   map[string]string `yaml:"config,omitempty" json:"config,omitempty"`
}

// Key identifies a configuration structurally: equal provider names with
// equal config entries give equal keys, whatever the map order.
func (c ProviderConfig) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(c.Provider))
	for _, k := range slices.Sorted(maps.Keys(c.Config)) {
		fmt.Fprintf(&b, " %s=%s", strconv.Quote(k), strconv.Quote(c.Config[k]))
	}
	return b.String()
}

// Get returns the value of key, or def when it is not set.
func (c ProviderConfig) Get(key, def string) string {
	if v, ok := c.Config[key]; ok {
		return v
	}
	return def
}

// Require returns the value of key, failing when it is missing or empty.
func (c ProviderConfig) Require(key string) (string, error) {
	v := c.Config[key]
	if v == "" {
		return "", fmt.Errorf("%s: missing %q", c.Provider, key)
	}
	return v, nil
}

// Bool parses key as a boolean, returning def when it is not set.
func (c ProviderConfig) Bool(key string, def bool) (bool, error) {
	v, ok := c.Config[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q: %w", c.Provider, key, err)
	}
	return b, nil
}

// With returns a copy of c with key set to value.
func (c ProviderConfig) With(key, value string) ProviderConfig {
	cfg := make(map[string]string, len(c.Config)+1)
	maps.Copy(cfg, c.Config)
	cfg[key] = value
	return ProviderConfig{Provider: c.Provider, Config: cfg}
}

func (c ProviderConfig) String() string {
	return c.Key()
}

// Config describes one pipeline.
type Config struct {
	Name         string           `yaml:"name,omitempty" json:"name,omitempty"`
	Source       ProviderConfig   `yaml:"source" json:"source"`
	Transformers []ProviderConfig `yaml:"transformers,omitempty" json:"transformers,omitempty"`
	Sink         ProviderConfig   `yaml:"sink" json:"sink"`
}

// Pipeline is a resolved pipeline ready to run.
type Pipeline struct {
	Name         string
	Source       Source
	Transformers []Transformer
	Sink         Sink
}

// transform applies the transformers left to right.
func (p Pipeline) transform(ev Event) (Event, error) {
	for i, t := range p.Transformers {
		out, err := t.Transform(ev)
		if err != nil {
			return nil, fmt.Errorf("transformer %d: %w", i, err)
		}
		ev = out
	}
	return ev, nil
}
