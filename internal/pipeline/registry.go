package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownProvider is returned when a configuration names a provider that
// is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Role is the place of a provider in a pipeline.
type Role string

const (
	RoleSource      Role = "source"
	RoleTransformer Role = "transformer"
	RoleSink        Role = "sink"
)

// ResolveError reports why a pipeline was skipped.
type ResolveError struct {
	Pipeline string
	Role     Role
	Provider string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("pipeline %s: %s %q: %v", e.Pipeline, e.Role, e.Provider, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

type (
	SourceFactory      func(ctx context.Context, cfg ProviderConfig) (Source, error)
	TransformerFactory func(cfg ProviderConfig) (Transformer, error)
	SinkFactory        func(ctx context.Context, cfg ProviderConfig) (Sink, error)
)

// Registry holds the known providers by name.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Registry struct {
	mu           sync.RWMutex
	sources      map[string]SourceFactory
	transformers map[string]TransformerFactory
	sinks        map[string]SinkFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]SourceFactory),
		transformers: make(map[string]TransformerFactory),
		sinks:        make(map[string]SinkFactory),
	}
}

// RegisterSource adds a source provider. Registering a name twice panics.
func (r *Registry) RegisterSource(name string, f SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.sources, RoleSource, name, f)
}

// RegisterTransformer adds a transformer provider. Registering a name twice
// panics.
func (r *Registry) RegisterTransformer(name string, f TransformerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.transformers, RoleTransformer, name, f)
}

// RegisterSink adds a sink provider. Registering a name twice panics.
func (r *Registry) RegisterSink(name string, f SinkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.sinks, RoleSink, name, f)
}

func register[F any](m map[string]F, role Role, name string, f F) {
	if _, dup := m[name]; dup {
		panic(fmt.Sprintf("pipeline: %s provider %q registered twice", role, name))
	}
	m[name] = f
}

// Providers lists the registered provider names per role, sorted.
type Providers struct {
	Sources      []string `json:"sources"`
	Transformers []string `json:"transformers"`
	Sinks        []string `json:"sinks"`
}

// Names returns the registered providers.
func (r *Registry) Names() Providers {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Providers{
		Sources:      slices.Sorted(maps.Keys(r.sources)),
		Transformers: slices.Sorted(maps.Keys(r.transformers)),
		Sinks:        slices.Sorted(maps.Keys(r.sinks)),
	}
}

type built[T any] struct {
	v   T
	err error
}

// resolver constructs each distinct configuration once per Resolve call.
type resolver struct {
	reg          *Registry
	sources      map[string]built[Source]
	transformers map[string]built[Transformer]
	sinks        map[string]built[Sink]
}

// Resolve turns configurations into runnable pipelines.
//
// Structurally equal configurations share one instance. A pipeline is skipped
// when any of its providers is unknown or fails to build; the reasons are
// returned as *ResolveError values. Sources that were built for skipped
// pipelines only are closed again when they implement io.Closer.
func (r *Registry) Resolve(ctx context.Context, configs []Config) ([]Pipeline, []error) {
	res := &resolver{
		reg:          r,
		sources:      make(map[string]built[Source]),
		transformers: make(map[string]built[Transformer]),
		sinks:        make(map[string]built[Sink]),
	}

	var (
		pipelines []Pipeline
		errs      []error
	)
	for i, cfg := range configs {
		name := cfg.Name
		if name == "" {
			name = fmt.Sprintf("pipeline-%d", i+1)
		}
		p, err := res.pipeline(ctx, name, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pipelines = append(pipelines, p)
	}

	res.closeUnused(pipelines)
	return pipelines, errs
}

func (res *resolver) pipeline(ctx context.Context, name string, cfg Config) (Pipeline, error) {
	src, err := res.source(ctx, cfg.Source)
	if err != nil {
		return Pipeline{}, &ResolveError{Pipeline: name, Role: RoleSource, Provider: cfg.Source.Provider, Err: err}
	}

	transformers := make([]Transformer, 0, len(cfg.Transformers))
	for _, tc := range cfg.Transformers {
		t, err := res.transformer(tc)
		if err != nil {
			return Pipeline{}, &ResolveError{Pipeline: name, Role: RoleTransformer, Provider: tc.Provider, Err: err}
		}
		transformers = append(transformers, t)
	}

	sink, err := res.sink(ctx, cfg.Sink)
	if err != nil {
		return Pipeline{}, &ResolveError{Pipeline: name, Role: RoleSink, Provider: cfg.Sink.Provider, Err: err}
	}

	return Pipeline{Name: name, Source: src, Transformers: transformers, Sink: sink}, nil
}

func (res *resolver) source(ctx context.Context, cfg ProviderConfig) (Source, error) {
	if b, ok := res.sources[cfg.Key()]; ok {
		return b.v, b.err
	}
	res.reg.mu.RLock()
	f, ok := res.reg.sources[cfg.Provider]
	res.reg.mu.RUnlock()

	var b built[Source]
	if !ok {
		b.err = ErrUnknownProvider
	} else {
		b.v, b.err = f(ctx, cfg)
	}
	res.sources[cfg.Key()] = b
	return b.v, b.err
}

func (res *resolver) transformer(cfg ProviderConfig) (Transformer, error) {
	if b, ok := res.transformers[cfg.Key()]; ok {
		return b.v, b.err
	}
	res.reg.mu.RLock()
	f, ok := res.reg.transformers[cfg.Provider]
	res.reg.mu.RUnlock()

	var b built[Transformer]
	if !ok {
		b.err = ErrUnknownProvider
	} else {
		b.v, b.err = f(cfg)
	}
	res.transformers[cfg.Key()] = b
	return b.v, b.err
}

func (res *resolver) sink(ctx context.Context, cfg ProviderConfig) (Sink, error) {
	if b, ok := res.sinks[cfg.Key()]; ok {
		return b.v, b.err
	}
	res.reg.mu.RLock()
	f, ok := res.reg.sinks[cfg.Provider]
	res.reg.mu.RUnlock()

	var b built[Sink]
	if !ok {
		b.err = ErrUnknownProvider
	} else {
		b.v, b.err = f(ctx, cfg)
	}
	res.sinks[cfg.Key()] = b
	return b.v, b.err
}

// closeUnused releases sources no resolved pipeline refers to. A source is
// left unused when a later provider of its pipeline failed.
func (res *resolver) closeUnused(pipelines []Pipeline) {
	used := make(map[Source]struct{})
	for _, p := range pipelines {
		used[p.Source] = struct{}{}
	}
	for _, b := range res.sources {
		if b.err != nil {
			continue
		}
		if _, ok := used[b.v]; ok {
			continue
		}
		if c, ok := b.v.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("closing unused source failed", "error", err)
			}
		}
	}
}
