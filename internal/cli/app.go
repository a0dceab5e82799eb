package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/tba/internal/config"
	"github.com/roach88/tba/internal/engine"
	"github.com/roach88/tba/internal/lichess"
	"github.com/roach88/tba/internal/pipeline"
	"github.com/roach88/tba/internal/providers"
	"github.com/roach88/tba/internal/store"
)

// app is what the commands share: settings, logging, metrics and the
// optional recording database.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *engine.Metrics
	store    *store.Store
}

func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Configure logging based on verbose flag
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  engine.NewMetrics(reg),
	}, nil
}

// openStore opens the recording database at path. An empty path leaves the
// app without a store.
func (a *app) openStore(path string) error {
	if path == "" {
		return nil
	}
	a.logger.Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	a.store = st
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

func (a *app) platform() *lichess.Client {
	return lichess.New(
		lichess.Config{BaseURL: a.cfg.PlatformURL, Token: a.cfg.PlatformToken},
		lichess.WithLimiter(rate.NewLimiter(rate.Limit(a.cfg.RateLimit), a.cfg.RateBurst)),
	)
}

// providers returns a registry with the built-in providers wired to the
// app's collaborators.
func (a *app) providers(stdout io.Writer) *pipeline.Registry {
	reg := pipeline.NewRegistry()
	providers.Register(reg, providers.Deps{
		Platform: a.platform(),
		Store:    a.store,
		Stdout:   stdout,
		Logger:   a.logger,
		Metrics:  a.metrics,
		Gatherer: a.registry,
	})
	return reg
}

// signalContext derives a context that is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
