package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"

	"github.com/roach88/tba/internal/pipeline"
)

const (
	// clientBuffer is how many announcements may wait for one viewer. A
	// viewer that falls further behind is disconnected.
	clientBuffer = 64

	wsWriteTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// viewer is one connected websocket client. out is closed by the sink when
// the viewer is dropped.
type viewer struct {
	out chan []byte
}

// websocketSink serves announcements to browsers.
//
// Routes:
//   - GET /events  websocket, one text message per announcement
//   - GET /healthz liveness
//   - GET /metrics Prometheus metrics
//
// Thread-safety: Accept and Close may be called concurrently.
type websocketSink struct {
	logger *slog.Logger
	ln     net.Listener
	srv    *http.Server
	served chan struct{}

	mu      sync.Mutex
	viewers map[*viewer]struct{}
	closed  bool
}

func (d Deps) newWebsocketSink(_ context.Context, cfg pipeline.ProviderConfig) (pipeline.Sink, error) {
	addr, err := cfg.Require("addr")
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s := &websocketSink{
		logger:  d.logger().With("sink", "websocket", "addr", ln.Addr().String()),
		ln:      ln,
		served:  make(chan struct{}),
		viewers: make(map[*viewer]struct{}),
	}
	s.srv = &http.Server{
		Handler:           s.routes(d.gatherer()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(s.served)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("websocket server failed", "error", err)
		}
	}()
	s.logger.Info("websocket sink listening")
	return s, nil
}

func (s *websocketSink) routes(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/events", s.serveEvents)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}

// Addr is the address the sink listens on.
func (s *websocketSink) Addr() string {
	return s.ln.Addr().String()
}

func (s *websocketSink) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	v := &viewer{out: make(chan []byte, clientBuffer)}
	if !s.join(v) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer s.leave(v)

	// Viewers only listen; CloseRead handles control frames and reports
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-v.out:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (s *websocketSink) join(v *viewer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.viewers[v] = struct{}{}
	return true
}

func (s *websocketSink) leave(v *viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.viewers[v]; ok {
		delete(s.viewers, v)
		close(v.out)
	}
}

func (s *websocketSink) viewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Accept broadcasts a TextEvent to every connected viewer without waiting
// for any of them.
func (s *websocketSink) Accept(_ context.Context, ev pipeline.Event) error {
	text, ok := ev.(TextEvent)
	if !ok {
		return fmt.Errorf("%w: %T", pipeline.ErrUnexpectedEvent, ev)
	}
	msg := []byte(text.Message)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	for v := range s.viewers {
		select {
		case v.out <- msg:
		default:
			s.logger.Warn("viewer too slow, disconnecting")
			delete(s.viewers, v)
			close(v.out)
		}
	}
	return nil
}

// Close disconnects every viewer and stops the server.
func (s *websocketSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for v := range s.viewers {
		close(v.out)
	}
	clear(s.viewers)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.served
	return err
}
