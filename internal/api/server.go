// Package api serves stored workflow sessions, a live event stream and
// Prometheus metrics over HTTP. Every endpoint is read-only.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/events"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

const (
	requestTimeout    = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server exposes a checkpoint store over HTTP.
type Server struct {
	store    core.CheckpointStore
	logger   *logging.Logger
	eventBus *events.EventBus
	gatherer prometheus.Gatherer
	metrics  *httpMetrics
	origins  []string
	router   chi.Router
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger. Its sanitizer also redacts session data in
// responses.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBus enables /api/v1/events.
func WithEventBus(bus *events.EventBus) ServerOption {
	return func(s *Server) { s.eventBus = bus }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithRegisterer records per-route request metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(s *Server) {
		if reg != nil {
			s.metrics = newHTTPMetrics(reg)
		}
	}
}

// WithCORSOrigins restricts cross-origin access. Without it any origin is
// allowed.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates a server over store.
func NewServer(store core.CheckpointStore, opts ...ServerOption) *Server {
	s := &Server{
		store:    store,
		logger:   logging.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then drains in-flight
// requests for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server shutdown", "error", err)
		}
	}()

	s.logger.Info("API server listening", "addr", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
