// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/metrics"
	"github.com/normanking/relay/internal/orchestrator"
	"github.com/normanking/relay/internal/quota"
)

// Config holds HTTP server configuration.
type Config struct {
	// Port is the listen port (default: 8080)
	Port int

	// ShutdownTimeout is the graceful shutdown timeout (default: 5s)
	ShutdownTimeout time.Duration

	// RequestTimeout bounds one pipeline run end to end (default: 120s)
	RequestTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the server.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ShutdownTimeout: 5 * time.Second,
		RequestTimeout:  120 * time.Second,
	}
}

// StatusSource reports provider and quota state for the status endpoint.
type StatusSource interface {
	ProviderStatus() map[string]bool
	QuotaStatus() quota.Snapshot
}

// MetricsSource reports aggregated routing statistics.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// Server wires the pipeline behind the HTTP surface.
type Server struct {
	cfg    *Config
	pipe   *orchestrator.Orchestrator
	status StatusSource
	stats  MetricsSource
	http   *http.Server
}

// New creates the server. status may be nil; the status endpoint then
// reports only liveness.
func New(cfg *Config, pipe *orchestrator.Orchestrator, status StatusSource) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{cfg: cfg, pipe: pipe, status: status}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// WithMetrics attaches a metrics source backing the metrics endpoint.
func (s *Server) WithMetrics(src MetricsSource) *Server {
	s.stats = src
	return s
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start serves until the context is cancelled, then shuts down
// gracefully and waits for detached persistence to drain.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Port).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.pipe.Flush()
	return nil
}
