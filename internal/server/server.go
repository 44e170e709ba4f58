// Package server exposes the pricing engines over HTTP and streams detected
// anomalies to websocket subscribers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/proximity"
	"pricepoint-intel/internal/variance"
)

// Server holds the engines, the websocket hub and the router.
type Server struct {
	cfg       config.Config
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
	scheduler *Scheduler
	logger    zerolog.Logger
	clock     func() time.Time

	proximity   *proximity.Analyzer
	detector    *variance.Detector
	benchmarker *benchmark.Benchmarker
	hub         *Hub
	router      chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for requests and engines.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics sink and the gatherer served on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithScheduler attaches a pipeline scheduler reported on /status.
func WithScheduler(sch *Scheduler) Option {
	return func(s *Server) { s.scheduler = sch }
}

// WithClock sets a custom clock function for deterministic output.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// New creates a Server. cfg should already be validated.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		metrics:  observability.DefaultMetrics,
		gatherer: prometheus.DefaultGatherer,
		logger:   zerolog.Nop(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.proximity = proximity.NewAnalyzer(cfg.Proximity, proximity.WithLogger(s.logger))
	s.detector = variance.NewDetector(cfg.Variance, variance.WithClock(s.clock), variance.WithLogger(s.logger))
	s.benchmarker = benchmark.NewBenchmarker(cfg.Benchmark, benchmark.WithClock(s.clock), benchmark.WithLogger(s.logger))
	s.hub = NewHub(s.logger, s.metrics)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(requestMetrics(s.metrics))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", observability.HandlerFor(s.gatherer))
	r.Get("/ws/anomalies", s.hub.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/coverage", s.handleCoverage)
		r.Post("/coverage/gaps", s.handleCoverageGaps)
		r.Post("/anomalies", s.handleAnomalies)
		r.Post("/variance/high", s.handleHighVariance)
		r.Post("/benchmarks", s.handleBenchmarks)
		r.Post("/benchmarks/compare", s.handleCompare)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the anomaly broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx is cancelled, then shuts down within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", addr, err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}
