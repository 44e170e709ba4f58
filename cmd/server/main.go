// Command server runs the pricing API together with the scheduled analysis pipeline:
//   - HTTP API (chi): coverage, anomalies, variance, benchmarks
//   - /ws/anomalies websocket feed of anomalies detected through the API
//   - Pipeline (scheduled): load period → engines → persist → reports
//   - Prometheus metrics on a separate listener
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"pricepoint-intel/internal/app"
	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/pipeline"
	"pricepoint-intel/internal/server"
)

func main() {
	flags := append(app.CommonFlags(),
		&cli.StringFlag{
			Name:    "http-addr",
			Value:   ":8080",
			Usage:   "API listen address",
			EnvVars: []string{config.EnvHTTPAddr},
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Value:   ":9090",
			Usage:   "Prometheus metrics listen address (empty to serve /metrics on the API only)",
			EnvVars: []string{config.EnvMetricsAddr},
		},
		&cli.DurationFlag{
			Name:  "pipeline-interval",
			Value: time.Hour,
			Usage: "Analysis pipeline interval (0 disables the scheduler)",
		},
		&cli.BoolFlag{
			Name:  "fixtures",
			Usage: "Load the demonstration dataset at startup (implies --use-memory)",
		},
	)

	cliApp := &cli.App{
		Name:   "server",
		Usage:  "Serve the pricing intelligence API and run scheduled analysis",
		Flags:  flags,
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("fixtures") {
		if err := c.Set(app.FlagUseMemory, "true"); err != nil {
			return err
		}
	}
	cfg, logger, err := app.Setup(c)
	if err != nil {
		return err
	}
	if c.IsSet("http-addr") {
		cfg.HTTPAddr = c.String("http-addr")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}

	ctx, stop := app.SignalContext(c.Context, cfg.ShutdownTimeout+20*time.Second, logger)
	defer stop()

	metrics := observability.DefaultMetrics
	stores, cleanup, err := app.OpenStores(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Bool("fixtures") {
		if err := pipeline.LoadFixtures(ctx, stores.Observations, stores.Reference, time.Now().UTC()); err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
		logger.Info().Msg("fixtures loaded")
	}

	opts := []server.Option{
		server.WithLogger(logger.With().Str("component", "http").Logger()),
		server.WithMetrics(metrics, prometheus.DefaultGatherer),
	}

	g, ctx := errgroup.WithContext(ctx)

	if interval := c.Duration("pipeline-interval"); interval > 0 {
		pipeLogger := logger.With().Str("component", "pipeline").Logger()
		analysis := pipeline.NewAnalysis(cfg, stores,
			pipeline.WithLogger(pipeLogger),
			pipeline.WithMetrics(metrics),
			pipeline.WithOutputDir(cfg.OutputDir),
		)
		sched := server.NewScheduler(analysis, interval, pipeLogger)
		opts = append(opts, server.WithScheduler(sched))
		g.Go(func() error { return ignoreCanceled(sched.Start(ctx)) })
	}

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.HTTPAddr {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, cfg.ShutdownTimeout, logger) })
	}

	srv := server.New(cfg, opts...)
	g.Go(func() error { return srv.Run(ctx, cfg.HTTPAddr) })

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// serveMetrics exposes /metrics and /health on a dedicated listener.
func serveMetrics(ctx context.Context, addr string, timeout time.Duration, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
