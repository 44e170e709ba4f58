// Package app holds the wiring shared by the command-line binaries: common
// flags, configuration, store construction and signal handling.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/pipeline"
	chstore "pricepoint-intel/internal/storage/clickhouse"
	"pricepoint-intel/internal/storage/memory"
	"pricepoint-intel/internal/storage/migrations"
	pgstore "pricepoint-intel/internal/storage/postgres"
)

// Flag names shared by every binary.
const (
	FlagEnvFile       = "env-file"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagUseMemory     = "use-memory"
	FlagPostgresDSN   = "postgres-dsn"
	FlagClickHouseDSN = "clickhouse-dsn"
	FlagOutputDir     = "output-dir"
)

// CommonFlags returns the flags every binary accepts.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  FlagEnvFile,
			Value: ".env",
			Usage: "Optional dotenv file loaded before reading the environment",
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			EnvVars: []string{config.EnvLogLevel},
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Value:   "console",
			Usage:   "Log format (console, json)",
			EnvVars: []string{config.EnvLogFormat},
		},
		&cli.BoolFlag{
			Name:    FlagUseMemory,
			Usage:   "Use in-memory storage instead of PostgreSQL and ClickHouse",
			EnvVars: []string{config.EnvUseMemory},
		},
		&cli.StringFlag{
			Name:    FlagPostgresDSN,
			Usage:   "PostgreSQL connection string",
			EnvVars: []string{config.EnvPostgresDSN},
		},
		&cli.StringFlag{
			Name:    FlagClickHouseDSN,
			Usage:   "ClickHouse connection string (clickhouse://host:9000/db)",
			EnvVars: []string{config.EnvClickHouseDSN},
		},
		&cli.StringFlag{
			Name:    FlagOutputDir,
			Value:   "output",
			Usage:   "Directory for report files",
			EnvVars: []string{config.EnvOutputDir},
		},
	}
}

// Setup builds the validated configuration and the process logger.
// Explicitly set flags win over the environment.
func Setup(c *cli.Context) (config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(c.String(FlagEnvFile)); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("read environment: %w", err)
	}

	if c.IsSet(FlagLogLevel) {
		cfg.LogLevel = c.String(FlagLogLevel)
	}
	if c.IsSet(FlagLogFormat) {
		cfg.LogFormat = c.String(FlagLogFormat)
	}
	if c.IsSet(FlagUseMemory) {
		cfg.UseMemory = c.Bool(FlagUseMemory)
	}
	if c.IsSet(FlagPostgresDSN) {
		cfg.PostgresDSN = c.String(FlagPostgresDSN)
	}
	if c.IsSet(FlagClickHouseDSN) {
		cfg.ClickHouseDSN = c.String(FlagClickHouseDSN)
	}
	if c.IsSet(FlagOutputDir) {
		cfg.OutputDir = c.String(FlagOutputDir)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

// OpenStores creates the stores selected by cfg and returns a cleanup func.
// SQL backends are migrated before use.
func OpenStores(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) (pipeline.Stores, func(), error) {
	if cfg.UseMemory {
		logger.Info().Msg("using in-memory storage")
		return pipeline.Stores{
			Observations: memory.NewObservationStore(),
			Reference:    memory.NewReferenceStore(),
			Anomalies:    memory.NewAnomalyStore(),
			Benchmarks:   memory.NewBenchmarkStore(),
			Comparisons:  memory.NewComparisonStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(int32(cfg.PostgresMaxConns)))
	if err != nil {
		return pipeline.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	started := time.Now()
	err = migrations.RunPostgresMigrations(ctx, pool)
	recordMigration(metrics, "postgres", started, err)
	if err != nil {
		pool.Close()
		return pipeline.Stores{}, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	started = time.Now()
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	recordMigration(metrics, "clickhouse", started, err)
	if err != nil {
		pool.Close()
		return pipeline.Stores{}, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}
	logger.Info().Msg("connected to postgres and clickhouse")

	stores := pipeline.Stores{
		Observations: pgstore.NewObservationStore(pool),
		Reference:    pgstore.NewReferenceStore(pool),
		Anomalies:    pgstore.NewAnomalyStore(pool),
		Benchmarks:   chstore.NewBenchmarkStore(chConn),
		Comparisons:  chstore.NewComparisonStore(chConn),
	}
	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func recordMigration(m *observability.Metrics, store string, started time.Time, err error) {
	if m != nil {
		m.RecordDBQuery(store, "migrate", started, err)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. A second
// signal, or a shutdown that outlasts grace, exits the process.
func SignalContext(parent context.Context, grace time.Duration, logger zerolog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(grace):
			logger.Error().Dur("grace", grace).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
	return ctx, stop
}
