// Package config assembles engine parameters and service settings from
// defaults, an optional .env file and PRICEPOINT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/proximity"
	"pricepoint-intel/internal/variance"
)

// Env var names.
const (
	EnvPostgresDSN         = "PRICEPOINT_POSTGRES_DSN"
	EnvClickHouseDSN       = "PRICEPOINT_CLICKHOUSE_DSN"
	EnvUseMemory           = "PRICEPOINT_USE_MEMORY"
	EnvOutputDir           = "PRICEPOINT_OUTPUT_DIR"
	EnvHTTPAddr            = "PRICEPOINT_HTTP_ADDR"
	EnvMetricsAddr         = "PRICEPOINT_METRICS_ADDR"
	EnvLogLevel            = "PRICEPOINT_LOG_LEVEL"
	EnvLogFormat           = "PRICEPOINT_LOG_FORMAT"
	EnvMaxDistanceKm       = "PRICEPOINT_MAX_DISTANCE_KM"
	EnvDecayFactor         = "PRICEPOINT_DECAY_FACTOR"
	EnvAverageSpeedKmh     = "PRICEPOINT_AVERAGE_SPEED_KMH"
	EnvZScoreThreshold     = "PRICEPOINT_ZSCORE_THRESHOLD"
	EnvVarianceThreshold   = "PRICEPOINT_VARIANCE_THRESHOLD_PCT"
	EnvRegionalAdjustments = "PRICEPOINT_REGIONAL_ADJUSTMENTS"
	EnvPeriodDays          = "PRICEPOINT_BENCHMARK_PERIOD_DAYS"
	EnvMinSampleSize       = "PRICEPOINT_MIN_SAMPLE_SIZE"
	EnvMinCoverageScore    = "PRICEPOINT_MIN_COVERAGE_SCORE"
	EnvHighVarianceCV      = "PRICEPOINT_HIGH_VARIANCE_CV"
	EnvShutdownTimeout     = "PRICEPOINT_SHUTDOWN_TIMEOUT"
	EnvPostgresMaxConns    = "PRICEPOINT_POSTGRES_MAX_CONNS"
)

// Config is the full runtime configuration.
type Config struct {
	Proximity proximity.Config
	Variance  variance.Config
	Benchmark benchmark.Config

	// MinCoverageScore is the coverage-gap cutoff used by the pipeline.
	MinCoverageScore float64
	// HighVarianceCV is the coefficient-of-variation cutoff for high-variance SKUs.
	HighVarianceCV float64

	PostgresDSN      string
	PostgresMaxConns int
	ClickHouseDSN    string
	UseMemory        bool
	OutputDir        string

	HTTPAddr        string
	MetricsAddr     string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Proximity:        proximity.DefaultConfig(),
		Variance:         variance.DefaultConfig(),
		Benchmark:        benchmark.DefaultConfig(),
		MinCoverageScore: 50,
		HighVarianceCV:   variance.DefaultHighVarianceCV,
		OutputDir:        "output",
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		ShutdownTimeout:  10 * time.Second,
		LogLevel:         "info",
		LogFormat:        "console",
	}
}

// LoadDotEnv loads path (default ".env") into the process environment.
// A missing file is not an error; existing variables are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv returns Default() overridden by PRICEPOINT_* variables.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str(EnvPostgresDSN, &cfg.PostgresDSN)
	p.integer(EnvPostgresMaxConns, &cfg.PostgresMaxConns)
	p.str(EnvClickHouseDSN, &cfg.ClickHouseDSN)
	p.boolean(EnvUseMemory, &cfg.UseMemory)
	p.str(EnvOutputDir, &cfg.OutputDir)
	p.str(EnvHTTPAddr, &cfg.HTTPAddr)
	p.str(EnvMetricsAddr, &cfg.MetricsAddr)
	p.str(EnvLogLevel, &cfg.LogLevel)
	p.str(EnvLogFormat, &cfg.LogFormat)
	p.duration(EnvShutdownTimeout, &cfg.ShutdownTimeout)

	p.float(EnvMaxDistanceKm, &cfg.Proximity.MaxDistanceKm)
	p.float(EnvDecayFactor, &cfg.Proximity.DecayFactor)
	p.float(EnvAverageSpeedKmh, &cfg.Proximity.AverageSpeedKmh)
	p.float(EnvZScoreThreshold, &cfg.Variance.ZScoreThreshold)
	p.float(EnvVarianceThreshold, &cfg.Variance.VarianceThresholdPct)
	p.float(EnvMinCoverageScore, &cfg.MinCoverageScore)
	p.float(EnvHighVarianceCV, &cfg.HighVarianceCV)
	p.integer(EnvPeriodDays, &cfg.Benchmark.PeriodDays)
	p.integer(EnvMinSampleSize, &cfg.Benchmark.MinSampleSize)

	if raw, ok := lookup(EnvRegionalAdjustments); ok && raw != "" {
		adj, err := ParseAdjustments(raw)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", EnvRegionalAdjustments, err))
		} else {
			cfg.Variance.RegionalAdjustments = adj
		}
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseAdjustments parses "NYC=1.2,LA=0.95" into a market → factor map.
func ParseAdjustments(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		market, factor, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(market) == "" {
			return nil, fmt.Errorf("malformed adjustment %q", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(factor), 64)
		if err != nil {
			return nil, fmt.Errorf("adjustment %q: %w", pair, err)
		}
		out[strings.TrimSpace(market)] = v
	}
	return out, nil
}

// Validate checks every engine config plus the service settings.
func (c Config) Validate() error {
	var errs []error
	if err := c.Proximity.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("proximity: %w", err))
	}
	if err := c.Variance.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("variance: %w", err))
	}
	if err := c.Benchmark.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("benchmark: %w", err))
	}
	if c.MinCoverageScore < 0 || c.MinCoverageScore > 100 {
		errs = append(errs, fmt.Errorf("min coverage score must be within [0, 100], got %v", c.MinCoverageScore))
	}
	if c.HighVarianceCV < 0 {
		errs = append(errs, fmt.Errorf("high variance cv must be non-negative, got %v", c.HighVarianceCV))
	}
	if c.PostgresMaxConns < 0 || c.PostgresMaxConns > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("postgres max conns out of range: %d", c.PostgresMaxConns))
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickHouseDSN == "") {
		errs = append(errs, errors.New("postgres and clickhouse DSNs are required unless in-memory storage is used"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// parser collects conversion errors instead of stopping at the first one.
type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) get(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) boolean(key string, dst *bool) {
	if v, ok := p.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (p *parser) float(key string, dst *float64) {
	if v, ok := p.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
}

func (p *parser) integer(key string, dst *int) {
	if v, ok := p.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (p *parser) duration(key string, dst *time.Duration) {
	if v, ok := p.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
