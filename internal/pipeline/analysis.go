package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/group"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/proximity"
	"pricepoint-intel/internal/reporting"
	"pricepoint-intel/internal/storage"
	"pricepoint-intel/internal/variance"
)

// Engine names used for logs and metrics.
const (
	engineProximity = "proximity"
	engineVariance  = "variance"
	engineBenchmark = "benchmark"
)

// Stores groups the persistence collaborators of an analysis run.
type Stores struct {
	Observations storage.ObservationStore
	Reference    storage.ReferenceStore
	Anomalies    storage.AnomalyStore
	Benchmarks   storage.BenchmarkStore
	Comparisons  storage.ComparisonStore
}

// Result is the outcome of one analysis run.
type Result struct {
	Report *reporting.Report
	Files  []string // written outputs; empty without an output dir
}

// Analysis loads a pricing period, runs the three engines and persists their findings.
type Analysis struct {
	cfg       config.Config
	stores    Stores
	outputDir string
	metrics   *observability.Metrics
	logger    zerolog.Logger
	clock     func() time.Time

	proximity   *proximity.Analyzer
	detector    *variance.Detector
	benchmarker *benchmark.Benchmarker
	checker     *SufficiencyChecker
}

// Option configures an Analysis.
type Option func(*Analysis)

// WithClock sets a custom clock function for deterministic output.
func WithClock(clock func() time.Time) Option {
	return func(a *Analysis) { a.clock = clock }
}

// WithLogger sets the logger, which is also passed to the engines.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analysis) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analysis) { a.metrics = m }
}

// WithOutputDir enables report files in dir.
func WithOutputDir(dir string) Option {
	return func(a *Analysis) { a.outputDir = dir }
}

// NewAnalysis creates an Analysis. cfg should already be validated.
func NewAnalysis(cfg config.Config, stores Stores, opts ...Option) *Analysis {
	a := &Analysis{
		cfg:    cfg,
		stores: stores,
		logger: zerolog.Nop(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}

	a.proximity = proximity.NewAnalyzer(cfg.Proximity, proximity.WithLogger(a.logger))
	a.detector = variance.NewDetector(cfg.Variance, variance.WithClock(a.clock), variance.WithLogger(a.logger))
	a.benchmarker = benchmark.NewBenchmarker(cfg.Benchmark, benchmark.WithClock(a.clock), benchmark.WithLogger(a.logger))
	a.checker = NewSufficiencyChecker(cfg.Benchmark.MinSampleSize)
	return a
}

// engineOutput collects what the engines produce.
type engineOutput struct {
	gaps        []domain.CoverageGap
	suggestions []domain.CenterSuggestion

	anomalies    []domain.AnomalyFlag
	highVariance []domain.HighVarianceSKU

	benchmarks  []domain.RegionalBenchmark
	comparisons []domain.VendorBenchmarkComparison
	summaries   []domain.CompetitivenessSummary
	overview    domain.MarketOverview
}

// Run executes one analysis over the benchmark period ending now:
//   - loads the current and previous period plus reference data
//   - runs proximity, variance and benchmark engines concurrently
//   - persists anomalies, benchmarks and comparisons
//   - writes report files when an output dir is set
func (a *Analysis) Run(ctx context.Context) (res *Result, err error) {
	started := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordPipelineRun(err, time.Since(started))
		}
	}()

	periodEnd := a.clock().UTC().Truncate(time.Millisecond)
	periodStart := periodEnd.AddDate(0, 0, -a.cfg.Benchmark.PeriodDays)

	ds, err := a.load(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.ObservationsAnalyzed.Set(float64(len(ds.Current)))
	}

	quality := a.checker.Check(ds)
	if !quality.AllPass {
		a.logger.Warn().
			Int("integrity_errors", len(quality.Errors)).
			Msg("data sufficiency checks failed, continuing")
	}

	out, err := a.runEngines(ctx, ds, periodEnd)
	if err != nil {
		return nil, err
	}

	if err := a.persist(ctx, out); err != nil {
		return nil, err
	}

	summary := reporting.Summarize(ds.Current, ds.Centers)
	report := &reporting.Report{
		GeneratedAt:       a.clock(),
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		DataSummary:       summary,
		DataQuality:       convertToDataQuality(quality),
		Markets:           ds.Markets,
		Centers:           ds.Centers,
		CoverageGaps:      out.gaps,
		CenterSuggestions: out.suggestions,
		Anomalies:         out.anomalies,
		HighVariance:      out.highVariance,
		Benchmarks:        out.benchmarks,
		Comparisons:       out.comparisons,
		MarketOverview:    out.overview,
		VendorSummaries:   out.summaries,
	}
	res = &Result{Report: report}

	if a.outputDir != "" {
		files, err := reporting.WriteFiles(a.outputDir, report)
		if err != nil {
			return nil, err
		}
		res.Files = files
		if a.metrics != nil {
			a.metrics.ReportsGenerated.Inc()
		}
	}

	a.logger.Info().
		Int("observations", len(ds.Current)).
		Int("anomalies", len(out.anomalies)).
		Int("benchmarks", len(out.benchmarks)).
		Int("comparisons", len(out.comparisons)).
		Int("coverage_gaps", len(out.gaps)).
		Dur("elapsed", time.Since(started)).
		Msg("analysis complete")

	return res, nil
}

func (a *Analysis) load(ctx context.Context, periodStart, periodEnd time.Time) (Dataset, error) {
	var ds Dataset
	var err error

	if ds.Current, err = a.stores.Observations.GetByTimeRange(ctx, periodStart, periodEnd); err != nil {
		return ds, fmt.Errorf("load current period: %w", err)
	}
	historyStart := periodStart.AddDate(0, 0, -a.cfg.Benchmark.PeriodDays)
	if ds.Historical, err = a.stores.Observations.GetByTimeRange(ctx, historyStart, periodStart.Add(-time.Microsecond)); err != nil {
		return ds, fmt.Errorf("load previous period: %w", err)
	}
	if ds.Vendors, err = a.stores.Reference.ListVendors(ctx); err != nil {
		return ds, fmt.Errorf("load vendors: %w", err)
	}
	if ds.Markets, err = a.stores.Reference.ListMarkets(ctx); err != nil {
		return ds, fmt.Errorf("load markets: %w", err)
	}
	if ds.Centers, err = a.stores.Reference.ListCenters(ctx); err != nil {
		return ds, fmt.Errorf("load centers: %w", err)
	}

	a.logger.Info().
		Time("period_start", periodStart).
		Time("period_end", periodEnd).
		Int("current", len(ds.Current)).
		Int("historical", len(ds.Historical)).
		Int("markets", len(ds.Markets)).
		Int("vendors", len(ds.Vendors)).
		Int("centers", len(ds.Centers)).
		Msg("dataset loaded")
	return ds, nil
}

// runEngines runs the three engines concurrently. Each writes only its own fields of out.
func (a *Analysis) runEngines(ctx context.Context, ds Dataset, periodEnd time.Time) (*engineOutput, error) {
	out := &engineOutput{}
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer a.observe(engineProximity, time.Now())
		gaps, err := a.proximity.FindCoverageGaps(ds.Markets, ds.Vendors, ds.Centers, a.cfg.MinCoverageScore)
		if err != nil {
			return fmt.Errorf("coverage gaps: %w", err)
		}
		suggestions, err := a.proximity.CalculateOptimalCenterLocations(ds.Markets, nil, 1)
		if err != nil {
			return fmt.Errorf("center locations: %w", err)
		}
		out.gaps, out.suggestions = gaps, suggestions
		return nil
	})

	g.Go(func() error {
		defer a.observe(engineVariance, time.Now())
		flags := a.detector.DetectAnomalies(ds.Current)
		flags = append(flags, a.detector.DetectHistoricalDeviations(ds.Current, ds.Historical)...)
		flags = append(flags, a.detector.DetectCurrencyMismatches(ds.Current)...)
		variance.SortBySeverity(flags)
		out.anomalies = flags
		out.highVariance = a.detector.GetHighVarianceSKUs(ds.Current, a.cfg.HighVarianceCV)
		return nil
	})

	g.Go(func() error {
		defer a.observe(engineBenchmark, time.Now())
		benchmarks := a.benchmarker.CreateSKUBenchmarks(ds.Current, ds.Historical, &periodEnd)
		comparisons := a.benchmarker.CompareVendorToBenchmark(LatestObservations(ds.Current), benchmarks)

		byVendor := group.By(comparisons, func(c domain.VendorBenchmarkComparison) string { return c.VendorID })
		summaries := make([]domain.CompetitivenessSummary, 0, byVendor.Len())
		byVendor.Each(func(_ string, cs []domain.VendorBenchmarkComparison) {
			summaries = append(summaries, a.benchmarker.VendorCompetitivenessSummary(cs))
		})

		out.benchmarks = benchmarks
		out.comparisons = comparisons
		out.summaries = summaries
		out.overview = a.benchmarker.AggregateMarketSummary(benchmarks)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analysis) observe(engine string, started time.Time) {
	if a.metrics != nil {
		a.metrics.ObserveEngine(engine, started)
	}
	a.logger.Debug().Str("engine", engine).Dur("elapsed", time.Since(started)).Msg("engine finished")
}

// persist stores engine findings. A batch already stored by an earlier run with the same
// clock is reported as a duplicate and skipped.
func (a *Analysis) persist(ctx context.Context, out *engineOutput) error {
	if err := a.insert("anomalies", len(out.anomalies), func() error {
		return a.stores.Anomalies.InsertBulk(ctx, out.anomalies)
	}); err != nil {
		return err
	}
	if err := a.insert("benchmarks", len(out.benchmarks), func() error {
		return a.stores.Benchmarks.InsertBulk(ctx, out.benchmarks)
	}); err != nil {
		return err
	}
	if err := a.insert("comparisons", len(out.comparisons), func() error {
		return a.stores.Comparisons.InsertBulk(ctx, out.comparisons)
	}); err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.RecordAnomalies(out.anomalies)
		a.metrics.RecordCoverageGaps(out.gaps)
		a.metrics.BenchmarksCreated.Add(float64(len(out.benchmarks)))
		a.metrics.ComparisonsComputed.Add(float64(len(out.comparisons)))
	}
	return nil
}

func (a *Analysis) insert(what string, n int, fn func() error) error {
	if n == 0 {
		return nil
	}
	err := fn()
	switch {
	case err == nil:
		a.logger.Info().Str("table", what).Int("rows", n).Msg("results stored")
		return nil
	case errors.Is(err, storage.ErrDuplicateKey):
		a.logger.Warn().Str("table", what).Int("rows", n).Msg("results already stored, skipping")
		return nil
	default:
		return fmt.Errorf("store %s: %w", what, err)
	}
}

// LatestObservations keeps the most recent observation per (vendor, market, sku),
// in first-seen order of the key.
func LatestObservations(observations []domain.PricingObservation) []domain.PricingObservation {
	latest := make(map[group.VendorMarketSKU]int)
	var out []domain.PricingObservation
	for _, o := range observations {
		k := group.VendorMarketSKU{VendorID: o.VendorID, MarketID: o.MarketID, SKUID: o.SKUID}
		i, ok := latest[k]
		if !ok {
			latest[k] = len(out)
			out = append(out, o)
			continue
		}
		if o.ObservedAt.After(out[i].ObservedAt) {
			out[i] = o
		}
	}
	return out
}
