// Command analyze runs one analysis over the stored pricing data and writes
// PRICING_REPORT.md, the CSV exports and coverage.geojson.
//
// Usage:
//
//	analyze --use-memory --fixtures --output-dir output
//	analyze --postgres-dsn ... --clickhouse-dsn ...
//	analyze --report-only
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"pricepoint-intel/internal/app"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/pipeline"
	"pricepoint-intel/internal/reporting"
)

func main() {
	flags := append(app.CommonFlags(),
		&cli.BoolFlag{
			Name:  "fixtures",
			Usage: "Load the demonstration dataset first (implies --use-memory)",
		},
		&cli.TimestampFlag{
			Name:   "as-of",
			Layout: time.RFC3339,
			Usage:  "Analysis end time (RFC3339), defaults to now",
		},
		&cli.BoolFlag{
			Name:  "report-only",
			Usage: "Render a report from stored results without running the engines",
		},
	)

	cliApp := &cli.App{
		Name:   "analyze",
		Usage:  "Run coverage, variance and benchmark analysis and write reports",
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

	clock := func() time.Time { return time.Now().UTC() }
	if ts := c.Timestamp("as-of"); ts != nil {
		asOf := ts.UTC()
		clock = func() time.Time { return asOf }
	}

	ctx, stop := app.SignalContext(c.Context, cfg.ShutdownTimeout, logger)
	defer stop()

	metrics := observability.DefaultMetrics
	stores, cleanup, err := app.OpenStores(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Bool("fixtures") {
		if err := pipeline.LoadFixtures(ctx, stores.Observations, stores.Reference, clock()); err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
		logger.Info().Time("as_of", clock()).Msg("fixtures loaded")
	}

	if c.Bool("report-only") {
		report, err := reporting.NewGenerator(
			stores.Observations,
			stores.Reference,
			stores.Anomalies,
			stores.Benchmarks,
			stores.Comparisons,
		).WithClock(clock).Generate(ctx)
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		files, err := reporting.WriteFiles(cfg.OutputDir, report)
		if err != nil {
			return err
		}
		logger.Info().Strs("files", files).Msg("report written")
		return nil
	}

	analysis := pipeline.NewAnalysis(cfg, stores,
		pipeline.WithClock(clock),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithOutputDir(cfg.OutputDir),
	)
	res, err := analysis.Run(ctx)
	if err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	counts := res.Report.SeverityCounts()
	logger.Info().
		Strs("files", res.Files).
		Int("critical", counts[domain.SeverityCritical]).
		Int("high", counts[domain.SeverityHigh]).
		Msg("reports written")
	return nil
}
