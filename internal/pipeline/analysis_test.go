package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/reporting"
	"pricepoint-intel/internal/storage/memory"
)

var asOf = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newStores() Stores {
	return Stores{
		Observations: memory.NewObservationStore(),
		Reference:    memory.NewReferenceStore(),
		Anomalies:    memory.NewAnomalyStore(),
		Benchmarks:   memory.NewBenchmarkStore(),
		Comparisons:  memory.NewComparisonStore(),
	}
}

func fixtureAnalysis(t *testing.T, opts ...Option) (*Analysis, Stores) {
	t.Helper()
	stores := newStores()
	require.NoError(t, LoadFixtures(context.Background(), stores.Observations, stores.Reference, asOf))

	opts = append([]Option{WithClock(func() time.Time { return asOf })}, opts...)
	return NewAnalysis(config.Default(), stores, opts...), stores
}

func TestAnalysis_RunOnFixtures(t *testing.T) {
	ctx := context.Background()
	a, stores := fixtureAnalysis(t)

	res, err := a.Run(ctx)
	require.NoError(t, err)
	r := res.Report

	assert.Equal(t, asOf, r.PeriodEnd)
	assert.Equal(t, asOf.AddDate(0, 0, -30), r.PeriodStart)
	assert.Equal(t, 36, r.DataSummary.Observations)
	assert.Equal(t, 2, r.DataSummary.Centers)
	assert.True(t, r.DataQuality.AllChecksPassed, "checks: %+v", r.DataQuality)

	// 3 markets x 2 SKUs, each with 6 current prices.
	assert.Len(t, r.Benchmarks, 6)
	// latest observation per vendor/market/sku
	assert.Len(t, r.Comparisons, 18)
	assert.Len(t, r.VendorSummaries, 3)
	assert.Equal(t, 3, r.MarketOverview.TotalMarkets)

	// Crest has no centers, so every market is a critical gap for it.
	crestGaps := 0
	for _, g := range r.CoverageGaps {
		if g.VendorID == "V-CREST" {
			crestGaps++
			assert.Equal(t, domain.SeverityCritical, g.GapSeverity)
		}
	}
	assert.Equal(t, 3, crestGaps)
	require.Len(t, r.CenterSuggestions, 1)

	var spike *domain.AnomalyFlag
	for i, f := range r.Anomalies {
		if f.Type == domain.AnomalyPriceSpike && f.VendorID == "V-CREST" && f.MarketID == "LA" && f.SKUID == "SKU-100" {
			spike = &r.Anomalies[i]
		}
	}
	require.NotNil(t, spike, "expected the Los Angeles copy paper spike to be flagged")
	assert.Equal(t, asOf, spike.DetectedAt)

	stored, err := stores.Anomalies.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(r.Anomalies))

	bm, err := stores.Benchmarks.GetByKey(ctx, "NYC", "SKU-200")
	require.NoError(t, err)
	assert.Equal(t, domain.TrendIncreasing, bm.PriceTrend)

	acme, err := stores.Comparisons.GetByVendor(ctx, "V-ACME")
	require.NoError(t, err)
	assert.Len(t, acme, 6)
}

func TestAnalysis_RerunSkipsStoredResults(t *testing.T) {
	ctx := context.Background()
	a, stores := fixtureAnalysis(t)

	first, err := a.Run(ctx)
	require.NoError(t, err)
	_, err = a.Run(ctx)
	require.NoError(t, err, "re-running with the same clock must not fail on duplicates")

	stored, err := stores.Anomalies.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(first.Report.Anomalies))
}

func TestAnalysis_WritesFilesAndMetrics(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	metrics := observability.NewMetrics("test_pipeline", prometheus.NewRegistry())
	a, _ := fixtureAnalysis(t, WithOutputDir(dir), WithMetrics(metrics))

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Files, 6)

	_, err = os.Stat(filepath.Join(dir, reporting.ReportFile))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, reporting.CoverageMapFile))
	assert.NoError(t, err)
}

func TestAnalysis_EmptyStores(t *testing.T) {
	a := NewAnalysis(config.Default(), newStores(), WithClock(func() time.Time { return asOf }))

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Report.Anomalies)
	assert.Empty(t, res.Report.Benchmarks)
	assert.Empty(t, res.Report.CoverageGaps)
	assert.False(t, res.Report.DataQuality.AllChecksPassed)
}

func TestLatestObservations(t *testing.T) {
	obs := []domain.PricingObservation{
		{VendorID: "V", MarketID: "M", SKUID: "S", UnitPrice: 1, ObservedAt: asOf.Add(-2 * time.Hour)},
		{VendorID: "V", MarketID: "M", SKUID: "T", UnitPrice: 5, ObservedAt: asOf},
		{VendorID: "V", MarketID: "M", SKUID: "S", UnitPrice: 2, ObservedAt: asOf.Add(-time.Hour)},
		{VendorID: "V", MarketID: "M", SKUID: "S", UnitPrice: 3, ObservedAt: asOf.Add(-3 * time.Hour)},
	}
	got := LatestObservations(obs)
	require.Len(t, got, 2)
	assert.Equal(t, "S", got[0].SKUID)
	assert.Equal(t, 2.0, got[0].UnitPrice)
	assert.Equal(t, "T", got[1].SKUID)
}
