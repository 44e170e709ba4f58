package reporting

import (
	"context"
	"time"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// Generator produces reports from stored data: persisted anomalies, benchmarks and comparisons.
// Coverage sections are left empty; they are computed live by the analysis pipeline.
type Generator struct {
	observations storage.ObservationStore
	reference    storage.ReferenceStore
	anomalies    storage.AnomalyStore
	benchmarks   storage.BenchmarkStore
	comparisons  storage.ComparisonStore
	benchmarker  *benchmark.Benchmarker
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	observations storage.ObservationStore,
	reference storage.ReferenceStore,
	anomalies storage.AnomalyStore,
	benchmarks storage.BenchmarkStore,
	comparisons storage.ComparisonStore,
) *Generator {
	return &Generator{
		observations: observations,
		reference:    reference,
		anomalies:    anomalies,
		benchmarks:   benchmarks,
		comparisons:  comparisons,
		benchmarker:  benchmark.NewBenchmarker(benchmark.DefaultConfig()),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles a report from everything currently stored.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	observations, err := g.observations.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	markets, err := g.reference.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	centers, err := g.reference.ListCenters(ctx)
	if err != nil {
		return nil, err
	}
	vendors, err := g.reference.ListVendors(ctx)
	if err != nil {
		return nil, err
	}

	flags, err := g.anomalies.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	benchmarks, err := g.benchmarks.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	comparisons, summaries, err := g.vendorComparisons(ctx, vendorIDs(vendors, observations))
	if err != nil {
		return nil, err
	}

	summary := Summarize(observations, centers)
	report := &Report{
		GeneratedAt:     g.now(),
		PeriodStart:     summary.FirstSeen,
		PeriodEnd:       summary.LastSeen,
		DataSummary:     summary,
		Markets:         markets,
		Centers:         centers,
		Anomalies:       flags,
		Benchmarks:      benchmarks,
		Comparisons:     comparisons,
		MarketOverview:  g.benchmarker.AggregateMarketSummary(benchmarks),
		VendorSummaries: summaries,
	}
	return report, nil
}

// vendorComparisons loads each vendor's stored comparisons and summarizes them.
func (g *Generator) vendorComparisons(ctx context.Context, vendorIDs []string) ([]domain.VendorBenchmarkComparison, []domain.CompetitivenessSummary, error) {
	var all []domain.VendorBenchmarkComparison
	var summaries []domain.CompetitivenessSummary
	for _, id := range vendorIDs {
		cs, err := g.comparisons.GetByVendor(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if len(cs) == 0 {
			continue
		}
		all = append(all, cs...)
		summaries = append(summaries, g.benchmarker.VendorCompetitivenessSummary(cs))
	}
	sortSummaries(summaries)
	return all, summaries, nil
}

// vendorIDs unions registered vendors with vendors seen only in observations.
func vendorIDs(vendors []domain.Vendor, observations []domain.PricingObservation) []string {
	seen := make(map[string]struct{}, len(vendors))
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, v := range vendors {
		add(v.VendorID)
	}
	for _, o := range observations {
		add(o.VendorID)
	}
	return ids
}
