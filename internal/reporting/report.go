package reporting

import (
	"sort"
	"time"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/stats"
)

// Report is the analysis report rendered to Markdown, CSV and GeoJSON.
type Report struct {
	GeneratedAt time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	DataSummary DataSummary
	DataQuality DataQualitySection

	// Reference data, used for map output.
	Markets []domain.Market
	Centers []domain.DistributionCenter

	// Proximity
	CoverageGaps      []domain.CoverageGap
	CenterSuggestions []domain.CenterSuggestion

	// Variance (anomalies sorted by severity)
	Anomalies    []domain.AnomalyFlag
	HighVariance []domain.HighVarianceSKU

	// Benchmarks
	Benchmarks      []domain.RegionalBenchmark
	Comparisons     []domain.VendorBenchmarkComparison
	MarketOverview  domain.MarketOverview
	VendorSummaries []domain.CompetitivenessSummary // sorted by vendor_id
}

// DataQualitySection contains data sufficiency checks and integrity errors.
type DataQualitySection struct {
	Checks          []QualityCheck
	IntegrityErrors []string
	AllChecksPassed bool
}

// QualityCheck represents one sufficiency criterion.
type QualityCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DataSummary describes the analyzed dataset.
type DataSummary struct {
	Observations int
	Vendors      int
	Markets      int
	SKUs         int
	Centers      int
	FirstSeen    time.Time // zero when there are no observations
	LastSeen     time.Time
}

// Summarize computes a DataSummary. Vendor and market counts come from the observations.
func Summarize(observations []domain.PricingObservation, centers []domain.DistributionCenter) DataSummary {
	s := DataSummary{
		Observations: len(observations),
		Vendors:      stats.DistinctVendors(observations),
		Markets:      stats.DistinctMarkets(observations),
		Centers:      len(centers),
	}

	skus := make(map[string]struct{})
	for i, o := range observations {
		skus[o.SKUID] = struct{}{}
		if i == 0 || o.ObservedAt.Before(s.FirstSeen) {
			s.FirstSeen = o.ObservedAt
		}
		if i == 0 || o.ObservedAt.After(s.LastSeen) {
			s.LastSeen = o.ObservedAt
		}
	}
	s.SKUs = len(skus)
	return s
}

// SeverityCounts counts anomalies per severity.
func (r *Report) SeverityCounts() map[domain.Severity]int {
	counts := make(map[domain.Severity]int)
	for _, a := range r.Anomalies {
		counts[a.Severity]++
	}
	return counts
}

func sortSummaries(summaries []domain.CompetitivenessSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].VendorID < summaries[j].VendorID
	})
}
