// Package benchmark builds regional price benchmarks and scores vendors against them.
package benchmark

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/group"
	"pricepoint-intel/internal/idhash"
	"pricepoint-intel/internal/stats"
)

// Defaults.
const (
	DefaultPeriodDays    = 30
	DefaultMinSampleSize = 3

	// DefaultMarketID groups observations that carry no market.
	DefaultMarketID = "global"

	bestMarketsLimit   = 3
	opportunitiesLimit = 10
	topVendorsLimit    = 5
)

// Config holds benchmark parameters.
type Config struct {
	PeriodDays    int
	MinSampleSize int
}

// DefaultConfig returns default benchmark parameters.
func DefaultConfig() Config {
	return Config{
		PeriodDays:    DefaultPeriodDays,
		MinSampleSize: DefaultMinSampleSize,
	}
}

// Validate rejects non-positive periods and sample sizes.
func (c Config) Validate() error {
	if c.PeriodDays < 1 {
		return fmt.Errorf("period days must be positive, got %d", c.PeriodDays)
	}
	if c.MinSampleSize < 1 {
		return fmt.Errorf("min sample size must be at least 1, got %d", c.MinSampleSize)
	}
	return nil
}

// Benchmarker aggregates pricing observations into benchmarks.
type Benchmarker struct {
	cfg    Config
	clock  func() time.Time
	logger zerolog.Logger
}

// Option configures Benchmarker.
type Option func(*Benchmarker)

// WithClock sets the clock used when no period end is supplied.
func WithClock(clock func() time.Time) Option {
	return func(b *Benchmarker) {
		b.clock = clock
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Benchmarker) {
		b.logger = l
	}
}

// NewBenchmarker creates a new Benchmarker.
func NewBenchmarker(cfg Config, opts ...Option) *Benchmarker {
	b := &Benchmarker{
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the benchmarker configuration.
func (b *Benchmarker) Config() Config {
	return b.cfg
}

// GroupKey is the (market, sku) key an observation is benchmarked under.
// Observations without a market fall into DefaultMarketID.
func GroupKey(o domain.PricingObservation) group.MarketSKU {
	market := o.MarketID
	if market == "" {
		market = DefaultMarketID
	}
	return group.MarketSKU{MarketID: market, SKUID: o.SKUID}
}

// CreateSKUBenchmarks builds one benchmark per (market, sku) with at least MinSampleSize
// positive prices. The period is the PeriodDays window ending at periodEnd, or at the
// clock's now when periodEnd is nil. Trends compare against historical prices for the
// same key.
func (b *Benchmarker) CreateSKUBenchmarks(pricing, historical []domain.PricingObservation, periodEnd *time.Time) []domain.RegionalBenchmark {
	end := b.clock()
	if periodEnd != nil {
		end = *periodEnd
	}
	start := end.AddDate(0, 0, -b.cfg.PeriodDays)

	history := group.By(historical, GroupKey)

	var out []domain.RegionalBenchmark
	grouped := group.By(pricing, GroupKey)
	grouped.Each(func(k group.MarketSKU, records []domain.PricingObservation) {
		prices := stats.PositivePrices(records)
		if len(prices) < b.cfg.MinSampleSize {
			b.logger.Debug().
				Str("market_id", k.MarketID).
				Str("sku_id", k.SKUID).
				Int("sample_size", len(prices)).
				Msg("below minimum sample size")
			return
		}
		s := stats.Compute(prices)

		past, _ := history.Get(k)
		trend, trendPct := Trend(s.Mean, stats.PositivePrices(past))

		first := records[0]
		out = append(out, domain.RegionalBenchmark{
			BenchmarkID:     idhash.ComputeBenchmarkID(k.MarketID, k.SKUID, start, end),
			SKUID:           k.SKUID,
			CategoryID:      first.CategoryID,
			MarketID:        k.MarketID,
			RegionName:      regionName(first, k.MarketID),
			AvgPrice:        s.Mean,
			MinPrice:        s.Min,
			MaxPrice:        s.Max,
			MedianPrice:     s.Median,
			StdDeviation:    s.StdDev,
			SampleSize:      s.Count,
			VendorCount:     stats.DistinctVendors(records),
			PriceTrend:      trend,
			TrendPercentage: trendPct,
			PeriodStart:     start,
			PeriodEnd:       end,
			CurrencyCode:    first.Currency(),
		})
	})

	return out
}

func regionName(o domain.PricingObservation, marketID string) string {
	if o.RegionName == "" {
		return marketID
	}
	return o.RegionName
}

// CreateCategoryBenchmarks aggregates prices per (market, category). Observations without
// a category fall under "uncategorized". Names come from categoryNames, then from the
// observations, then the id itself.
func (b *Benchmarker) CreateCategoryBenchmarks(pricing []domain.PricingObservation, categoryNames map[string]string) []domain.CategoryBenchmark {
	var out []domain.CategoryBenchmark

	grouped := group.By(pricing, func(o domain.PricingObservation) group.MarketCategory {
		k := GroupKey(o)
		category := o.CategoryID
		if category == "" {
			category = domain.UncategorizedID
		}
		return group.MarketCategory{MarketID: k.MarketID, CategoryID: category}
	})
	grouped.Each(func(k group.MarketCategory, records []domain.PricingObservation) {
		prices := stats.PositivePrices(records)
		if len(prices) == 0 {
			return
		}
		s := stats.Compute(prices)

		name, ok := categoryNames[k.CategoryID]
		if !ok {
			name = records[0].CategoryName
			if name == "" {
				name = k.CategoryID
			}
		}

		out = append(out, domain.CategoryBenchmark{
			CategoryID:            k.CategoryID,
			CategoryName:          name,
			MarketID:              k.MarketID,
			RegionName:            regionName(records[0], k.MarketID),
			SKUCount:              group.By(records, func(o domain.PricingObservation) string { return o.SKUID }).Len(),
			VendorCount:           stats.DistinctVendors(records),
			AvgPrice:              s.Mean,
			MedianPrice:           s.Median,
			PriceRangeLow:         s.Min,
			PriceRangeHigh:        s.Max,
			AvgMarginPotentialPct: marginPotential(records),
			TopVendors:            topVendors(records),
		})
	})

	return out
}

// marginPotential averages (max-min)/min over SKUs with at least two prices.
func marginPotential(records []domain.PricingObservation) float64 {
	var margins []float64
	bySKU := group.By(records, func(o domain.PricingObservation) string { return o.SKUID })
	bySKU.Each(func(_ string, obs []domain.PricingObservation) {
		prices := stats.PositivePrices(obs)
		if len(prices) < 2 {
			return
		}
		s := stats.Compute(prices)
		if s.Min > 0 {
			margins = append(margins, (s.Max-s.Min)/s.Min*100)
		}
	})
	return stats.Mean(margins)
}

// topVendors ranks vendors by observation count, keeping first-seen order on ties.
func topVendors(records []domain.PricingObservation) []domain.TopVendor {
	byVendor := group.New[string, domain.PricingObservation]()
	for _, r := range records {
		if r.VendorID != "" {
			byVendor.Append(r.VendorID, r)
		}
	}

	vendors := make([]domain.TopVendor, 0, byVendor.Len())
	byVendor.Each(func(id string, obs []domain.PricingObservation) {
		vendors = append(vendors, domain.TopVendor{
			VendorID:   id,
			VendorName: obs[len(obs)-1].DisplayVendor(),
			SKUCount:   len(obs),
		})
	})

	sort.SliceStable(vendors, func(i, j int) bool {
		return vendors[i].SKUCount > vendors[j].SKUCount
	})
	if len(vendors) > topVendorsLimit {
		vendors = vendors[:topVendorsLimit]
	}
	return vendors
}

// CompareVendorToBenchmark compares each priced vendor observation with the benchmark for
// its (market, sku). Observations without a matching benchmark are skipped.
func (b *Benchmarker) CompareVendorToBenchmark(vendorPricing []domain.PricingObservation, benchmarks []domain.RegionalBenchmark) []domain.VendorBenchmarkComparison {
	lookup := make(map[group.MarketSKU]domain.RegionalBenchmark, len(benchmarks))
	for _, bm := range benchmarks {
		if bm.SKUID != "" {
			lookup[group.MarketSKU{MarketID: bm.MarketID, SKUID: bm.SKUID}] = bm
		}
	}

	var out []domain.VendorBenchmarkComparison
	for _, r := range vendorPricing {
		if !r.Priced() {
			continue
		}
		k := GroupKey(r)
		bm, ok := lookup[k]
		if !ok {
			continue
		}

		variancePct := stats.PercentDiff(r.UnitPrice, bm.AvgPrice)
		out = append(out, domain.VendorBenchmarkComparison{
			BenchmarkID:          bm.BenchmarkID,
			VendorID:             r.VendorID,
			VendorName:           r.DisplayVendor(),
			MarketID:             k.MarketID,
			RegionName:           regionName(r, k.MarketID),
			SKUID:                r.SKUID,
			ProductName:          r.DisplayProduct(),
			VendorPrice:          r.UnitPrice,
			BenchmarkAvg:         bm.AvgPrice,
			BenchmarkMin:         bm.MinPrice,
			BenchmarkMax:         bm.MaxPrice,
			PricePosition:        Position(variancePct),
			VarianceFromAvgPct:   variancePct,
			PercentileRank:       RangePercentile(r.UnitPrice, bm.MinPrice, bm.MaxPrice),
			CompetitivenessScore: CompetitivenessScore(r.UnitPrice, bm.MinPrice, bm.MaxPrice, bm.AvgPrice),
		})
	}

	return out
}
