package domain

import "time"

// UncategorizedID groups observations that carry no category.
const UncategorizedID = "uncategorized"

// RegionalBenchmark is the trailing-period price benchmark for one (market, sku).
type RegionalBenchmark struct {
	BenchmarkID     string    `json:"benchmark_id"`
	SKUID           string    `json:"sku_id"`
	CategoryID      string    `json:"category_id"`
	MarketID        string    `json:"market_id"`
	RegionName      string    `json:"region_name"`
	AvgPrice        float64   `json:"avg_price"`
	MinPrice        float64   `json:"min_price"`
	MaxPrice        float64   `json:"max_price"`
	MedianPrice     float64   `json:"median_price"`
	StdDeviation    float64   `json:"std_deviation"`
	SampleSize      int       `json:"sample_size"`
	VendorCount     int       `json:"vendor_count"`
	PriceTrend      Trend     `json:"price_trend"`
	TrendPercentage float64   `json:"trend_percentage"`
	PeriodStart     time.Time `json:"benchmark_period_start"`
	PeriodEnd       time.Time `json:"benchmark_period_end"`
	CurrencyCode    string    `json:"currency_code"`
}

// ToMap returns the flat presentation mapping.
func (b RegionalBenchmark) ToMap() map[string]any {
	return map[string]any{
		"benchmark_id":           b.BenchmarkID,
		"sku_id":                 b.SKUID,
		"category_id":            b.CategoryID,
		"market_id":              b.MarketID,
		"region_name":            b.RegionName,
		"avg_price":              round2(b.AvgPrice),
		"min_price":              round2(b.MinPrice),
		"max_price":              round2(b.MaxPrice),
		"median_price":           round2(b.MedianPrice),
		"std_deviation":          round2(b.StdDeviation),
		"sample_size":            b.SampleSize,
		"vendor_count":           b.VendorCount,
		"price_trend":            b.PriceTrend.String(),
		"trend_percentage":       round2(b.TrendPercentage),
		"benchmark_period_start": formatTime(b.PeriodStart),
		"benchmark_period_end":   formatTime(b.PeriodEnd),
		"currency_code":          b.CurrencyCode,
	}
}

// VendorBenchmarkComparison places one vendor observation against its (market, sku) benchmark.
type VendorBenchmarkComparison struct {
	BenchmarkID          string        `json:"benchmark_id,omitempty"`
	VendorID             string        `json:"vendor_id"`
	VendorName           string        `json:"vendor_name"`
	MarketID             string        `json:"market_id"`
	RegionName           string        `json:"region_name"`
	SKUID                string        `json:"sku_id"`
	ProductName          string        `json:"product_name"`
	VendorPrice          float64       `json:"vendor_price"`
	BenchmarkAvg         float64       `json:"benchmark_avg"`
	BenchmarkMin         float64       `json:"benchmark_min"`
	BenchmarkMax         float64       `json:"benchmark_max"`
	PricePosition        PricePosition `json:"price_position"`
	VarianceFromAvgPct   float64       `json:"variance_from_avg_pct"`
	PercentileRank       float64       `json:"percentile_rank"`       // 0-100, lower is cheaper
	CompetitivenessScore float64       `json:"competitiveness_score"` // 0-100, higher is more competitive
}

// ToMap returns the flat presentation mapping.
func (c VendorBenchmarkComparison) ToMap() map[string]any {
	return map[string]any{
		"vendor_id":             c.VendorID,
		"vendor_name":           c.VendorName,
		"market_id":             c.MarketID,
		"region_name":           c.RegionName,
		"sku_id":                c.SKUID,
		"product_name":          c.ProductName,
		"vendor_price":          round2(c.VendorPrice),
		"benchmark_avg":         round2(c.BenchmarkAvg),
		"benchmark_min":         round2(c.BenchmarkMin),
		"benchmark_max":         round2(c.BenchmarkMax),
		"price_position":        c.PricePosition.String(),
		"variance_from_avg_pct": round2(c.VarianceFromAvgPct),
		"percentile_rank":       Round(c.PercentileRank, 1),
		"competitiveness_score": Round(c.CompetitivenessScore, 1),
	}
}

// TopVendor is a vendor ranked by observation count within a category.
type TopVendor struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	SKUCount   int    `json:"sku_count"`
}

// CategoryBenchmark aggregates prices for one (market, category).
type CategoryBenchmark struct {
	CategoryID            string      `json:"category_id"`
	CategoryName          string      `json:"category_name"`
	MarketID              string      `json:"market_id"`
	RegionName            string      `json:"region_name"`
	SKUCount              int         `json:"sku_count"`
	VendorCount           int         `json:"vendor_count"`
	AvgPrice              float64     `json:"avg_price"`
	MedianPrice           float64     `json:"median_price"`
	PriceRangeLow         float64     `json:"price_range_low"`
	PriceRangeHigh        float64     `json:"price_range_high"`
	AvgMarginPotentialPct float64     `json:"avg_margin_potential_pct"`
	TopVendors            []TopVendor `json:"top_vendors"`
}

// ToMap returns the flat presentation mapping.
func (c CategoryBenchmark) ToMap() map[string]any {
	top := make([]map[string]any, len(c.TopVendors))
	for i, v := range c.TopVendors {
		top[i] = map[string]any{
			"vendor_id":   v.VendorID,
			"vendor_name": v.VendorName,
			"sku_count":   v.SKUCount,
		}
	}
	return map[string]any{
		"category_id":              c.CategoryID,
		"category_name":            c.CategoryName,
		"market_id":                c.MarketID,
		"region_name":              c.RegionName,
		"sku_count":                c.SKUCount,
		"vendor_count":             c.VendorCount,
		"avg_price":                round2(c.AvgPrice),
		"median_price":             round2(c.MedianPrice),
		"price_range_low":          round2(c.PriceRangeLow),
		"price_range_high":         round2(c.PriceRangeHigh),
		"avg_margin_potential_pct": round2(c.AvgMarginPotentialPct),
		"top_vendors":              top,
	}
}

// PositionBreakdown counts comparisons per price position.
type PositionBreakdown struct {
	BelowMarket    int     `json:"below_market"`
	BelowMarketPct float64 `json:"below_market_pct"`
	AtMarket       int     `json:"at_market"`
	AtMarketPct    float64 `json:"at_market_pct"`
	AboveMarket    int     `json:"above_market"`
	AboveMarketPct float64 `json:"above_market_pct"`
}

// MarketCompetitiveness is a vendor's average competitiveness in one market.
type MarketCompetitiveness struct {
	MarketID           string  `json:"market_id"`
	RegionName         string  `json:"region_name"`
	AvgCompetitiveness float64 `json:"avg_competitiveness"`
	SKUCount           int     `json:"sku_count"`
}

// ImprovementOpportunity is an above-market price a vendor could reduce.
type ImprovementOpportunity struct {
	SKUID                 string  `json:"sku_id"`
	ProductName           string  `json:"product_name"`
	MarketID              string  `json:"market_id"`
	CurrentPrice          float64 `json:"current_price"`
	BenchmarkAvg          float64 `json:"benchmark_avg"`
	PotentialReductionPct float64 `json:"potential_reduction_pct"`
}

// CompetitivenessSummary rolls up a vendor's benchmark comparisons.
type CompetitivenessSummary struct {
	VendorID                 string                   `json:"vendor_id"`
	VendorName               string                   `json:"vendor_name"`
	TotalSKUs                int                      `json:"total_skus"`
	AvgCompetitivenessScore  float64                  `json:"avg_competitiveness_score"`
	AvgVarianceFromMarketPct float64                  `json:"avg_variance_from_market_pct"`
	PositionBreakdown        PositionBreakdown        `json:"position_breakdown"`
	BestMarkets              []MarketCompetitiveness  `json:"best_markets"`
	ImprovementOpportunities []ImprovementOpportunity `json:"improvement_opportunities"`
}

// ToMap returns the flat presentation mapping.
func (s CompetitivenessSummary) ToMap() map[string]any {
	best := make([]map[string]any, len(s.BestMarkets))
	for i, m := range s.BestMarkets {
		best[i] = map[string]any{
			"market_id":           m.MarketID,
			"region_name":         m.RegionName,
			"avg_competitiveness": Round(m.AvgCompetitiveness, 1),
			"sku_count":           m.SKUCount,
		}
	}
	opps := make([]map[string]any, len(s.ImprovementOpportunities))
	for i, o := range s.ImprovementOpportunities {
		opps[i] = map[string]any{
			"sku_id":                  o.SKUID,
			"product_name":            o.ProductName,
			"market_id":               o.MarketID,
			"current_price":           round2(o.CurrentPrice),
			"benchmark_avg":           round2(o.BenchmarkAvg),
			"potential_reduction_pct": round2(o.PotentialReductionPct),
		}
	}
	pb := s.PositionBreakdown
	return map[string]any{
		"vendor_id":                    s.VendorID,
		"vendor_name":                  s.VendorName,
		"total_skus":                   s.TotalSKUs,
		"avg_competitiveness_score":    Round(s.AvgCompetitivenessScore, 1),
		"avg_variance_from_market_pct": round2(s.AvgVarianceFromMarketPct),
		"position_breakdown": map[string]any{
			"below_market":     pb.BelowMarket,
			"below_market_pct": Round(pb.BelowMarketPct, 1),
			"at_market":        pb.AtMarket,
			"at_market_pct":    Round(pb.AtMarketPct, 1),
			"above_market":     pb.AboveMarket,
			"above_market_pct": Round(pb.AboveMarketPct, 1),
		},
		"best_markets":              best,
		"improvement_opportunities": opps,
	}
}

// TrendCounts is a histogram of benchmark trend labels.
type TrendCounts struct {
	Increasing int `json:"increasing"`
	Stable     int `json:"stable"`
	Decreasing int `json:"decreasing"`
}

// MarketSummary rolls up SKU benchmarks for one market.
// TotalVendors sums vendor_count across benchmarks; it counts coverage, not distinct vendors.
type MarketSummary struct {
	MarketID          string      `json:"market_id"`
	RegionName        string      `json:"region_name"`
	SKUCount          int         `json:"sku_count"`
	TotalVendors      int         `json:"total_vendors"`
	AvgPriceAcrossSKU float64     `json:"avg_price_across_skus"`
	PriceTrends       TrendCounts `json:"price_trends"`
}

// MarketOverview is the cross-market rollup of SKU benchmarks.
type MarketOverview struct {
	TotalMarkets int             `json:"total_markets"`
	TotalSKUs    int             `json:"total_skus"`
	Markets      []MarketSummary `json:"markets"`
}

// ToMap returns the flat presentation mapping.
func (o MarketOverview) ToMap() map[string]any {
	markets := make([]map[string]any, len(o.Markets))
	for i, m := range o.Markets {
		markets[i] = map[string]any{
			"market_id":             m.MarketID,
			"region_name":           m.RegionName,
			"sku_count":             m.SKUCount,
			"total_vendors":         m.TotalVendors,
			"avg_price_across_skus": round2(m.AvgPriceAcrossSKU),
			"price_trends": map[string]any{
				"increasing": m.PriceTrends.Increasing,
				"stable":     m.PriceTrends.Stable,
				"decreasing": m.PriceTrends.Decreasing,
			},
		}
	}
	return map[string]any{
		"total_markets": o.TotalMarkets,
		"total_skus":    o.TotalSKUs,
		"markets":       markets,
	}
}
