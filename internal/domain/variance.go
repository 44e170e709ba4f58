package domain

import "time"

// GlobalAverageRegionID is the synthetic base region used when no base market is given.
const (
	GlobalAverageRegionID   = "global_avg"
	GlobalAverageRegionName = "Global Average"
)

// RegionalStats summarizes prices for one (market, sku) pair.
type RegionalStats struct {
	MarketID               string  `json:"market_id"`
	RegionName             string  `json:"region_name"`
	SKUID                  string  `json:"sku_id"`
	VendorCount            int     `json:"vendor_count"`
	MeanPrice              float64 `json:"mean_price"`
	MedianPrice            float64 `json:"median_price"`
	StdDeviation           float64 `json:"std_deviation"`
	MinPrice               float64 `json:"min_price"`
	MaxPrice               float64 `json:"max_price"`
	PriceRange             float64 `json:"price_range"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
}

// ToMap returns the flat presentation mapping.
func (s RegionalStats) ToMap() map[string]any {
	return map[string]any{
		"market_id":                s.MarketID,
		"region_name":              s.RegionName,
		"sku_id":                   s.SKUID,
		"vendor_count":             s.VendorCount,
		"mean_price":               round2(s.MeanPrice),
		"median_price":             round2(s.MedianPrice),
		"std_deviation":            round2(s.StdDeviation),
		"min_price":                round2(s.MinPrice),
		"max_price":                round2(s.MaxPrice),
		"price_range":              round2(s.PriceRange),
		"coefficient_of_variation": Round(s.CoefficientOfVariation, 4),
	}
}

// PricingVariance compares one market's average SKU price against a base region.
type PricingVariance struct {
	SKUID                string  `json:"sku_id"`
	ProductName          string  `json:"product_name"`
	BaseRegionID         string  `json:"base_region_id"`
	BaseRegionName       string  `json:"base_region_name"`
	BasePrice            float64 `json:"base_price"`
	CurrencyCode         string  `json:"currency_code"`
	ComparisonRegionID   string  `json:"comparison_region_id"`
	ComparisonRegionName string  `json:"comparison_region_name"`
	ComparisonPrice      float64 `json:"comparison_price"`
	AbsoluteVariance     float64 `json:"absolute_variance"`
	PercentageVariance   float64 `json:"percentage_variance"`
	NormalizedVariance   float64 `json:"normalized_variance"` // adjusted by the regional factor
}

// ToMap returns the flat presentation mapping.
func (v PricingVariance) ToMap() map[string]any {
	return map[string]any{
		"sku_id":                 v.SKUID,
		"product_name":           v.ProductName,
		"base_region_id":         v.BaseRegionID,
		"base_region_name":       v.BaseRegionName,
		"base_price":             round2(v.BasePrice),
		"comparison_region_id":   v.ComparisonRegionID,
		"comparison_region_name": v.ComparisonRegionName,
		"comparison_price":       round2(v.ComparisonPrice),
		"absolute_variance":      round2(v.AbsoluteVariance),
		"percentage_variance":    round2(v.PercentageVariance),
		"normalized_variance":    round2(v.NormalizedVariance),
		"currency_code":          v.CurrencyCode,
	}
}

// AnomalyFlag is a detected pricing anomaly.
type AnomalyFlag struct {
	AnomalyID          string      `json:"anomaly_id"`
	SKUID              string      `json:"sku_id"`
	ProductName        string      `json:"product_name"`
	VendorID           string      `json:"vendor_id"`
	VendorName         string      `json:"vendor_name"`
	MarketID           string      `json:"market_id"`
	RegionName         string      `json:"region_name"`
	Type               AnomalyType `json:"anomaly_type"`
	Severity           Severity    `json:"severity"`
	ExpectedPrice      *float64    `json:"expected_price"`
	ActualPrice        float64     `json:"actual_price"`
	VariancePercentage float64     `json:"variance_percentage"`
	ZScore             *float64    `json:"z_score"`
	Description        string      `json:"description"`
	DetectedAt         time.Time   `json:"detected_at"`
}

// ToMap returns the flat presentation mapping.
func (a AnomalyFlag) ToMap() map[string]any {
	return map[string]any{
		"anomaly_id":          a.AnomalyID,
		"sku_id":              a.SKUID,
		"product_name":        a.ProductName,
		"vendor_id":           a.VendorID,
		"vendor_name":         a.VendorName,
		"market_id":           a.MarketID,
		"region_name":         a.RegionName,
		"anomaly_type":        a.Type.String(),
		"severity":            a.Severity.String(),
		"expected_price":      optionalRound(a.ExpectedPrice, 2),
		"actual_price":        round2(a.ActualPrice),
		"variance_percentage": round2(a.VariancePercentage),
		"z_score":             optionalRound(a.ZScore, 2),
		"description":         a.Description,
		"detected_at":         formatTime(a.DetectedAt),
	}
}

// HighVarianceSKU summarizes a SKU whose price dispersion meets the CV threshold.
type HighVarianceSKU struct {
	SKUID                  string  `json:"sku_id"`
	ProductName            string  `json:"product_name"`
	VendorCount            int     `json:"vendor_count"`
	RegionCount            int     `json:"region_count"`
	MeanPrice              float64 `json:"mean_price"`
	MinPrice               float64 `json:"min_price"`
	MaxPrice               float64 `json:"max_price"`
	PriceRange             float64 `json:"price_range"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
	PriceSpreadPct         float64 `json:"price_spread_pct"`
}

// ToMap returns the flat presentation mapping.
func (h HighVarianceSKU) ToMap() map[string]any {
	return map[string]any{
		"sku_id":                   h.SKUID,
		"product_name":             h.ProductName,
		"vendor_count":             h.VendorCount,
		"region_count":             h.RegionCount,
		"mean_price":               round2(h.MeanPrice),
		"min_price":                round2(h.MinPrice),
		"max_price":                round2(h.MaxPrice),
		"price_range":              round2(h.PriceRange),
		"coefficient_of_variation": Round(h.CoefficientOfVariation, 4),
		"price_spread_pct":         round2(h.PriceSpreadPct),
	}
}
