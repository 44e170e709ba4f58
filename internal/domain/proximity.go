package domain

// ProximityScore is the distance-derived score between a market and one distribution center.
type ProximityScore struct {
	VendorID           string  `json:"vendor_id"`
	VendorName         string  `json:"vendor_name"`
	CenterID           string  `json:"center_id"`
	CenterName         string  `json:"center_name"`
	MarketID           string  `json:"market_id"`
	DistanceKm         float64 `json:"distance_km"`
	Score              float64 `json:"proximity_score"`            // 0-100, higher is closer
	TravelTimeHours    float64 `json:"travel_time_estimate_hours"` // at the configured average speed
	ShippingCostFactor float64 `json:"shipping_cost_factor"`       // >= min factor
}

// ToMap returns the flat presentation mapping.
func (p ProximityScore) ToMap() map[string]any {
	return map[string]any{
		"vendor_id":                  p.VendorID,
		"vendor_name":                p.VendorName,
		"center_id":                  p.CenterID,
		"center_name":                p.CenterName,
		"market_id":                  p.MarketID,
		"distance_km":                round2(p.DistanceKm),
		"proximity_score":            round2(p.Score),
		"travel_time_estimate_hours": round2(p.TravelTimeHours),
		"shipping_cost_factor":       Round(p.ShippingCostFactor, 3),
	}
}

// VendorCoverage aggregates a vendor's centers against one market.
// A vendor without centers has CenterCount 0, CoverageScore 0 and infinite distances.
type VendorCoverage struct {
	VendorID                string           `json:"vendor_id"`
	VendorName              string           `json:"vendor_name"`
	MarketID                string           `json:"market_id"`
	RegionName              string           `json:"region_name"`
	NearestCenterDistanceKm float64          `json:"nearest_center_distance_km"`
	AverageDistanceKm       float64          `json:"average_distance_km"`
	CoverageScore           float64          `json:"coverage_score"`
	CenterCount             int              `json:"center_count"`
	Centers                 []ProximityScore `json:"-"` // nearest first
}

// HasCoverage reports whether at least one center contributed.
func (c VendorCoverage) HasCoverage() bool {
	return c.CenterCount > 0
}

// ToMap returns the flat presentation mapping. Infinite distances become nil.
func (c VendorCoverage) ToMap() map[string]any {
	return map[string]any{
		"vendor_id":                  c.VendorID,
		"vendor_name":                c.VendorName,
		"market_id":                  c.MarketID,
		"region_name":                c.RegionName,
		"nearest_center_distance_km": finiteOrNil(c.NearestCenterDistanceKm, 2),
		"average_distance_km":        finiteOrNil(c.AverageDistanceKm, 2),
		"coverage_score":             round2(c.CoverageScore),
		"center_count":               c.CenterCount,
	}
}

// CoverageGap flags a (market, vendor) pair below the minimum coverage score.
type CoverageGap struct {
	MarketID                string   `json:"market_id"`
	RegionName              string   `json:"region_name"`
	VendorID                string   `json:"vendor_id"`
	VendorName              string   `json:"vendor_name"`
	CoverageScore           float64  `json:"coverage_score"`
	NearestCenterDistanceKm float64  `json:"nearest_center_distance_km"`
	CenterCount             int      `json:"center_count"`
	GapSeverity             Severity `json:"gap_severity"`
}

// ToMap returns the flat presentation mapping.
func (g CoverageGap) ToMap() map[string]any {
	return map[string]any{
		"market_id":                  g.MarketID,
		"region_name":                g.RegionName,
		"vendor_id":                  g.VendorID,
		"vendor_name":                g.VendorName,
		"coverage_score":             round2(g.CoverageScore),
		"nearest_center_distance_km": finiteOrNil(g.NearestCenterDistanceKm, 2),
		"center_count":               g.CenterCount,
		"gap_severity":               g.GapSeverity.String(),
	}
}

// CenterSuggestion is a suggested distribution center location.
type CenterSuggestion struct {
	Rank                 int     `json:"rank"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	AverageCoverageScore float64 `json:"average_coverage_score"`
	MarketsCovered       int     `json:"markets_covered"`
	TotalMarkets         int     `json:"total_markets"`
}

// ToMap returns the flat presentation mapping.
func (s CenterSuggestion) ToMap() map[string]any {
	return map[string]any{
		"rank":                   s.Rank,
		"latitude":               Round(s.Latitude, 6),
		"longitude":              Round(s.Longitude, 6),
		"average_coverage_score": round2(s.AverageCoverageScore),
		"markets_covered":        s.MarketsCovered,
		"total_markets":          s.TotalMarkets,
	}
}
