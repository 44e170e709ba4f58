package reporting

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"pricepoint-intel/internal/domain"
)

// Feature kinds in the coverage map.
const (
	featureMarket     = "market"
	featureCenter     = "distribution_center"
	featureSuggestion = "suggested_center"
)

// CoverageGeoJSON maps markets, centers and suggested center locations as points.
// Each market carries its gap count and worst gap severity.
func CoverageGeoJSON(r *Report) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	gaps := make(map[string][]domain.CoverageGap)
	for _, g := range r.CoverageGaps {
		gaps[g.MarketID] = append(gaps[g.MarketID], g)
	}

	for _, m := range r.Markets {
		f := geojson.NewFeature(orb.Point{m.Longitude, m.Latitude})
		f.ID = m.MarketID
		f.Properties["kind"] = featureMarket
		f.Properties["market_id"] = m.MarketID
		f.Properties["region_name"] = m.RegionName
		if m.PopulationEstimate > 0 {
			f.Properties["population_estimate"] = m.PopulationEstimate
		}

		marketGaps := gaps[m.MarketID]
		f.Properties["gap_count"] = len(marketGaps)
		if worst, ok := worstSeverity(marketGaps); ok {
			f.Properties["worst_gap_severity"] = worst.String()
		}
		fc.Append(f)
	}

	for _, c := range r.Centers {
		f := geojson.NewFeature(orb.Point{c.Longitude, c.Latitude})
		f.ID = c.CenterID
		f.Properties["kind"] = featureCenter
		f.Properties["center_id"] = c.CenterID
		f.Properties["center_name"] = c.CenterName
		f.Properties["vendor_id"] = c.VendorID
		fc.Append(f)
	}

	for _, s := range r.CenterSuggestions {
		f := geojson.NewFeature(orb.Point{s.Longitude, s.Latitude})
		f.Properties["kind"] = featureSuggestion
		f.Properties["rank"] = s.Rank
		f.Properties["average_coverage_score"] = domain.Round(s.AverageCoverageScore, 2)
		f.Properties["markets_covered"] = s.MarketsCovered
		f.Properties["total_markets"] = s.TotalMarkets
		fc.Append(f)
	}

	return fc
}

func worstSeverity(gaps []domain.CoverageGap) (domain.Severity, bool) {
	if len(gaps) == 0 {
		return "", false
	}
	worst := gaps[0].GapSeverity
	for _, g := range gaps[1:] {
		if g.GapSeverity.Rank() < worst.Rank() {
			worst = g.GapSeverity
		}
	}
	return worst, true
}
