package proximity

import (
	"fmt"

	"pricepoint-intel/internal/domain"
)

// CalculateOptimalCenterLocations suggests a distribution center location as the
// weighted centroid of the markets.
//
// Weights are looked up by market id and default to 1.0. When weights is nil and every
// market carries a population estimate, populations are used instead. A single
// suggestion is returned regardless of numLocations. Empty markets or a zero total
// weight yield an empty result.
func (a *Analyzer) CalculateOptimalCenterLocations(markets []domain.Market, weights map[string]float64, numLocations int) ([]domain.CenterSuggestion, error) {
	if len(markets) == 0 {
		return nil, nil
	}
	for _, m := range markets {
		if err := m.Coordinate().Validate(); err != nil {
			return nil, fmt.Errorf("market %s: %w", m.MarketID, err)
		}
	}

	weightOf := marketWeights(markets, weights)

	totalWeight := 0.0
	for _, m := range markets {
		totalWeight += weightOf(m)
	}
	if totalWeight == 0 {
		return nil, nil
	}

	lat, lon := 0.0, 0.0
	for _, m := range markets {
		w := weightOf(m)
		lat += m.Latitude * w
		lon += m.Longitude * w
	}
	lat /= totalWeight
	lon /= totalWeight

	totalCoverage := 0.0
	covered := 0
	for _, m := range markets {
		d := HaversineDistance(lat, lon, m.Latitude, m.Longitude)
		score := ProximityScore(d, a.cfg.MaxDistanceKm, a.cfg.DecayFactor)
		totalCoverage += score * weightOf(m)
		if score > CoveredScoreThreshold {
			covered++
		}
	}

	a.logger.Debug().
		Float64("latitude", lat).
		Float64("longitude", lon).
		Int("markets_covered", covered).
		Msg("centroid suggestion")

	return []domain.CenterSuggestion{{
		Rank:                 1,
		Latitude:             domain.Round(lat, 6),
		Longitude:            domain.Round(lon, 6),
		AverageCoverageScore: totalCoverage / totalWeight,
		MarketsCovered:       covered,
		TotalMarkets:         len(markets),
	}}, nil
}

func marketWeights(markets []domain.Market, weights map[string]float64) func(domain.Market) float64 {
	if weights != nil {
		return func(m domain.Market) float64 {
			if w, ok := weights[m.MarketID]; ok {
				return w
			}
			return 1.0
		}
	}

	for _, m := range markets {
		if m.PopulationEstimate <= 0 {
			return func(domain.Market) float64 { return 1.0 }
		}
	}
	return func(m domain.Market) float64 {
		return float64(m.PopulationEstimate)
	}
}
