package benchmark

import (
	"math"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/stats"
)

// AtMarketBandPct is the +/- band around the benchmark average treated as at market.
const AtMarketBandPct = 5.0

// CompetitivenessScore scores a price 0-100 within [min, max], higher meaning cheaper.
// Prices below the average earn a bonus of up to 20 points. A degenerate range scores 50.
func CompetitivenessScore(price, minPrice, maxPrice, avgPrice float64) float64 {
	if maxPrice == minPrice {
		return 50
	}

	position := (price - minPrice) / (maxPrice - minPrice)
	score := (1 - position) * 100

	if price < avgPrice {
		bonus := (avgPrice - price) / avgPrice * 20
		score = math.Min(100, score+bonus)
	}

	return math.Max(0, math.Min(100, score))
}

// RangePercentile places price linearly within [min, max] as 0-100; 50 when the range is
// empty. Prices outside the range clamp to 0 or 100.
func RangePercentile(price, minPrice, maxPrice float64) float64 {
	r := maxPrice - minPrice
	if r <= 0 {
		return 50
	}
	pos := math.Max(0, math.Min(1, (price-minPrice)/r))
	return pos * 100
}

// Position classifies a variance from the benchmark average.
func Position(variancePct float64) domain.PricePosition {
	switch {
	case variancePct < -AtMarketBandPct:
		return domain.PositionBelowMarket
	case variancePct > AtMarketBandPct:
		return domain.PositionAboveMarket
	default:
		return domain.PositionAtMarket
	}
}

// Trend labels the change of mean against historical prices: above +2% increasing,
// below -2% decreasing, otherwise stable. Without positive history the trend is stable at 0.
func Trend(mean float64, historical []float64) (domain.Trend, float64) {
	if len(historical) == 0 {
		return domain.TrendStable, 0
	}
	histMean := stats.Mean(historical)
	if histMean <= 0 {
		return domain.TrendStable, 0
	}
	pct := (mean - histMean) / histMean * 100
	switch {
	case pct > 2:
		return domain.TrendIncreasing, pct
	case pct < -2:
		return domain.TrendDecreasing, pct
	default:
		return domain.TrendStable, pct
	}
}
