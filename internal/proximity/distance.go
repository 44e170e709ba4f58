// Package proximity scores how well vendor distribution centers cover markets.
package proximity

import (
	"fmt"
	"math"

	"pricepoint-intel/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Defaults for scoring parameters.
const (
	DefaultMaxDistanceKm   = 500.0
	DefaultDecayFactor     = 2.0
	DefaultAverageSpeedKmh = 60.0
	DefaultBaseCostPerKm   = 0.005
	DefaultMinCostFactor   = 1.0

	// CoveredScoreThreshold is the proximity score above which a market counts as covered
	// by a suggested center.
	CoveredScoreThreshold = 30.0
)

// HaversineDistance returns the great-circle distance in km between two points given in degrees.
func HaversineDistance(latA, lonA, latB, lonB float64) float64 {
	latARad := latA * math.Pi / 180
	latBRad := latB * math.Pi / 180
	dLat := (latB - latA) * math.Pi / 180
	dLon := (lonB - lonA) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(latARad)*math.Cos(latBRad)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Distance validates both coordinates and returns the haversine distance between them.
func Distance(a, b domain.Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	d := HaversineDistance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	if err := validateDistance(d); err != nil {
		return 0, err
	}
	return d, nil
}

// validateDistance returns ErrInvalidDistance for negative or NaN distances.
func validateDistance(distanceKm float64) error {
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		return fmt.Errorf("%w: %v km", domain.ErrInvalidDistance, distanceKm)
	}
	return nil
}

// ProximityScore maps a distance to 0-100 with exponential decay:
// 100 * e^(-decay * distance / maxDistance). Exactly 100 at distance <= 0 and
// exactly 0 at distance >= maxDistance.
func ProximityScore(distanceKm, maxDistanceKm, decayFactor float64) float64 {
	if distanceKm <= 0 {
		return 100
	}
	if math.IsNaN(distanceKm) || distanceKm >= maxDistanceKm {
		return 0
	}
	score := 100 * math.Exp(-decayFactor*distanceKm/maxDistanceKm)
	return math.Max(0, math.Min(100, score))
}

// EstimateTravelTime returns hours at the given average speed; 0 at distance <= 0
// or for a non-positive speed.
func EstimateTravelTime(distanceKm, averageSpeedKmh float64) float64 {
	if distanceKm <= 0 || averageSpeedKmh <= 0 {
		return 0
	}
	return distanceKm / averageSpeedKmh
}

// ShippingCostFactor returns minFactor + distance*baseCostPerKm, never below minFactor.
func ShippingCostFactor(distanceKm, baseCostPerKm, minFactor float64) float64 {
	return math.Max(minFactor, minFactor+distanceKm*baseCostPerKm)
}
