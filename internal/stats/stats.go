// Package stats provides the price statistics shared by the variance and benchmarking engines.
package stats

import (
	"math"
	"sort"

	"pricepoint-intel/internal/domain"
)

// Summary holds descriptive statistics for a price sample.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64 // sample standard deviation (n-1), 0 when n <= 1
	Min    float64
	Max    float64
	Range  float64
	CV     float64 // StdDev / Mean, 0 when Mean <= 0
}

// Compute calculates all statistics for prices. Empty input yields a zero Summary.
func Compute(prices []float64) Summary {
	n := len(prices)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	mean := Mean(prices)
	std := SampleStdDev(prices, mean)

	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: medianSorted(sorted),
		StdDev: std,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Range:  sorted[n-1] - sorted[0],
		CV:     cv,
	}
}

// Mean calculates the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, averaging the two central values for even n.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return medianSorted(sorted)
}

// medianSorted requires sorted ASC and non-empty input.
func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// SampleStdDev calculates sample standard deviation (n-1 denominator).
func SampleStdDev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// ZScore returns (value-mean)/stdDev, or 0 when stdDev is 0.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// PercentDiff returns (value-base)/base*100, or 0 when base <= 0.
func PercentDiff(value, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return (value - base) / base * 100
}

// PositivePrices extracts the unit prices of priced observations, in input order.
func PositivePrices(observations []domain.PricingObservation) []float64 {
	prices := make([]float64, 0, len(observations))
	for _, o := range observations {
		if o.Priced() {
			prices = append(prices, o.UnitPrice)
		}
	}
	return prices
}

// DistinctVendors counts distinct non-empty vendor ids.
func DistinctVendors(observations []domain.PricingObservation) int {
	seen := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		if o.VendorID != "" {
			seen[o.VendorID] = struct{}{}
		}
	}
	return len(seen)
}

// DistinctMarkets counts distinct market ids.
func DistinctMarkets(observations []domain.PricingObservation) int {
	seen := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		seen[o.MarketID] = struct{}{}
	}
	return len(seen)
}
