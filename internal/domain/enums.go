package domain

// AnomalyType classifies a pricing anomaly.
type AnomalyType string

const (
	AnomalyPriceSpike          AnomalyType = "price_spike"
	AnomalyPriceDrop           AnomalyType = "price_drop"
	AnomalyRegionalVariance    AnomalyType = "regional_variance"
	AnomalyCompetitorGap       AnomalyType = "competitor_gap"
	AnomalyHistoricalDeviation AnomalyType = "historical_deviation"
	AnomalyCurrencyMismatch    AnomalyType = "currency_mismatch"
)

// String returns the string representation of AnomalyType.
func (t AnomalyType) String() string {
	return string(t)
}

// IsValid checks if the anomaly type is a known value.
func (t AnomalyType) IsValid() bool {
	switch t {
	case AnomalyPriceSpike, AnomalyPriceDrop, AnomalyRegionalVariance,
		AnomalyCompetitorGap, AnomalyHistoricalDeviation, AnomalyCurrencyMismatch:
		return true
	}
	return false
}

// Severity is the anomaly (or coverage gap) severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is a known value.
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Rank orders severities for sorting: critical=0 through low=3, -1 if unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return -1
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= 0 && s.Rank() <= other.Rank()
}

// PricePosition places a vendor price relative to the market average.
type PricePosition string

const (
	PositionBelowMarket PricePosition = "below_market"
	PositionAtMarket    PricePosition = "at_market"
	PositionAboveMarket PricePosition = "above_market"
)

// String returns the string representation of PricePosition.
func (p PricePosition) String() string {
	return string(p)
}

// IsValid checks if the position is a known value.
func (p PricePosition) IsValid() bool {
	return p == PositionBelowMarket || p == PositionAtMarket || p == PositionAboveMarket
}

// Trend is the direction of a benchmark price versus its historical mean.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// String returns the string representation of Trend.
func (t Trend) String() string {
	return string(t)
}

// IsValid checks if the trend is a known value.
func (t Trend) IsValid() bool {
	return t == TrendIncreasing || t == TrendDecreasing || t == TrendStable
}
