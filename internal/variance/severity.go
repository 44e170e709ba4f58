package variance

import (
	"math"
	"sort"

	"pricepoint-intel/internal/domain"
)

// DetermineSeverity grades an anomaly from its z-score and percentage variance.
// A nil z-score grades on variance alone.
func DetermineSeverity(zScore *float64, variancePct float64) domain.Severity {
	absZ := 0.0
	if zScore != nil {
		absZ = math.Abs(*zScore)
	}
	absVar := math.Abs(variancePct)

	switch {
	case absZ >= 4 || absVar >= 50:
		return domain.SeverityCritical
	case absZ >= 3 || absVar >= 30:
		return domain.SeverityHigh
	case absZ >= 2 || absVar >= 15:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// SortBySeverity orders flags most severe first, keeping input order within a level.
func SortBySeverity(flags []domain.AnomalyFlag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Severity.Rank() < flags[j].Severity.Rank()
	})
}
