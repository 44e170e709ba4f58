package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// NaN and infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// round2 is the default presentation precision for prices and percentages.
func round2(v float64) float64 { return Round(v, 2) }

// finiteOrNil maps infinite distances to nil so the mapping stays JSON-safe.
func finiteOrNil(v float64, places int32) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return Round(v, places)
}

// optionalRound returns nil for a nil pointer, otherwise the rounded value.
func optionalRound(v *float64, places int32) any {
	if v == nil {
		return nil
	}
	return Round(*v, places)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FromMap decodes a flat mapping produced by a ToMap method back into T.
// Values are whatever the mapping holds, so rounded floats stay rounded.
func FromMap[T any](m map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(m)
	if err != nil {
		return out, fmt.Errorf("encode mapping: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode mapping: %w", err)
	}
	return out, nil
}
