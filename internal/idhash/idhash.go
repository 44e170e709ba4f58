// Package idhash derives deterministic identifiers for engine outputs.
// Identical inputs always produce identical ids, so repeated runs over the same
// snapshot are bit-identical and safe to deduplicate in storage.
package idhash

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Namespace scopes all pricepoint ids (UUIDv5).
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:pricepoint-intel"))

// ComputeAnomalyID computes anomaly_id as UUIDv5 of
// type|sku_id|vendor_id|market_id|detected_at (unix ms)|seq, where seq is the flag's
// discovery ordinal within one detection run.
func ComputeAnomalyID(anomalyType, skuID, vendorID, marketID string, detectedAt time.Time, seq int) string {
	data := fmt.Sprintf("anomaly|%s|%s|%s|%s|%d|%d", anomalyType, skuID, vendorID, marketID, detectedAt.UnixMilli(), seq)
	return uuid.NewSHA1(Namespace, []byte(data)).String()
}

// ComputeBenchmarkID computes benchmark_id as UUIDv5 of
// market_id|sku_id|period_start|period_end (unix ms).
func ComputeBenchmarkID(marketID, skuID string, periodStart, periodEnd time.Time) string {
	data := fmt.Sprintf("benchmark|%s|%s|%d|%d", marketID, skuID, periodStart.UnixMilli(), periodEnd.UnixMilli())
	return uuid.NewSHA1(Namespace, []byte(data)).String()
}
