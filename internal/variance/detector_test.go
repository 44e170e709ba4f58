package variance

import (
	"math"
	"testing"
	"time"

	"pricepoint-intel/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDetector() *Detector {
	return NewDetector(DefaultConfig(), WithClock(func() time.Time { return fixedNow }))
}

func obs(sku, vendor, market string, price float64) domain.PricingObservation {
	return domain.PricingObservation{
		SKUID:        sku,
		VendorID:     vendor,
		VendorName:   "Vendor " + vendor,
		MarketID:     market,
		RegionName:   "Region " + market,
		ProductName:  "Product " + sku,
		UnitPrice:    price,
		CurrencyCode: "USD",
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestDetermineSeverity(t *testing.T) {
	cases := []struct {
		z    *float64
		v    float64
		want domain.Severity
	}{
		{ptr(4.5), 60, domain.SeverityCritical},
		{ptr(3.5), 40, domain.SeverityHigh},
		{ptr(2.5), 20, domain.SeverityMedium},
		{ptr(1.0), 5, domain.SeverityLow},
		{ptr(-4.0), 0, domain.SeverityCritical},
		{nil, 55, domain.SeverityCritical},
		{nil, -30, domain.SeverityHigh},
		{nil, 14.9, domain.SeverityLow},
	}
	for _, tc := range cases {
		if got := DetermineSeverity(tc.z, tc.v); got != tc.want {
			t.Errorf("DetermineSeverity(%v, %v) = %s, want %s", tc.z, tc.v, got, tc.want)
		}
	}
}

func TestCalculateRegionalVariance_GlobalAverage(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "B", 120),
		obs("S1", "V3", "C", 80),
	}

	got := d.CalculateRegionalVariance(pricing, "")
	if len(got) != 3 {
		t.Fatalf("expected 3 variances, got %d", len(got))
	}
	for _, v := range got {
		if v.BaseRegionID != domain.GlobalAverageRegionID || v.BaseRegionName != domain.GlobalAverageRegionName {
			t.Errorf("expected global average base, got %s/%s", v.BaseRegionID, v.BaseRegionName)
		}
		if v.BasePrice != 100 {
			t.Errorf("expected base price 100, got %f", v.BasePrice)
		}
	}
	if got[1].ComparisonRegionID != "B" || math.Abs(got[1].PercentageVariance-20) > 1e-9 {
		t.Errorf("expected B at +20%%, got %s %f", got[1].ComparisonRegionID, got[1].PercentageVariance)
	}
}

func TestCalculateRegionalVariance_BaseRegionAndAdjustment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RegionalAdjustments = map[string]float64{"B": 2.0}
	d := NewDetector(cfg)
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "B", 120),
		obs("S1", "V3", "C", 80),
	}

	got := d.CalculateRegionalVariance(pricing, "A")
	if len(got) != 2 {
		t.Fatalf("expected 2 variances excluding the base, got %d", len(got))
	}
	b := got[0]
	if b.BaseRegionID != "A" || b.BaseRegionName != "Region A" {
		t.Errorf("expected base A, got %s/%s", b.BaseRegionID, b.BaseRegionName)
	}
	if math.Abs(b.AbsoluteVariance-20) > 1e-9 || math.Abs(b.PercentageVariance-20) > 1e-9 {
		t.Errorf("expected +20 / +20%%, got %f / %f", b.AbsoluteVariance, b.PercentageVariance)
	}
	if math.Abs(b.NormalizedVariance-10) > 1e-9 {
		t.Errorf("expected normalized 10, got %f", b.NormalizedVariance)
	}
	if math.Abs(got[1].NormalizedVariance-(-20)) > 1e-9 {
		t.Errorf("expected unadjusted -20 for C, got %f", got[1].NormalizedVariance)
	}
}

func TestCalculateRegionalVariance_MissingBaseFallsBack(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "B", 120),
	}

	got := d.CalculateRegionalVariance(pricing, "Z")
	if len(got) != 2 || got[0].BaseRegionID != domain.GlobalAverageRegionID {
		t.Errorf("expected global average fallback, got %+v", got)
	}
}

func TestCalculateRegionalVariance_SingleMarketSkipped(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 120),
		obs("S2", "V1", "A", 10),
		obs("S2", "V1", "B", 0),
	}

	if got := d.CalculateRegionalVariance(pricing, ""); len(got) != 0 {
		t.Errorf("expected no variances, got %d", len(got))
	}
}

func TestDetectAnomalies_SpikeAndDrops(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 100),
		obs("S1", "V3", "A", 100),
		obs("S1", "V4", "A", 100),
		obs("S1", "V5", "A", 200),
	}

	flags := d.DetectAnomalies(pricing)
	if len(flags) != 5 {
		t.Fatalf("expected 5 flags, got %d", len(flags))
	}

	spike := flags[0]
	if spike.Type != domain.AnomalyPriceSpike || spike.Severity != domain.SeverityCritical {
		t.Errorf("expected critical spike first, got %s %s", spike.Type, spike.Severity)
	}
	if spike.VendorID != "V5" || *spike.ExpectedPrice != 120 {
		t.Errorf("unexpected spike fields: %+v", spike)
	}
	wantDesc := "Price 200.00 is 66.7% above market average (120.00)"
	if spike.Description != wantDesc {
		t.Errorf("expected description %q, got %q", wantDesc, spike.Description)
	}

	for _, f := range flags[1:] {
		if f.Type != domain.AnomalyPriceDrop || f.Severity != domain.SeverityMedium {
			t.Errorf("expected medium drop, got %s %s", f.Type, f.Severity)
		}
		if f.Description != "Price 100.00 is 16.7% below market average (120.00)" {
			t.Errorf("unexpected drop description %q", f.Description)
		}
	}
	for _, f := range flags {
		if !f.DetectedAt.Equal(fixedNow) {
			t.Errorf("expected detected_at from clock, got %v", f.DetectedAt)
		}
	}
}

func TestDetectAnomalies_RegionalVariance(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "B", 200),
	}

	flags := d.DetectAnomalies(pricing)
	if len(flags) != 4 {
		t.Fatalf("expected 4 flags, got %d", len(flags))
	}

	var regional []domain.AnomalyFlag
	for _, f := range flags {
		if f.Severity != domain.SeverityHigh {
			t.Errorf("expected high severity, got %s", f.Severity)
		}
		if f.Type == domain.AnomalyRegionalVariance {
			regional = append(regional, f)
		}
	}
	if len(regional) != 2 {
		t.Fatalf("expected 2 regional flags, got %d", len(regional))
	}
	r := regional[1]
	if r.VendorID != "" || r.VendorName != "Multiple Vendors" || r.ZScore != nil {
		t.Errorf("unexpected regional identity: %+v", r)
	}
	if r.MarketID != "B" || *r.ExpectedPrice != 150 || r.ActualPrice != 200 {
		t.Errorf("unexpected regional prices: %+v", r)
	}
	want := "Regional price variance: Region B is 33.3% different from Global Average"
	if r.Description != want {
		t.Errorf("expected %q, got %q", want, r.Description)
	}
}

func TestDetectAnomalies_NoFlagsForUniformPrices(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 100),
		obs("S2", "V1", "A", 50),
	}

	if flags := d.DetectAnomalies(pricing); len(flags) != 0 {
		t.Errorf("expected no flags, got %d", len(flags))
	}
	if flags := d.DetectAnomalies(nil); len(flags) != 0 {
		t.Errorf("expected no flags for empty input, got %d", len(flags))
	}
}

func TestDetectAnomalies_SortedBySeverity(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 100),
		obs("S1", "V3", "A", 100),
		obs("S1", "V4", "A", 100),
		obs("S1", "V5", "A", 200),
		obs("S2", "V1", "A", 100),
		obs("S2", "V2", "B", 200),
	}

	flags := d.DetectAnomalies(pricing)
	for i := 1; i < len(flags); i++ {
		if flags[i].Severity.Rank() < flags[i-1].Severity.Rank() {
			t.Fatalf("flags not sorted by severity at %d", i)
		}
	}
}

func TestDetectAnomalies_DeterministicIDs(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "B", 200),
	}

	first := d.DetectAnomalies(pricing)
	second := d.DetectAnomalies(pricing)
	seen := make(map[string]bool)
	for i := range first {
		if first[i].AnomalyID != second[i].AnomalyID {
			t.Errorf("expected stable id at %d", i)
		}
		if seen[first[i].AnomalyID] {
			t.Errorf("duplicate id %s", first[i].AnomalyID)
		}
		seen[first[i].AnomalyID] = true
	}
}

func TestDetectHistoricalDeviations(t *testing.T) {
	d := newTestDetector()
	current := []domain.PricingObservation{
		obs("S1", "V1", "A", 130),
		obs("S1", "V2", "A", 105),
		obs("S1", "V3", "A", 500),
	}
	historical := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 100),
	}

	flags := d.DetectHistoricalDeviations(current, historical)
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	f := flags[0]
	if f.Type != domain.AnomalyHistoricalDeviation || f.VendorID != "V1" {
		t.Errorf("unexpected flag: %+v", f)
	}
	if f.Severity != domain.SeverityHigh || math.Abs(f.VariancePercentage-30) > 1e-9 {
		t.Errorf("expected high at 30%%, got %s %f", f.Severity, f.VariancePercentage)
	}
	if f.Description != "Price 130.00 is 30.0% above historical average (100.00)" {
		t.Errorf("unexpected description %q", f.Description)
	}

	if got := d.DetectHistoricalDeviations(current, nil); len(got) != 0 {
		t.Errorf("expected no flags without history, got %d", len(got))
	}
}

func TestDetectCurrencyMismatches(t *testing.T) {
	d := newTestDetector()
	eur := obs("S1", "V3", "A", 90)
	eur.CurrencyCode = "EUR"
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 100),
		obs("S1", "V2", "A", 100),
		eur,
	}

	flags := d.DetectCurrencyMismatches(pricing)
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	if flags[0].VendorID != "V3" || flags[0].Type != domain.AnomalyCurrencyMismatch || flags[0].Severity != domain.SeverityMedium {
		t.Errorf("unexpected flag: %+v", flags[0])
	}
}

func TestDetectCurrencyMismatches_TieGoesToFirstSeen(t *testing.T) {
	d := newTestDetector()
	eur := obs("S1", "V2", "A", 90)
	eur.CurrencyCode = "EUR"
	pricing := []domain.PricingObservation{obs("S1", "V1", "A", 100), eur}

	flags := d.DetectCurrencyMismatches(pricing)
	if len(flags) != 1 || flags[0].VendorID != "V2" {
		t.Errorf("expected EUR observation flagged, got %+v", flags)
	}
}

func TestCalculateRegionalStats(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("S1", "V1", "A", 10),
		obs("S1", "V2", "A", 20),
		obs("S1", "V2", "A", 30),
		obs("S2", "V1", "A", 0),
	}

	got := d.CalculateRegionalStats(pricing)
	if len(got) != 1 {
		t.Fatalf("expected 1 stats row, got %d", len(got))
	}
	s := got[0]
	if s.VendorCount != 2 || s.MeanPrice != 20 || s.MedianPrice != 20 || s.StdDeviation != 10 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.CoefficientOfVariation != 0.5 || s.PriceRange != 20 || s.RegionName != "Region A" {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestGetHighVarianceSKUs(t *testing.T) {
	d := newTestDetector()
	pricing := []domain.PricingObservation{
		obs("WIDE", "V1", "A", 50),
		obs("WIDE", "V2", "B", 100),
		obs("TIGHT", "V1", "A", 100),
		obs("TIGHT", "V2", "A", 102),
		obs("SOLO", "V1", "A", 10),
	}

	got := d.GetHighVarianceSKUs(pricing, 0.3)
	if len(got) != 1 || got[0].SKUID != "WIDE" {
		t.Fatalf("expected only WIDE, got %+v", got)
	}
	h := got[0]
	if h.VendorCount != 2 || h.RegionCount != 2 {
		t.Errorf("expected 2 vendors and 2 regions, got %d/%d", h.VendorCount, h.RegionCount)
	}
	if math.Abs(h.PriceSpreadPct-50.0/75.0*100) > 1e-9 {
		t.Errorf("unexpected spread %f", h.PriceSpreadPct)
	}

	all := d.GetHighVarianceSKUs(pricing, 0)
	if len(all) != 2 || all[0].SKUID != "WIDE" || all[1].SKUID != "TIGHT" {
		t.Errorf("expected WIDE then TIGHT, got %+v", all)
	}
}
