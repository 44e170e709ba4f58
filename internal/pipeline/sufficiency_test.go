package pipeline

import (
	"testing"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/domain"
)

func TestSufficiency_AllPass(t *testing.T) {
	ds := Dataset{
		Current:    fixtureObservations(asOf)[:6],
		Historical: fixtureObservations(asOf)[2:3],
		Vendors:    fixtureVendors,
		Markets:    fixtureMarkets,
		Centers:    fixtureCenters,
	}
	res := NewSufficiencyChecker(1).Check(ds)
	if !res.AllPass {
		t.Errorf("expected all checks to pass, got %+v", res.Checks)
	}
	if len(res.Checks) != 5 {
		t.Errorf("expected 5 checks, got %d", len(res.Checks))
	}
}

func TestSufficiency_IntegrityErrors(t *testing.T) {
	ds := Dataset{
		Current: []domain.PricingObservation{
			{VendorID: "V", SKUID: "S", MarketID: "ZZZ", UnitPrice: 1},
			{VendorID: "V", SKUID: "S", MarketID: "NYC", UnitPrice: 1},
		},
		Vendors: []domain.Vendor{{VendorID: "V"}},
		Markets: []domain.Market{{MarketID: "NYC"}},
		Centers: []domain.DistributionCenter{{CenterID: "DC", VendorID: "GHOST"}},
	}
	res := NewSufficiencyChecker(3).Check(ds)

	if res.AllPass {
		t.Fatal("expected failures")
	}
	want := []string{
		"market ZZZ is observed but has no reference record",
		"center DC belongs to unknown vendor GHOST",
	}
	if len(res.Errors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), res.Errors)
	}
	for i := range want {
		if res.Errors[i] != want[i] {
			t.Errorf("error %d: expected %q, got %q", i, want[i], res.Errors[i])
		}
	}

	byName := make(map[string]SufficiencyCheck)
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	if c := byName["Observed markets with coordinates"]; c.Pass || c.Actual != "50.0%" {
		t.Errorf("unexpected market check %+v", c)
	}
	if c := byName["Benchmarkable market/SKU pairs"]; c.Pass || c.Actual != "0 of 2" {
		t.Errorf("unexpected benchmark check %+v", c)
	}
	if c := byName["Historical observations"]; c.Pass {
		t.Errorf("expected historical check to fail, got %+v", c)
	}
}

func TestSufficiency_BenchmarkableUsesBenchmarkKeys(t *testing.T) {
	ds := Dataset{
		Current: []domain.PricingObservation{
			{VendorID: "V1", SKUID: "S", UnitPrice: 10},
			{VendorID: "V2", SKUID: "S", UnitPrice: 11},
			{VendorID: "V3", SKUID: "S", MarketID: benchmark.DefaultMarketID, UnitPrice: 12},
		},
		Vendors: []domain.Vendor{{VendorID: "V1"}, {VendorID: "V2"}, {VendorID: "V3"}},
	}
	res := NewSufficiencyChecker(3).Check(ds)

	var check SufficiencyCheck
	for _, c := range res.Checks {
		if c.Name == "Benchmarkable market/SKU pairs" {
			check = c
		}
	}
	if !check.Pass || check.Actual != "1 of 1" {
		t.Errorf("expected market-less rows grouped with %q, got %+v", benchmark.DefaultMarketID, check)
	}

	got := benchmark.NewBenchmarker(benchmark.Config{PeriodDays: 30, MinSampleSize: 3}).
		CreateSKUBenchmarks(ds.Current, nil, nil)
	if len(got) != 1 {
		t.Errorf("expected the benchmarker to agree with 1 benchmark, got %d", len(got))
	}
}

func TestConvertToDataQuality(t *testing.T) {
	res := &SufficiencyResult{
		Checks:  []SufficiencyCheck{{Name: "a", Threshold: ">= 1", Actual: "0"}},
		AllPass: false,
		Errors:  []string{"boom"},
	}
	dq := convertToDataQuality(res)
	if len(dq.Checks) != 1 || dq.Checks[0].Name != "a" || dq.AllChecksPassed || dq.IntegrityErrors[0] != "boom" {
		t.Errorf("unexpected section %+v", dq)
	}
}
