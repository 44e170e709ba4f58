package pipeline

import (
	"fmt"
	"sort"

	"pricepoint-intel/internal/benchmark"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/group"
	"pricepoint-intel/internal/reporting"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// Dataset is everything one analysis run reads.
type Dataset struct {
	Current    []domain.PricingObservation
	Historical []domain.PricingObservation
	Vendors    []domain.Vendor
	Markets    []domain.Market
	Centers    []domain.DistributionCenter
}

// SufficiencyChecker validates that a dataset can support the analysis.
// Failed checks are reported, not fatal.
type SufficiencyChecker struct {
	minSampleSize int
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(minSampleSize int) *SufficiencyChecker {
	return &SufficiencyChecker{minSampleSize: minSampleSize}
}

// Check performs all sufficiency checks.
func (c *SufficiencyChecker) Check(ds Dataset) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 5),
		AllPass: true,
		Errors:  []string{},
	}

	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	add(countCheck("Observations in period", len(ds.Current)))
	add(countCheck("Historical observations", len(ds.Historical)))
	add(c.checkBenchmarkable(ds.Current))

	marketCheck, marketErrors := checkMarketReferences(ds.Current, ds.Markets)
	add(marketCheck)
	result.Errors = append(result.Errors, marketErrors...)

	centerCheck, centerErrors := checkCenters(ds.Vendors, ds.Centers)
	add(centerCheck)
	result.Errors = append(result.Errors, centerErrors...)

	if len(result.Errors) > 0 {
		result.AllPass = false
	}
	return result
}

func countCheck(name string, n int) SufficiencyCheck {
	return SufficiencyCheck{
		Name:      name,
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", n),
		Pass:      n >= 1,
	}
}

// checkBenchmarkable counts (market, sku) pairs with enough positive prices to benchmark.
func (c *SufficiencyChecker) checkBenchmarkable(current []domain.PricingObservation) SufficiencyCheck {
	groups := group.By(current, benchmark.GroupKey)

	eligible := 0
	groups.Each(func(_ group.MarketSKU, records []domain.PricingObservation) {
		priced := 0
		for _, r := range records {
			if r.Priced() {
				priced++
			}
		}
		if priced >= c.minSampleSize {
			eligible++
		}
	})

	return SufficiencyCheck{
		Name:      "Benchmarkable market/SKU pairs",
		Threshold: fmt.Sprintf(">= 1 with %d+ prices", c.minSampleSize),
		Actual:    fmt.Sprintf("%d of %d", eligible, groups.Len()),
		Pass:      eligible >= 1,
	}
}

// checkMarketReferences requires every observed market to have a reference record.
func checkMarketReferences(current []domain.PricingObservation, markets []domain.Market) (SufficiencyCheck, []string) {
	known := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		known[m.MarketID] = struct{}{}
	}

	observed := make(map[string]struct{})
	missing := make(map[string]struct{})
	for _, o := range current {
		if o.MarketID == "" {
			continue
		}
		observed[o.MarketID] = struct{}{}
		if _, ok := known[o.MarketID]; !ok {
			missing[o.MarketID] = struct{}{}
		}
	}

	var errs []string
	for _, id := range sortedKeys(missing) {
		errs = append(errs, fmt.Sprintf("market %s is observed but has no reference record", id))
	}

	actual := "n/a"
	if len(observed) > 0 {
		actual = fmt.Sprintf("%.1f%%", float64(len(observed)-len(missing))/float64(len(observed))*100)
	}
	return SufficiencyCheck{
		Name:      "Observed markets with coordinates",
		Threshold: "100%",
		Actual:    actual,
		Pass:      len(missing) == 0,
	}, errs
}

// checkCenters requires at least one center and flags centers owned by unknown vendors.
func checkCenters(vendors []domain.Vendor, centers []domain.DistributionCenter) (SufficiencyCheck, []string) {
	known := make(map[string]struct{}, len(vendors))
	for _, v := range vendors {
		known[v.VendorID] = struct{}{}
	}

	withCenters := make(map[string]struct{})
	var errs []string
	for _, c := range centers {
		if _, ok := known[c.VendorID]; !ok {
			errs = append(errs, fmt.Sprintf("center %s belongs to unknown vendor %s", c.CenterID, c.VendorID))
			continue
		}
		withCenters[c.VendorID] = struct{}{}
	}

	return SufficiencyCheck{
		Name:      "Vendors with distribution centers",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d of %d", len(withCenters), len(vendors)),
		Pass:      len(withCenters) >= 1,
	}, errs
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// convertToDataQuality converts a SufficiencyResult into the report section.
func convertToDataQuality(result *SufficiencyResult) reporting.DataQualitySection {
	checks := make([]reporting.QualityCheck, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.QualityCheck{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		Checks:          checks,
		IntegrityErrors: result.Errors,
		AllChecksPassed: result.AllPass,
	}
}
