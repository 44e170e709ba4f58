package ingestion

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"pricepoint-intel/internal/domain"
)

// Record is one input row keyed by canonical field name.
type Record map[string]string

func (r Record) get(field string) string {
	return strings.TrimSpace(r[field])
}

// Field length limits.
const (
	maxIDLen   = 36
	maxNameLen = 255
)

// DefaultCountryCode is assumed for markets without a country.
const DefaultCountryCode = "US"

// Validator turns raw records into domain values, collecting row-level issues.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// timeLayouts are tried in order for observed_at.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Observation validates a vendor pricing record. now fills a missing observed_at.
func (v *Validator) Observation(rec Record, row int, now time.Time) (domain.PricingObservation, Issues) {
	var iss Issues
	o := domain.PricingObservation{
		VendorID:     v.requiredID(&iss, rec, "vendor_id", row),
		SKUID:        v.requiredID(&iss, rec, "sku_id", row),
		MarketID:     v.optional(&iss, rec, "market_id", maxIDLen, row),
		VendorName:   v.optional(&iss, rec, "vendor_name", maxNameLen, row),
		RegionName:   v.optional(&iss, rec, "region_name", maxNameLen, row),
		ProductName:  v.optional(&iss, rec, "product_name", 500, row),
		CategoryID:   v.optional(&iss, rec, "category_id", maxIDLen, row),
		CategoryName: v.optional(&iss, rec, "category_name", maxNameLen, row),
		CurrencyCode: v.currency(&iss, rec, row),
	}

	raw := rec.get("unit_price")
	switch price, err := strconv.ParseFloat(raw, 64); {
	case raw == "":
		iss.errorf(row, "unit_price", raw, "unit_price is required")
	case err != nil:
		iss.errorf(row, "unit_price", raw, "unit_price must be a valid number")
	case price < 0:
		iss.errorf(row, "unit_price", raw, "unit_price must not be negative")
	default:
		o.UnitPrice = price
	}

	o.ObservedAt = now.UTC()
	if raw := rec.get("observed_at"); raw != "" {
		at, ok := parseTime(raw)
		if !ok {
			iss.errorf(row, "observed_at", raw, "observed_at is not a recognized timestamp")
		} else {
			o.ObservedAt = at
		}
	}

	return o, iss
}

// Vendor validates a vendor record.
func (v *Validator) Vendor(rec Record, row int) (domain.Vendor, Issues) {
	var iss Issues
	vendor := domain.Vendor{
		VendorID:   v.requiredID(&iss, rec, "vendor_id", row),
		VendorName: v.requiredName(&iss, rec, "vendor_name", row),
	}
	return vendor, iss
}

// Market validates a geographic market record.
func (v *Validator) Market(rec Record, row int) (domain.Market, Issues) {
	var iss Issues
	m := domain.Market{
		MarketID:    v.requiredID(&iss, rec, "market_id", row),
		RegionName:  v.requiredName(&iss, rec, "region_name", row),
		CountryCode: v.country(&iss, rec, row),
		Latitude:    v.coordinate(&iss, rec, "latitude", 90, row),
		Longitude:   v.coordinate(&iss, rec, "longitude", 180, row),
	}

	if raw := rec.get("population_estimate"); raw != "" {
		pop, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			iss.errorf(row, "population_estimate", raw, "population_estimate must be a valid integer")
		case pop < 0:
			iss.errorf(row, "population_estimate", raw, "population_estimate must not be negative")
		default:
			m.PopulationEstimate = int64(pop)
		}
	}
	return m, iss
}

// Center validates a distribution center record.
func (v *Validator) Center(rec Record, row int) (domain.DistributionCenter, Issues) {
	var iss Issues
	c := domain.DistributionCenter{
		CenterID:   v.requiredID(&iss, rec, "center_id", row),
		CenterName: v.requiredName(&iss, rec, "center_name", row),
		VendorID:   v.requiredID(&iss, rec, "vendor_id", row),
		Latitude:   v.coordinate(&iss, rec, "latitude", 90, row),
		Longitude:  v.coordinate(&iss, rec, "longitude", 180, row),
	}
	return c, iss
}

func (v *Validator) requiredID(iss *Issues, rec Record, field string, row int) string {
	return v.required(iss, rec, field, maxIDLen, row)
}

func (v *Validator) requiredName(iss *Issues, rec Record, field string, row int) string {
	return v.required(iss, rec, field, maxNameLen, row)
}

func (v *Validator) required(iss *Issues, rec Record, field string, maxLen, row int) string {
	val := rec.get(field)
	if val == "" {
		iss.errorf(row, field, val, "%s is required", field)
		return ""
	}
	if len(val) > maxLen {
		iss.errorf(row, field, val, "%s exceeds max length of %d characters", field, maxLen)
		return ""
	}
	return val
}

// optional truncates over-long values with a warning.
func (v *Validator) optional(iss *Issues, rec Record, field string, maxLen, row int) string {
	val := rec.get(field)
	if len(val) > maxLen {
		iss.warnf(row, field, val, "%s exceeds max length of %d, truncated", field, maxLen)
		val = val[:maxLen]
	}
	return val
}

// currency upper-cases the code, defaults it, and warns on codes outside ISO 4217.
func (v *Validator) currency(iss *Issues, rec Record, row int) string {
	code := strings.ToUpper(rec.get("currency_code"))
	if code == "" {
		return domain.DefaultCurrency
	}
	if _, err := currency.ParseISO(code); err != nil {
		iss.warnf(row, "currency_code", code, "currency_code %q is not a recognized currency code", code)
	}
	return code
}

func (v *Validator) country(iss *Issues, rec Record, row int) string {
	code := strings.ToUpper(rec.get("country_code"))
	if code == "" {
		return DefaultCountryCode
	}
	if len(code) != 2 {
		iss.errorf(row, "country_code", code, "country_code must be a 2-letter country code")
		return ""
	}
	return code
}

func (v *Validator) coordinate(iss *Issues, rec Record, field string, limit float64, row int) float64 {
	raw := rec.get(field)
	if raw == "" {
		iss.errorf(row, field, raw, "%s is required", field)
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		iss.errorf(row, field, raw, "%s must be a valid number", field)
		return 0
	}
	if f < -limit || f > limit {
		iss.errorf(row, field, raw, "%s must be between %v and %v", field, -limit, limit)
		return 0
	}
	return f
}

func parseTime(raw string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
