package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
)

// Kind names the record type held by an import.
type Kind string

const (
	KindObservation Kind = "observation"
	KindVendor      Kind = "vendor"
	KindMarket      Kind = "market"
	KindCenter      Kind = "center"
)

// columnAliases maps each canonical field to the header names accepted for it, in priority order.
var columnAliases = map[Kind]map[string][]string{
	KindObservation: {
		"vendor_id":     {"vendor_id", "supplier_id", "vendor"},
		"vendor_name":   {"vendor_name", "supplier_name"},
		"sku_id":        {"sku_id", "sku", "product_id"},
		"product_name":  {"product_name", "product", "title", "product_title"},
		"unit_price":    {"unit_price", "price", "cost", "unit_cost"},
		"currency_code": {"currency_code", "currency", "curr"},
		"market_id":     {"market_id", "market", "region_id"},
		"region_name":   {"region_name", "region"},
		"category_id":   {"category_id", "category", "cat_id"},
		"category_name": {"category_name", "category_title"},
		"observed_at":   {"observed_at", "effective_date", "price_date", "date", "timestamp"},
	},
	KindVendor: {
		"vendor_id":   {"vendor_id", "id", "supplier_id"},
		"vendor_name": {"vendor_name", "name", "supplier_name"},
	},
	KindMarket: {
		"market_id":           {"market_id", "id", "region_id"},
		"region_name":         {"region_name", "name", "region"},
		"country_code":        {"country_code", "country", "cc"},
		"latitude":            {"latitude", "lat"},
		"longitude":           {"longitude", "lon", "lng"},
		"population_estimate": {"population_estimate", "population", "pop"},
	},
	KindCenter: {
		"center_id":   {"center_id", "id", "dc_id"},
		"center_name": {"center_name", "name", "dc_name"},
		"vendor_id":   {"vendor_id", "supplier_id"},
		"latitude":    {"latitude", "lat"},
		"longitude":   {"longitude", "lon", "lng"},
	},
}

// requiredColumns must map to some header or the whole file is rejected.
// Missing ids of reference records are generated instead.
var requiredColumns = map[Kind][]string{
	KindObservation: {"vendor_id", "sku_id", "unit_price"},
	KindVendor:      {"vendor_name"},
	KindMarket:      {"region_name", "latitude", "longitude"},
	KindCenter:      {"center_name", "vendor_id", "latitude", "longitude"},
}

// generatedIDField is filled with a random UUID when a reference row has no id.
var generatedIDField = map[Kind]string{
	KindVendor: "vendor_id",
	KindMarket: "market_id",
	KindCenter: "center_id",
}

// ImportResult holds the accepted records and row-level issues of one import.
type ImportResult[T any] struct {
	Source      string            `json:"source"`
	Total       int               `json:"records_total"`
	Succeeded   int               `json:"records_success"`
	Failed      int               `json:"records_failed"`
	Records     []T               `json:"-"`
	Errors      []ValidationError `json:"errors"`
	Warnings    []ValidationError `json:"warnings"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Success reports whether every row was accepted.
func (r *ImportResult[T]) Success() bool {
	return r.Failed == 0
}

// Duration is the wall time of the import.
func (r *ImportResult[T]) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *ImportResult[T]) add(rec T, iss Issues) {
	r.Total++
	r.Warnings = append(r.Warnings, iss.Warnings...)
	if !iss.OK() {
		r.Failed++
		r.Errors = append(r.Errors, iss.Errors...)
		return
	}
	r.Succeeded++
	r.Records = append(r.Records, rec)
}

// CSVImporter reads delimited files into domain records.
type CSVImporter struct {
	validator *Validator
	clock     func() time.Time
	logger    zerolog.Logger
	delimiter rune // 0 means sniff
}

// CSVOption configures a CSVImporter.
type CSVOption func(*CSVImporter)

// WithDelimiter fixes the field delimiter instead of sniffing it from the header.
func WithDelimiter(d rune) CSVOption {
	return func(c *CSVImporter) { c.delimiter = d }
}

// WithCSVClock sets the time source for missing observed_at values and result timestamps.
func WithCSVClock(clock func() time.Time) CSVOption {
	return func(c *CSVImporter) { c.clock = clock }
}

// WithCSVLogger sets the logger.
func WithCSVLogger(l zerolog.Logger) CSVOption {
	return func(c *CSVImporter) { c.logger = l }
}

// NewCSVImporter creates a CSVImporter.
func NewCSVImporter(v *Validator, opts ...CSVOption) *CSVImporter {
	if v == nil {
		v = NewValidator()
	}
	c := &CSVImporter{
		validator: v,
		clock:     func() time.Time { return time.Now().UTC() },
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportObservations reads vendor pricing rows.
func (c *CSVImporter) ImportObservations(r io.Reader, source string, mapping map[string]string) (*ImportResult[domain.PricingObservation], error) {
	return importRows(c, r, source, KindObservation, mapping, func(rec Record, row int, now time.Time) (domain.PricingObservation, Issues) {
		return c.validator.Observation(rec, row, now)
	})
}

// ImportVendors reads vendor rows.
func (c *CSVImporter) ImportVendors(r io.Reader, source string, mapping map[string]string) (*ImportResult[domain.Vendor], error) {
	return importRows(c, r, source, KindVendor, mapping, func(rec Record, row int, _ time.Time) (domain.Vendor, Issues) {
		return c.validator.Vendor(rec, row)
	})
}

// ImportMarkets reads geographic market rows.
func (c *CSVImporter) ImportMarkets(r io.Reader, source string, mapping map[string]string) (*ImportResult[domain.Market], error) {
	return importRows(c, r, source, KindMarket, mapping, func(rec Record, row int, _ time.Time) (domain.Market, Issues) {
		return c.validator.Market(rec, row)
	})
}

// ImportCenters reads distribution center rows.
func (c *CSVImporter) ImportCenters(r io.Reader, source string, mapping map[string]string) (*ImportResult[domain.DistributionCenter], error) {
	return importRows(c, r, source, KindCenter, mapping, func(rec Record, row int, _ time.Time) (domain.DistributionCenter, Issues) {
		return c.validator.Center(rec, row)
	})
}

// importRows is the shared read/map/validate loop.
// A custom mapping (field → header) replaces alias detection entirely.
func importRows[T any](c *CSVImporter, r io.Reader, source string, kind Kind, custom map[string]string,
	validate func(Record, int, time.Time) (T, Issues),
) (*ImportResult[T], error) {
	res := &ImportResult[T]{Source: source, StartedAt: c.clock()}

	reader, headers, err := c.open(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	mapping := custom
	if len(mapping) == 0 {
		mapping = BuildColumnMapping(headers, kind)
	}
	if missing := missingColumns(mapping, kind); len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrMissingColumn, source, strings.Join(missing, ", "))
	}
	index := headerIndex(headers)

	c.logger.Info().Str("source", source).Str("kind", string(kind)).Msg("importing csv")

	row := 1
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			res.Total++
			res.Failed++
			res.Errors = append(res.Errors, newValidationError(row, "", "", fmt.Sprintf("csv parse error: %v", err)))
			continue
		}

		rec := mapRow(fields, mapping, index)
		if idField, ok := generatedIDField[kind]; ok && rec.get(idField) == "" {
			rec[idField] = uuid.NewString()
		}

		value, iss := validate(rec, row, res.StartedAt)
		res.add(value, iss)
	}

	res.CompletedAt = c.clock()
	c.logger.Info().
		Str("source", source).
		Int("imported", res.Succeeded).
		Int("total", res.Total).
		Int("failed", res.Failed).
		Msg("csv import complete")

	return res, nil
}

// open buffers the input, strips a UTF-8 BOM, sniffs the delimiter and reads the header.
func (c *CSVImporter) open(r io.Reader) (*csv.Reader, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comma = c.delimiter
	if reader.Comma == 0 {
		reader.Comma = sniffDelimiter(data)
	}

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	return reader, headers, nil
}

// sniffDelimiter picks the most frequent candidate delimiter on the first line.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// BuildColumnMapping matches headers against the aliases of kind, returning field → header.
func BuildColumnMapping(headers []string, kind Kind) map[string]string {
	normalized := make(map[string]string, len(headers))
	for _, h := range headers {
		normalized[normalizeHeader(h)] = h
	}

	mapping := make(map[string]string)
	for field, aliases := range columnAliases[kind] {
		for _, alias := range aliases {
			if h, ok := normalized[alias]; ok {
				mapping[field] = h
				break
			}
		}
	}
	return mapping
}

func missingColumns(mapping map[string]string, kind Kind) []string {
	var missing []string
	for _, field := range requiredColumns[kind] {
		if _, ok := mapping[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}
	return index
}

func mapRow(fields []string, mapping map[string]string, index map[string]int) Record {
	rec := make(Record, len(mapping))
	for field, header := range mapping {
		if i, ok := index[header]; ok && i < len(fields) {
			rec[field] = fields[i]
		}
	}
	return rec
}
