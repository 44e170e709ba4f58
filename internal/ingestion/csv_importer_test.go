package ingestion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestImporter(opts ...CSVOption) *CSVImporter {
	opts = append([]CSVOption{WithCSVClock(func() time.Time { return now })}, opts...)
	return NewCSVImporter(nil, opts...)
}

func TestImportObservations_Aliases(t *testing.T) {
	data := "\xef\xbb\xbfSupplier ID,SKU,Cost,Currency,Market,Date\n" +
		"V-1,SKU-1,10.5,usd,NYC,2025-02-01\n" +
		"V-2,SKU-1,,usd,NYC,2025-02-01\n" +
		"V-3,SKU-1,9.75,,LA,\n"

	res, err := newTestImporter().ImportObservations(strings.NewReader(data), "prices.csv", nil)
	if err != nil {
		t.Fatalf("ImportObservations: %v", err)
	}

	if res.Total != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("expected 3/2/1, got %d/%d/%d", res.Total, res.Succeeded, res.Failed)
	}
	if res.Success() {
		t.Error("expected Success() false with a failed row")
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 3 || res.Errors[0].Field != "unit_price" {
		t.Errorf("expected unit_price error on row 3, got %v", res.Errors)
	}

	first := res.Records[0]
	if first.VendorID != "V-1" || first.UnitPrice != 10.5 || first.CurrencyCode != "USD" || first.MarketID != "NYC" {
		t.Errorf("unexpected first record %+v", first)
	}
	if !res.Records[1].ObservedAt.Equal(now) {
		t.Errorf("expected missing date to default to import time, got %v", res.Records[1].ObservedAt)
	}
	if res.Duration() != 0 {
		t.Errorf("expected zero duration with a fixed clock, got %v", res.Duration())
	}
}

func TestImportObservations_SniffsDelimiter(t *testing.T) {
	data := "vendor_id;sku_id;unit_price\nV-1;S-1;3,5\nV-1;S-2;4\n"
	res, err := newTestImporter().ImportObservations(strings.NewReader(data), "semi.csv", nil)
	if err != nil {
		t.Fatalf("ImportObservations: %v", err)
	}
	// "3,5" is not a valid number even with a semicolon delimiter.
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Errorf("expected 1 ok and 1 failed, got %d/%d", res.Succeeded, res.Failed)
	}

	tab := "vendor_id\tsku_id\tunit_price\nV-1\tS-1\t2\n"
	res, err = newTestImporter(WithDelimiter('\t')).ImportObservations(strings.NewReader(tab), "tab.tsv", nil)
	if err != nil {
		t.Fatalf("ImportObservations: %v", err)
	}
	if res.Succeeded != 1 {
		t.Errorf("expected tab-delimited row to import, got %v", res.Errors)
	}
}

func TestImportObservations_MissingColumn(t *testing.T) {
	_, err := newTestImporter().ImportObservations(strings.NewReader("vendor_id,sku_id\nV,S\n"), "bad.csv", nil)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "unit_price") {
		t.Errorf("expected error to name unit_price, got %v", err)
	}
}

func TestImportObservations_Empty(t *testing.T) {
	_, err := newTestImporter().ImportObservations(strings.NewReader(""), "empty.csv", nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestImportObservations_CustomMapping(t *testing.T) {
	data := "a,b,c\nV-1,S-1,7\n"
	mapping := map[string]string{"vendor_id": "a", "sku_id": "b", "unit_price": "c"}
	res, err := newTestImporter().ImportObservations(strings.NewReader(data), "custom.csv", mapping)
	if err != nil {
		t.Fatalf("ImportObservations: %v", err)
	}
	if res.Succeeded != 1 || res.Records[0].UnitPrice != 7 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestImportVendors_GeneratesIDs(t *testing.T) {
	data := "name\nAcme\n"
	res, err := newTestImporter().ImportVendors(strings.NewReader(data), "vendors.csv", nil)
	if err != nil {
		t.Fatalf("ImportVendors: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("expected one vendor, got %v", res.Errors)
	}
	if _, err := uuid.Parse(res.Records[0].VendorID); err != nil {
		t.Errorf("expected generated uuid, got %q", res.Records[0].VendorID)
	}
}

func TestImportMarketsAndCenters(t *testing.T) {
	markets := "id,name,lat,lng,pop\nNYC,New York,40.71,-74.0,8000000\nBAD,Nowhere,100,0,\n"
	mres, err := newTestImporter().ImportMarkets(strings.NewReader(markets), "markets.csv", nil)
	if err != nil {
		t.Fatalf("ImportMarkets: %v", err)
	}
	if mres.Succeeded != 1 || mres.Failed != 1 {
		t.Errorf("expected 1/1, got %d/%d", mres.Succeeded, mres.Failed)
	}

	centers := "dc_id,dc_name,supplier_id,latitude,longitude\nDC-1,North,V-1,41,-73\n"
	cres, err := newTestImporter().ImportCenters(strings.NewReader(centers), "centers.csv", nil)
	if err != nil {
		t.Fatalf("ImportCenters: %v", err)
	}
	if cres.Succeeded != 1 || cres.Records[0].VendorID != "V-1" {
		t.Errorf("unexpected centers %+v", cres.Records)
	}
}

func TestBuildColumnMapping_PrefersEarlierAlias(t *testing.T) {
	mapping := BuildColumnMapping([]string{"Cost", "Unit Price", "sku"}, KindObservation)
	if mapping["unit_price"] != "Unit Price" {
		t.Errorf("expected unit_price to map to %q, got %q", "Unit Price", mapping["unit_price"])
	}
	if mapping["sku_id"] != "sku" {
		t.Errorf("expected sku_id to map to sku, got %q", mapping["sku_id"])
	}
}

func TestSniffDelimiter(t *testing.T) {
	cases := map[string]rune{
		"a,b,c\n1,2,3": ',',
		"a;b;c":        ';',
		"a\tb\tc":      '\t',
		"a|b|c\n":      '|',
		"single":       ',',
	}
	for in, want := range cases {
		if got := sniffDelimiter([]byte(in)); got != want {
			t.Errorf("sniffDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPreview(t *testing.T) {
	data := "vendor_id,sku,price,notes\nV-1,S-1,1,x\nV-2,S-2,2,y\nV-3,S-3,3,z\n"
	p, err := newTestImporter().Preview(strings.NewReader(data), KindObservation, 2, nil)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.TotalRows != 3 || len(p.SampleRows) != 2 {
		t.Errorf("expected 3 rows and 2 samples, got %d/%d", p.TotalRows, len(p.SampleRows))
	}
	if p.SampleRows[1]["sku_id"] != "S-2" {
		t.Errorf("unexpected sample %v", p.SampleRows[1])
	}
	if len(p.UnmappedColumns) != 1 || p.UnmappedColumns[0] != "notes" {
		t.Errorf("expected notes unmapped, got %v", p.UnmappedColumns)
	}
	if len(p.UnmappedFields) == 0 || p.UnmappedFields[0] != "category_id" {
		t.Errorf("expected sorted unmapped fields starting with category_id, got %v", p.UnmappedFields)
	}

	if _, err := newTestImporter().Preview(strings.NewReader(data), Kind("bogus"), 1, nil); err == nil {
		t.Error("expected unknown kind to fail")
	}
}
