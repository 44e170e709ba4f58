package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"pricepoint-intel/internal/domain"
)

func sampleReport() *Report {
	return &Report{
		GeneratedAt: t0,
		PeriodStart: t0.AddDate(0, 0, -30),
		PeriodEnd:   t0,
		DataSummary: Summarize(sampleObservations(), nil),
		Markets: []domain.Market{
			{MarketID: "NYC", RegionName: "New York", Latitude: 40.71, Longitude: -74.0, PopulationEstimate: 8000000},
			{MarketID: "LA", RegionName: "Los Angeles", Latitude: 34.05, Longitude: -118.24},
		},
		Centers: []domain.DistributionCenter{
			{CenterID: "DC-1", CenterName: "North", VendorID: "V-1", Latitude: 41, Longitude: -73},
		},
		CoverageGaps: []domain.CoverageGap{
			{MarketID: "LA", RegionName: "Los Angeles", VendorID: "V-2", VendorName: "Bolt", NearestCenterDistanceKm: math.Inf(1), GapSeverity: domain.SeverityCritical},
			{MarketID: "LA", RegionName: "Los Angeles", VendorID: "V-1", VendorName: "Acme", CoverageScore: 30, NearestCenterDistanceKm: 3900, CenterCount: 1, GapSeverity: domain.SeverityMedium},
		},
		CenterSuggestions: []domain.CenterSuggestion{
			{Rank: 1, Latitude: 37.38, Longitude: -96.12, AverageCoverageScore: 12.5, MarketsCovered: 0, TotalMarkets: 2},
		},
		Anomalies: []domain.AnomalyFlag{
			{AnomalyID: "a-1", SKUID: "S-1", VendorID: "V-2", VendorName: "Bolt", MarketID: "NYC", RegionName: "New York",
				Type: domain.AnomalyPriceSpike, Severity: domain.SeverityHigh, ExpectedPrice: ptr(11), ActualPrice: 12,
				VariancePercentage: 9.09, ZScore: ptr(2.6), Description: "spike, \"quoted\"", DetectedAt: t0},
			{AnomalyID: "a-2", SKUID: "S-2", VendorID: "V-2", MarketID: "LA", Type: domain.AnomalyCurrencyMismatch,
				Severity: domain.SeverityLow, ActualPrice: 5, DetectedAt: t0},
		},
		Benchmarks: []domain.RegionalBenchmark{
			{BenchmarkID: "b-1", MarketID: "NYC", RegionName: "New York", SKUID: "S-1", AvgPrice: 11, MinPrice: 10, MaxPrice: 12,
				MedianPrice: 11, SampleSize: 2, VendorCount: 2, PriceTrend: domain.TrendIncreasing, TrendPercentage: 6.5,
				PeriodStart: t0.AddDate(0, 0, -30), PeriodEnd: t0, CurrencyCode: "USD"},
		},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestRenderMarkdown_Sections(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	for _, want := range []string{
		"# Pricing Intelligence Report",
		"Period: 2025-01-01 to 2025-01-31",
		"| Observations | 3 |",
		"## Coverage Gaps",
		"| Los Angeles | Bolt | 0.00 | n/a | 0 | critical |",
		"### Suggested Center Locations",
		"Critical: 0 | High: 1 | Medium: 0 | Low: 1",
		"| low | currency_mismatch | S-2 |  |  | 5.00 | - | 0.00 |",
		"| New York | S-1 | 11.00 | 10.00 | 12.00 | 11.00 | 2 | 2 | increasing | 6.50 |",
		"No vendor comparisons available.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: t0})
	for _, want := range []string{"No coverage gaps found.", "No anomalies detected.", "No benchmarks available."} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}
	if strings.Contains(md, "Period:") {
		t.Error("expected no period line without a period end")
	}
}

func TestWriteAnomaliesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnomaliesCSV(&buf, sampleReport().Anomalies); err != nil {
		t.Fatalf("WriteAnomaliesCSV: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}

	want := []string{"a-1", "S-1", "", "V-2", "Bolt", "NYC", "New York", "price_spike", "high",
		"11.00", "12.00", "9.09", "2.60", "spike, \"quoted\"", "2025-01-31T00:00:00Z"}
	if diff := cmp.Diff(want, rows[1]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
	if rows[2][9] != "" || rows[2][12] != "" {
		t.Errorf("expected empty expected_price and z_score, got %q %q", rows[2][9], rows[2][12])
	}
}

func TestWriteCoverageGapsCSV_InfiniteDistance(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCoverageGapsCSV(&buf, sampleReport().CoverageGaps); err != nil {
		t.Fatalf("WriteCoverageGapsCSV: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	if rows[1][5] != "" {
		t.Errorf("expected empty distance for a vendor without centers, got %q", rows[1][5])
	}
	if rows[2][5] != "3900.00" {
		t.Errorf("expected 3900.00, got %q", rows[2][5])
	}
}

func TestWriteBenchmarksAndComparisonsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBenchmarksCSV(&buf, sampleReport().Benchmarks); err != nil {
		t.Fatalf("WriteBenchmarksCSV: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	if len(rows) != 2 || rows[1][0] != "b-1" || rows[1][12] != "increasing" {
		t.Errorf("unexpected benchmark rows %v", rows)
	}

	buf.Reset()
	if err := WriteComparisonsCSV(&buf, nil); err != nil {
		t.Fatalf("WriteComparisonsCSV: %v", err)
	}
	if rows := readCSV(t, buf.Bytes()); len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}

func TestCoverageGeoJSON(t *testing.T) {
	fc := CoverageGeoJSON(sampleReport())
	if len(fc.Features) != 4 {
		t.Fatalf("expected 2 markets, 1 center and 1 suggestion, got %d features", len(fc.Features))
	}

	la := fc.Features[1]
	if p, ok := la.Geometry.(orb.Point); !ok || p.Lon() != -118.24 || p.Lat() != 34.05 {
		t.Errorf("expected LA point in lon/lat order, got %v", la.Geometry)
	}
	if la.Properties["gap_count"] != 2 || la.Properties["worst_gap_severity"] != "critical" {
		t.Errorf("unexpected LA properties %v", la.Properties)
	}
	if _, ok := fc.Features[0].Properties["worst_gap_severity"]; ok {
		t.Error("expected no severity on a market without gaps")
	}
	if fc.Features[3].Properties["kind"] != featureSuggestion {
		t.Errorf("expected last feature to be the suggestion, got %v", fc.Features[3].Properties["kind"])
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, sampleReport())
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if len(paths) != 6 {
		t.Errorf("expected 6 files, got %d", len(paths))
	}

	data, err := os.ReadFile(filepath.Join(dir, CoverageMapFile))
	if err != nil {
		t.Fatalf("read geojson: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("parse geojson: %v", err)
	}
	if len(fc.Features) != 4 {
		t.Errorf("expected 4 features, got %d", len(fc.Features))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw["type"] != "FeatureCollection" {
		t.Errorf("expected a FeatureCollection, got %v (%v)", raw["type"], err)
	}

	md, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# Pricing Intelligence Report") {
		t.Error("unexpected report content")
	}
}

func TestRenderMarkdown_DataQuality(t *testing.T) {
	r := &Report{GeneratedAt: t0, DataQuality: DataQualitySection{
		Checks: []QualityCheck{
			{Name: "Observations in period", Threshold: ">= 1", Actual: "0", Pass: false},
		},
		IntegrityErrors: []string{"market LA has no reference record"},
	}}
	md := RenderMarkdown(r)
	for _, want := range []string{
		"| Observations in period | >= 1 | 0 | FAIL |",
		"**Some checks failed.**",
		"- market LA has no reference record",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q", want)
		}
	}
}
