package reporting

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"time"

	"pricepoint-intel/internal/domain"
)

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func optionalFtoa(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return ftoa(*v, prec)
}

// distanceCell leaves infinite distances empty.
func distanceCell(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	return ftoa(v, 2)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteAnomaliesCSV writes one row per anomaly flag.
func WriteAnomaliesCSV(w io.Writer, flags []domain.AnomalyFlag) error {
	rows := make([][]string, 0, len(flags))
	for _, a := range flags {
		rows = append(rows, []string{
			a.AnomalyID,
			a.SKUID,
			a.ProductName,
			a.VendorID,
			a.VendorName,
			a.MarketID,
			a.RegionName,
			a.Type.String(),
			a.Severity.String(),
			optionalFtoa(a.ExpectedPrice, 2),
			ftoa(a.ActualPrice, 2),
			ftoa(a.VariancePercentage, 2),
			optionalFtoa(a.ZScore, 2),
			a.Description,
			a.DetectedAt.UTC().Format(time.RFC3339),
		})
	}
	return writeRows(w, []string{
		"anomaly_id", "sku_id", "product_name", "vendor_id", "vendor_name", "market_id", "region_name",
		"anomaly_type", "severity", "expected_price", "actual_price", "variance_percentage", "z_score",
		"description", "detected_at",
	}, rows)
}

// WriteBenchmarksCSV writes one row per regional benchmark.
func WriteBenchmarksCSV(w io.Writer, benchmarks []domain.RegionalBenchmark) error {
	rows := make([][]string, 0, len(benchmarks))
	for _, b := range benchmarks {
		rows = append(rows, []string{
			b.BenchmarkID,
			b.MarketID,
			b.RegionName,
			b.SKUID,
			b.CategoryID,
			ftoa(b.AvgPrice, 2),
			ftoa(b.MinPrice, 2),
			ftoa(b.MaxPrice, 2),
			ftoa(b.MedianPrice, 2),
			ftoa(b.StdDeviation, 2),
			strconv.Itoa(b.SampleSize),
			strconv.Itoa(b.VendorCount),
			b.PriceTrend.String(),
			ftoa(b.TrendPercentage, 2),
			b.PeriodStart.UTC().Format(time.RFC3339),
			b.PeriodEnd.UTC().Format(time.RFC3339),
			b.CurrencyCode,
		})
	}
	return writeRows(w, []string{
		"benchmark_id", "market_id", "region_name", "sku_id", "category_id", "avg_price", "min_price",
		"max_price", "median_price", "std_deviation", "sample_size", "vendor_count", "price_trend",
		"trend_percentage", "benchmark_period_start", "benchmark_period_end", "currency_code",
	}, rows)
}

// WriteComparisonsCSV writes one row per vendor comparison.
func WriteComparisonsCSV(w io.Writer, comparisons []domain.VendorBenchmarkComparison) error {
	rows := make([][]string, 0, len(comparisons))
	for _, c := range comparisons {
		rows = append(rows, []string{
			c.BenchmarkID,
			c.VendorID,
			c.VendorName,
			c.MarketID,
			c.SKUID,
			ftoa(c.VendorPrice, 2),
			ftoa(c.BenchmarkAvg, 2),
			c.PricePosition.String(),
			ftoa(c.VarianceFromAvgPct, 2),
			ftoa(c.PercentileRank, 1),
			ftoa(c.CompetitivenessScore, 1),
		})
	}
	return writeRows(w, []string{
		"benchmark_id", "vendor_id", "vendor_name", "market_id", "sku_id", "vendor_price",
		"benchmark_avg", "price_position", "variance_from_avg_pct", "percentile_rank", "competitiveness_score",
	}, rows)
}

// WriteCoverageGapsCSV writes one row per coverage gap.
func WriteCoverageGapsCSV(w io.Writer, gaps []domain.CoverageGap) error {
	rows := make([][]string, 0, len(gaps))
	for _, g := range gaps {
		rows = append(rows, []string{
			g.MarketID,
			g.RegionName,
			g.VendorID,
			g.VendorName,
			ftoa(g.CoverageScore, 2),
			distanceCell(g.NearestCenterDistanceKm),
			strconv.Itoa(g.CenterCount),
			g.GapSeverity.String(),
		})
	}
	return writeRows(w, []string{
		"market_id", "region_name", "vendor_id", "vendor_name", "coverage_score",
		"nearest_center_distance_km", "center_count", "gap_severity",
	}, rows)
}
