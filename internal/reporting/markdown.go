package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pricepoint-intel/internal/domain"
)

// maxAnomalyRows bounds the anomaly table; the CSV carries every flag.
const maxAnomalyRows = 50

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Pricing Intelligence Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if !r.PeriodEnd.IsZero() {
		sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n", r.PeriodStart.Format(time.DateOnly), r.PeriodEnd.Format(time.DateOnly)))
	}

	// Data Summary
	ds := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Observations | %d |\n", ds.Observations))
	sb.WriteString(fmt.Sprintf("| Vendors | %d |\n", ds.Vendors))
	sb.WriteString(fmt.Sprintf("| Markets | %d |\n", ds.Markets))
	sb.WriteString(fmt.Sprintf("| SKUs | %d |\n", ds.SKUs))
	sb.WriteString(fmt.Sprintf("| Distribution Centers | %d |\n", ds.Centers))
	if !ds.FirstSeen.IsZero() {
		sb.WriteString(fmt.Sprintf("| First Observation | %s |\n", ds.FirstSeen.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Observation | %s |\n", ds.LastSeen.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.Checks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Results below may be incomplete.\n\n")
		}
	} else if len(r.DataQuality.IntegrityErrors) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}
	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, e := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	// Coverage
	sb.WriteString("## Coverage Gaps\n\n")
	if len(r.CoverageGaps) > 0 {
		sb.WriteString("| Market | Vendor | Score | Nearest (km) | Centers | Severity |\n")
		sb.WriteString("|--------|--------|-------|--------------|---------|----------|\n")
		for _, g := range r.CoverageGaps {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %s | %d | %s |\n",
				g.RegionName, g.VendorName, g.CoverageScore, km(g.NearestCenterDistanceKm), g.CenterCount, g.GapSeverity))
		}
	} else {
		sb.WriteString("No coverage gaps found.\n")
	}
	sb.WriteString("\n")

	if len(r.CenterSuggestions) > 0 {
		sb.WriteString("### Suggested Center Locations\n\n")
		sb.WriteString("| Rank | Latitude | Longitude | Avg Score | Markets Covered |\n")
		sb.WriteString("|------|----------|-----------|-----------|-----------------|\n")
		for _, s := range r.CenterSuggestions {
			sb.WriteString(fmt.Sprintf("| %d | %.4f | %.4f | %.2f | %d/%d |\n",
				s.Rank, s.Latitude, s.Longitude, s.AverageCoverageScore, s.MarketsCovered, s.TotalMarkets))
		}
		sb.WriteString("\n")
	}

	// Anomalies
	sb.WriteString("## Pricing Anomalies\n\n")
	if len(r.Anomalies) > 0 {
		counts := r.SeverityCounts()
		sb.WriteString(fmt.Sprintf("Critical: %d | High: %d | Medium: %d | Low: %d\n\n",
			counts[domain.SeverityCritical], counts[domain.SeverityHigh], counts[domain.SeverityMedium], counts[domain.SeverityLow]))
		sb.WriteString("| Severity | Type | SKU | Vendor | Market | Actual | Expected | Variance% |\n")
		sb.WriteString("|----------|------|-----|--------|--------|--------|----------|-----------|\n")
		for i, a := range r.Anomalies {
			if i == maxAnomalyRows {
				sb.WriteString(fmt.Sprintf("\n%d more in anomalies.csv.\n", len(r.Anomalies)-maxAnomalyRows))
				break
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %.2f | %s | %.2f |\n",
				a.Severity, a.Type, a.SKUID, a.VendorName, a.RegionName, a.ActualPrice, optional(a.ExpectedPrice), a.VariancePercentage))
		}
	} else {
		sb.WriteString("No anomalies detected.\n")
	}
	sb.WriteString("\n")

	if len(r.HighVariance) > 0 {
		sb.WriteString("### High-Variance SKUs\n\n")
		sb.WriteString("| SKU | Product | Vendors | Regions | Mean | Min | Max | CV | Spread% |\n")
		sb.WriteString("|-----|---------|---------|---------|------|-----|-----|----|---------|\n")
		for _, h := range r.HighVariance {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.2f | %.2f | %.2f | %.4f | %.2f |\n",
				h.SKUID, h.ProductName, h.VendorCount, h.RegionCount, h.MeanPrice, h.MinPrice, h.MaxPrice,
				h.CoefficientOfVariation, h.PriceSpreadPct))
		}
		sb.WriteString("\n")
	}

	// Benchmarks
	sb.WriteString("## Regional Benchmarks\n\n")
	if len(r.Benchmarks) > 0 {
		sb.WriteString("| Market | SKU | Avg | Min | Max | Median | Samples | Vendors | Trend | Trend% |\n")
		sb.WriteString("|--------|-----|-----|-----|-----|--------|---------|---------|-------|--------|\n")
		for _, b := range r.Benchmarks {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f | %.2f | %.2f | %d | %d | %s | %.2f |\n",
				b.RegionName, b.SKUID, b.AvgPrice, b.MinPrice, b.MaxPrice, b.MedianPrice,
				b.SampleSize, b.VendorCount, b.PriceTrend, b.TrendPercentage))
		}
	} else {
		sb.WriteString("No benchmarks available.\n")
	}
	sb.WriteString("\n")

	if len(r.MarketOverview.Markets) > 0 {
		sb.WriteString("### Market Overview\n\n")
		sb.WriteString(fmt.Sprintf("Markets: %d | SKUs: %d\n\n", r.MarketOverview.TotalMarkets, r.MarketOverview.TotalSKUs))
		sb.WriteString("| Market | SKUs | Vendors | Avg Price | Increasing | Stable | Decreasing |\n")
		sb.WriteString("|--------|------|---------|-----------|------------|--------|------------|\n")
		for _, m := range r.MarketOverview.Markets {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %d | %d | %d |\n",
				m.RegionName, m.SKUCount, m.TotalVendors, m.AvgPriceAcrossSKU,
				m.PriceTrends.Increasing, m.PriceTrends.Stable, m.PriceTrends.Decreasing))
		}
		sb.WriteString("\n")
	}

	// Vendor competitiveness
	sb.WriteString("## Vendor Competitiveness\n\n")
	if len(r.VendorSummaries) > 0 {
		sb.WriteString("| Vendor | SKUs | Avg Score | Avg Variance% | Below | At | Above |\n")
		sb.WriteString("|--------|------|-----------|---------------|-------|----|-------|\n")
		for _, s := range r.VendorSummaries {
			pb := s.PositionBreakdown
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %d | %d | %d |\n",
				s.VendorName, s.TotalSKUs, s.AvgCompetitivenessScore, s.AvgVarianceFromMarketPct,
				pb.BelowMarket, pb.AtMarket, pb.AboveMarket))
		}
	} else {
		sb.WriteString("No vendor comparisons available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func km(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", v)
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
