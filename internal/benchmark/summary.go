package benchmark

import (
	"sort"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/group"
)

// VendorCompetitivenessSummary rolls up one vendor's comparisons. Identity is taken from
// the first comparison. Empty input yields a zero summary.
func (b *Benchmarker) VendorCompetitivenessSummary(comparisons []domain.VendorBenchmarkComparison) domain.CompetitivenessSummary {
	if len(comparisons) == 0 {
		return domain.CompetitivenessSummary{
			BestMarkets:              []domain.MarketCompetitiveness{},
			ImprovementOpportunities: []domain.ImprovementOpportunity{},
		}
	}

	n := float64(len(comparisons))
	scoreSum, varianceSum := 0.0, 0.0
	var pb domain.PositionBreakdown
	var opportunities []domain.ImprovementOpportunity

	for _, c := range comparisons {
		scoreSum += c.CompetitivenessScore
		varianceSum += c.VarianceFromAvgPct

		switch c.PricePosition {
		case domain.PositionBelowMarket:
			pb.BelowMarket++
		case domain.PositionAboveMarket:
			pb.AboveMarket++
			opportunities = append(opportunities, domain.ImprovementOpportunity{
				SKUID:                 c.SKUID,
				ProductName:           c.ProductName,
				MarketID:              c.MarketID,
				CurrentPrice:          c.VendorPrice,
				BenchmarkAvg:          c.BenchmarkAvg,
				PotentialReductionPct: c.VarianceFromAvgPct,
			})
		default:
			pb.AtMarket++
		}
	}
	pb.BelowMarketPct = float64(pb.BelowMarket) / n * 100
	pb.AtMarketPct = float64(pb.AtMarket) / n * 100
	pb.AboveMarketPct = float64(pb.AboveMarket) / n * 100

	byMarket := group.By(comparisons, func(c domain.VendorBenchmarkComparison) string { return c.MarketID })
	markets := make([]domain.MarketCompetitiveness, 0, byMarket.Len())
	byMarket.Each(func(marketID string, cs []domain.VendorBenchmarkComparison) {
		sum := 0.0
		for _, c := range cs {
			sum += c.CompetitivenessScore
		}
		markets = append(markets, domain.MarketCompetitiveness{
			MarketID:           marketID,
			RegionName:         cs[0].RegionName,
			AvgCompetitiveness: sum / float64(len(cs)),
			SKUCount:           len(cs),
		})
	})
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].AvgCompetitiveness > markets[j].AvgCompetitiveness
	})
	if len(markets) > bestMarketsLimit {
		markets = markets[:bestMarketsLimit]
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].PotentialReductionPct > opportunities[j].PotentialReductionPct
	})
	if len(opportunities) > opportunitiesLimit {
		opportunities = opportunities[:opportunitiesLimit]
	}
	if opportunities == nil {
		opportunities = []domain.ImprovementOpportunity{}
	}

	return domain.CompetitivenessSummary{
		VendorID:                 comparisons[0].VendorID,
		VendorName:               comparisons[0].VendorName,
		TotalSKUs:                len(comparisons),
		AvgCompetitivenessScore:  scoreSum / n,
		AvgVarianceFromMarketPct: varianceSum / n,
		PositionBreakdown:        pb,
		BestMarkets:              markets,
		ImprovementOpportunities: opportunities,
	}
}

// AggregateMarketSummary rolls SKU benchmarks up per market, markets with the most SKUs first.
// TotalSKUs counts distinct non-empty sku ids across all markets.
func (b *Benchmarker) AggregateMarketSummary(benchmarks []domain.RegionalBenchmark) domain.MarketOverview {
	if len(benchmarks) == 0 {
		return domain.MarketOverview{Markets: []domain.MarketSummary{}}
	}

	skus := make(map[string]struct{})
	for _, bm := range benchmarks {
		if bm.SKUID != "" {
			skus[bm.SKUID] = struct{}{}
		}
	}

	byMarket := group.By(benchmarks, func(bm domain.RegionalBenchmark) string { return bm.MarketID })
	markets := make([]domain.MarketSummary, 0, byMarket.Len())
	byMarket.Each(func(marketID string, bms []domain.RegionalBenchmark) {
		summary := domain.MarketSummary{
			MarketID:   marketID,
			RegionName: bms[0].RegionName,
			SKUCount:   len(bms),
		}
		priceSum := 0.0
		for _, bm := range bms {
			summary.TotalVendors += bm.VendorCount
			priceSum += bm.AvgPrice
			switch bm.PriceTrend {
			case domain.TrendIncreasing:
				summary.PriceTrends.Increasing++
			case domain.TrendDecreasing:
				summary.PriceTrends.Decreasing++
			default:
				summary.PriceTrends.Stable++
			}
		}
		summary.AvgPriceAcrossSKU = priceSum / float64(len(bms))
		markets = append(markets, summary)
	})

	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].SKUCount > markets[j].SKUCount
	})

	return domain.MarketOverview{
		TotalMarkets: byMarket.Len(),
		TotalSKUs:    len(skus),
		Markets:      markets,
	}
}
