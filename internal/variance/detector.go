// Package variance detects regional price variance and pricing anomalies.
package variance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/group"
	"pricepoint-intel/internal/idhash"
	"pricepoint-intel/internal/stats"
)

// Default thresholds.
const (
	DefaultZScoreThreshold      = 2.0
	DefaultVarianceThresholdPct = 15.0
	DefaultHighVarianceCV       = 0.2
)

// multipleVendors labels regional anomalies that aggregate every vendor in a market.
const multipleVendors = "Multiple Vendors"

// Config holds detection thresholds.
type Config struct {
	ZScoreThreshold      float64
	VarianceThresholdPct float64
	// RegionalAdjustments maps market_id to a cost adjustment factor (default 1.0).
	RegionalAdjustments map[string]float64
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		ZScoreThreshold:      DefaultZScoreThreshold,
		VarianceThresholdPct: DefaultVarianceThresholdPct,
	}
}

// Validate rejects negative thresholds and non-positive adjustment factors.
func (c Config) Validate() error {
	if c.ZScoreThreshold < 0 {
		return fmt.Errorf("z-score threshold must not be negative, got %v", c.ZScoreThreshold)
	}
	if c.VarianceThresholdPct < 0 {
		return fmt.Errorf("variance threshold must not be negative, got %v", c.VarianceThresholdPct)
	}
	for market, f := range c.RegionalAdjustments {
		if f <= 0 {
			return fmt.Errorf("adjustment factor for %s must be positive, got %v", market, f)
		}
	}
	return nil
}

// Detector finds regional variances and anomalies in pricing observations.
type Detector struct {
	cfg    Config
	clock  func() time.Time
	logger zerolog.Logger
}

// Option configures Detector.
type Option func(*Detector)

// WithClock sets the clock used to stamp detected anomalies.
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		d.clock = clock
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Detector) {
		d.logger = l
	}
}

// NewDetector creates a new Detector.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

func (d *Detector) adjustment(marketID string) float64 {
	if f, ok := d.cfg.RegionalAdjustments[marketID]; ok && f > 0 {
		return f
	}
	return 1.0
}

type regionAverage struct {
	marketID   string
	regionName string
	price      float64
}

// CalculateRegionalVariance compares each market's average SKU price against a base.
//
// The base is baseRegionID when that market has a priced observation for the SKU,
// otherwise the mean of the market averages ("global_avg"). SKUs priced in fewer than
// two markets are skipped. Normalized variance divides by the market's adjustment factor.
func (d *Detector) CalculateRegionalVariance(pricing []domain.PricingObservation, baseRegionID string) []domain.PricingVariance {
	var variances []domain.PricingVariance

	bySKU := group.By(pricing, func(o domain.PricingObservation) string { return o.SKUID })
	bySKU.Each(func(skuID string, records []domain.PricingObservation) {
		byMarket := group.By(records, func(o domain.PricingObservation) string { return o.MarketID })
		if byMarket.Len() < 2 {
			return
		}

		first := records[0]
		productName := first.DisplayProduct()
		currency := first.Currency()

		var regions []regionAverage
		byMarket.Each(func(marketID string, obs []domain.PricingObservation) {
			prices := stats.PositivePrices(obs)
			if len(prices) == 0 {
				return
			}
			regions = append(regions, regionAverage{
				marketID:   marketID,
				regionName: obs[0].DisplayRegion(),
				price:      stats.Mean(prices),
			})
		})
		if len(regions) < 2 {
			d.logger.Debug().Str("sku_id", skuID).Msg("fewer than two priced markets")
			return
		}

		baseID := domain.GlobalAverageRegionID
		baseName := domain.GlobalAverageRegionName
		basePrice := 0.0
		found := false
		if baseRegionID != "" {
			for _, r := range regions {
				if r.marketID == baseRegionID {
					baseID, baseName, basePrice = r.marketID, r.regionName, r.price
					found = true
					break
				}
			}
		}
		if !found {
			sum := 0.0
			for _, r := range regions {
				sum += r.price
			}
			basePrice = sum / float64(len(regions))
		}

		for _, r := range regions {
			if r.marketID == baseID {
				continue
			}
			absVar := r.price - basePrice
			pct := stats.PercentDiff(r.price, basePrice)
			variances = append(variances, domain.PricingVariance{
				SKUID:                skuID,
				ProductName:          productName,
				BaseRegionID:         baseID,
				BaseRegionName:       baseName,
				BasePrice:            basePrice,
				CurrencyCode:         currency,
				ComparisonRegionID:   r.marketID,
				ComparisonRegionName: r.regionName,
				ComparisonPrice:      r.price,
				AbsoluteVariance:     absVar,
				PercentageVariance:   pct,
				NormalizedVariance:   pct / d.adjustment(r.marketID),
			})
		}
	})

	return variances
}

// DetectAnomalies flags price spikes and drops within each SKU and regional variances
// across markets, most severe first.
//
// A priced observation is flagged when |z| >= ZScoreThreshold or |variance| >=
// VarianceThresholdPct against its SKU's mean (SKUs need at least two prices). Regional
// variances against the global average are flagged only when they grade high or critical.
func (d *Detector) DetectAnomalies(pricing []domain.PricingObservation) []domain.AnomalyFlag {
	now := d.clock()
	var flags []domain.AnomalyFlag

	bySKU := group.By(pricing, func(o domain.PricingObservation) string { return o.SKUID })
	bySKU.Each(func(skuID string, records []domain.PricingObservation) {
		prices := stats.PositivePrices(records)
		if len(prices) < 2 {
			return
		}
		s := stats.Compute(prices)
		productName := records[0].DisplayProduct()

		for _, r := range records {
			if !r.Priced() {
				continue
			}
			z := stats.ZScore(r.UnitPrice, s.Mean, s.StdDev)
			pct := stats.PercentDiff(r.UnitPrice, s.Mean)
			if math.Abs(z) < d.cfg.ZScoreThreshold && math.Abs(pct) < d.cfg.VarianceThresholdPct {
				continue
			}

			anomalyType := domain.AnomalyPriceDrop
			description := fmt.Sprintf("Price %.2f is %.1f%% below market average (%.2f)", r.UnitPrice, math.Abs(pct), s.Mean)
			if z > 0 {
				anomalyType = domain.AnomalyPriceSpike
				description = fmt.Sprintf("Price %.2f is %.1f%% above market average (%.2f)", r.UnitPrice, pct, s.Mean)
			}

			expected := s.Mean
			zScore := z
			flags = append(flags, domain.AnomalyFlag{
				SKUID:              skuID,
				ProductName:        productName,
				VendorID:           r.VendorID,
				VendorName:         r.DisplayVendor(),
				MarketID:           r.MarketID,
				RegionName:         r.RegionName,
				Type:               anomalyType,
				Severity:           DetermineSeverity(&zScore, pct),
				ExpectedPrice:      &expected,
				ActualPrice:        r.UnitPrice,
				VariancePercentage: pct,
				ZScore:             &zScore,
				Description:        description,
				DetectedAt:         now,
			})
		}
	})

	for _, v := range d.CalculateRegionalVariance(pricing, "") {
		if math.Abs(v.PercentageVariance) < d.cfg.VarianceThresholdPct {
			continue
		}
		severity := DetermineSeverity(nil, v.PercentageVariance)
		if !severity.AtLeast(domain.SeverityHigh) {
			continue
		}
		expected := v.BasePrice
		flags = append(flags, domain.AnomalyFlag{
			SKUID:              v.SKUID,
			ProductName:        v.ProductName,
			VendorName:         multipleVendors,
			MarketID:           v.ComparisonRegionID,
			RegionName:         v.ComparisonRegionName,
			Type:               domain.AnomalyRegionalVariance,
			Severity:           severity,
			ExpectedPrice:      &expected,
			ActualPrice:        v.ComparisonPrice,
			VariancePercentage: v.PercentageVariance,
			Description: fmt.Sprintf("Regional price variance: %s is %.1f%% different from %s",
				v.ComparisonRegionName, v.PercentageVariance, v.BaseRegionName),
			DetectedAt: now,
		})
	}

	assignIDs(flags)
	SortBySeverity(flags)
	return flags
}

// DetectHistoricalDeviations compares each current price with the historical mean for
// the same (vendor, market, sku) and flags deviations of at least VarianceThresholdPct.
// Keys without priced history are skipped.
func (d *Detector) DetectHistoricalDeviations(pricing, historical []domain.PricingObservation) []domain.AnomalyFlag {
	if len(historical) == 0 {
		return nil
	}
	now := d.clock()

	key := func(o domain.PricingObservation) group.VendorMarketSKU {
		return group.VendorMarketSKU{VendorID: o.VendorID, MarketID: o.MarketID, SKUID: o.SKUID}
	}
	history := group.By(historical, key)

	var flags []domain.AnomalyFlag
	for _, r := range pricing {
		if !r.Priced() {
			continue
		}
		past, ok := history.Get(key(r))
		if !ok {
			continue
		}
		prices := stats.PositivePrices(past)
		if len(prices) == 0 {
			continue
		}
		histMean := stats.Mean(prices)
		pct := stats.PercentDiff(r.UnitPrice, histMean)
		if math.Abs(pct) < d.cfg.VarianceThresholdPct {
			continue
		}

		direction := "above"
		if pct < 0 {
			direction = "below"
		}
		expected := histMean
		flags = append(flags, domain.AnomalyFlag{
			SKUID:              r.SKUID,
			ProductName:        r.DisplayProduct(),
			VendorID:           r.VendorID,
			VendorName:         r.DisplayVendor(),
			MarketID:           r.MarketID,
			RegionName:         r.RegionName,
			Type:               domain.AnomalyHistoricalDeviation,
			Severity:           DetermineSeverity(nil, pct),
			ExpectedPrice:      &expected,
			ActualPrice:        r.UnitPrice,
			VariancePercentage: pct,
			Description: fmt.Sprintf("Price %.2f is %.1f%% %s historical average (%.2f)",
				r.UnitPrice, math.Abs(pct), direction, histMean),
			DetectedAt: now,
		})
	}

	assignIDs(flags)
	SortBySeverity(flags)
	return flags
}

// DetectCurrencyMismatches flags priced observations quoted in a currency other than
// their SKU's dominant currency. Ties go to the currency seen first.
func (d *Detector) DetectCurrencyMismatches(pricing []domain.PricingObservation) []domain.AnomalyFlag {
	now := d.clock()
	var flags []domain.AnomalyFlag

	bySKU := group.By(pricing, func(o domain.PricingObservation) string { return o.SKUID })
	bySKU.Each(func(skuID string, records []domain.PricingObservation) {
		byCurrency := group.New[string, domain.PricingObservation]()
		for _, r := range records {
			if r.Priced() {
				byCurrency.Append(r.Currency(), r)
			}
		}
		if byCurrency.Len() < 2 {
			return
		}

		dominant := ""
		best := 0
		byCurrency.Each(func(code string, obs []domain.PricingObservation) {
			if len(obs) > best {
				dominant, best = code, len(obs)
			}
		})

		for _, r := range records {
			if !r.Priced() || r.Currency() == dominant {
				continue
			}
			flags = append(flags, domain.AnomalyFlag{
				SKUID:       skuID,
				ProductName: r.DisplayProduct(),
				VendorID:    r.VendorID,
				VendorName:  r.DisplayVendor(),
				MarketID:    r.MarketID,
				RegionName:  r.RegionName,
				Type:        domain.AnomalyCurrencyMismatch,
				Severity:    domain.SeverityMedium,
				ActualPrice: r.UnitPrice,
				Description: fmt.Sprintf("Price quoted in %s while %s is dominant for this SKU", r.Currency(), dominant),
				DetectedAt:  now,
			})
		}
	})

	assignIDs(flags)
	return flags
}

// CalculateRegionalStats summarizes prices per (market, sku) with at least one price.
func (d *Detector) CalculateRegionalStats(pricing []domain.PricingObservation) []domain.RegionalStats {
	var out []domain.RegionalStats

	grouped := group.By(pricing, func(o domain.PricingObservation) group.MarketSKU {
		return group.MarketSKU{MarketID: o.MarketID, SKUID: o.SKUID}
	})
	grouped.Each(func(k group.MarketSKU, records []domain.PricingObservation) {
		prices := stats.PositivePrices(records)
		if len(prices) == 0 {
			return
		}
		s := stats.Compute(prices)
		out = append(out, domain.RegionalStats{
			MarketID:               k.MarketID,
			RegionName:             records[0].DisplayRegion(),
			SKUID:                  k.SKUID,
			VendorCount:            stats.DistinctVendors(records),
			MeanPrice:              s.Mean,
			MedianPrice:            s.Median,
			StdDeviation:           s.StdDev,
			MinPrice:               s.Min,
			MaxPrice:               s.Max,
			PriceRange:             s.Range,
			CoefficientOfVariation: s.CV,
		})
	})

	return out
}

// GetHighVarianceSKUs returns SKUs with at least two prices whose coefficient of
// variation is at least thresholdCV, highest first.
func (d *Detector) GetHighVarianceSKUs(pricing []domain.PricingObservation, thresholdCV float64) []domain.HighVarianceSKU {
	var out []domain.HighVarianceSKU

	bySKU := group.By(pricing, func(o domain.PricingObservation) string { return o.SKUID })
	bySKU.Each(func(skuID string, records []domain.PricingObservation) {
		prices := stats.PositivePrices(records)
		if len(prices) < 2 {
			return
		}
		s := stats.Compute(prices)
		if s.CV < thresholdCV {
			return
		}
		spread := 0.0
		if s.Mean > 0 {
			spread = s.Range / s.Mean * 100
		}
		out = append(out, domain.HighVarianceSKU{
			SKUID:                  skuID,
			ProductName:            records[0].DisplayProduct(),
			VendorCount:            stats.DistinctVendors(records),
			RegionCount:            stats.DistinctMarkets(records),
			MeanPrice:              s.Mean,
			MinPrice:               s.Min,
			MaxPrice:               s.Max,
			PriceRange:             s.Range,
			CoefficientOfVariation: s.CV,
			PriceSpreadPct:         spread,
		})
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CoefficientOfVariation > out[j].CoefficientOfVariation
	})
	return out
}

// assignIDs stamps deterministic ids in discovery order.
func assignIDs(flags []domain.AnomalyFlag) {
	for i := range flags {
		f := &flags[i]
		f.AnomalyID = idhash.ComputeAnomalyID(f.Type.String(), f.SKUID, f.VendorID, f.MarketID, f.DetectedAt, i)
	}
}
