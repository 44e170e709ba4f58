package proximity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
)

// Config holds proximity scoring parameters.
type Config struct {
	MaxDistanceKm   float64
	DecayFactor     float64
	AverageSpeedKmh float64
	BaseCostPerKm   float64
	MinCostFactor   float64
}

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{
		MaxDistanceKm:   DefaultMaxDistanceKm,
		DecayFactor:     DefaultDecayFactor,
		AverageSpeedKmh: DefaultAverageSpeedKmh,
		BaseCostPerKm:   DefaultBaseCostPerKm,
		MinCostFactor:   DefaultMinCostFactor,
	}
}

// Validate checks that the parameters can produce meaningful scores.
func (c Config) Validate() error {
	var errs []error
	if c.MaxDistanceKm <= 0 {
		errs = append(errs, fmt.Errorf("max distance must be positive, got %v", c.MaxDistanceKm))
	}
	if c.DecayFactor < 0 {
		errs = append(errs, fmt.Errorf("decay factor must not be negative, got %v", c.DecayFactor))
	}
	if c.AverageSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("average speed must be positive, got %v", c.AverageSpeedKmh))
	}
	if c.BaseCostPerKm < 0 {
		errs = append(errs, fmt.Errorf("base cost per km must not be negative, got %v", c.BaseCostPerKm))
	}
	return errors.Join(errs...)
}

// Analyzer computes proximity scores and vendor coverage.
// It holds only configuration, so one Analyzer may be shared across goroutines.
type Analyzer struct {
	cfg    Config
	logger zerolog.Logger
}

// Option configures Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// NewAnalyzer creates a new Analyzer.
func NewAnalyzer(cfg Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// CalculateProximity scores one distribution center against a market.
func (a *Analyzer) CalculateProximity(market domain.Market, center domain.DistributionCenter, vendor domain.Vendor) (domain.ProximityScore, error) {
	distance, err := Distance(market.Coordinate(), center.Coordinate())
	if err != nil {
		return domain.ProximityScore{}, fmt.Errorf("center %s to market %s: %w", center.CenterID, market.MarketID, err)
	}

	return domain.ProximityScore{
		VendorID:           vendor.VendorID,
		VendorName:         vendor.VendorName,
		CenterID:           center.CenterID,
		CenterName:         center.CenterName,
		MarketID:           market.MarketID,
		DistanceKm:         distance,
		Score:              ProximityScore(distance, a.cfg.MaxDistanceKm, a.cfg.DecayFactor),
		TravelTimeHours:    EstimateTravelTime(distance, a.cfg.AverageSpeedKmh),
		ShippingCostFactor: ShippingCostFactor(distance, a.cfg.BaseCostPerKm, a.cfg.MinCostFactor),
	}, nil
}

// AnalyzeVendorCoverage scores the vendor's centers against one market.
//
// Centers not owned by the vendor are ignored. Without any owned center the result
// has CenterCount 0, CoverageScore 0 and infinite distances. Otherwise the coverage
// score is the distance-rank-weighted mean of center scores: the i-th nearest center
// (0-based) has weight 1/(i+1).
func (a *Analyzer) AnalyzeVendorCoverage(market domain.Market, vendor domain.Vendor, centers []domain.DistributionCenter) (domain.VendorCoverage, error) {
	coverage := domain.VendorCoverage{
		VendorID:   vendor.VendorID,
		VendorName: vendor.VendorName,
		MarketID:   market.MarketID,
		RegionName: market.RegionName,
	}

	var scores []domain.ProximityScore
	for _, dc := range centers {
		if dc.VendorID != vendor.VendorID {
			continue
		}
		ps, err := a.CalculateProximity(market, dc, vendor)
		if err != nil {
			return domain.VendorCoverage{}, err
		}
		scores = append(scores, ps)
	}

	if len(scores) == 0 {
		coverage.NearestCenterDistanceKm = math.Inf(1)
		coverage.AverageDistanceKm = math.Inf(1)
		return coverage, nil
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].DistanceKm < scores[j].DistanceKm
	})

	totalDistance := 0.0
	weightedScore := 0.0
	weightSum := 0.0
	for i, ps := range scores {
		w := 1.0 / float64(i+1)
		totalDistance += ps.DistanceKm
		weightedScore += ps.Score * w
		weightSum += w
	}

	coverage.NearestCenterDistanceKm = scores[0].DistanceKm
	coverage.AverageDistanceKm = totalDistance / float64(len(scores))
	coverage.CoverageScore = weightedScore / weightSum
	coverage.CenterCount = len(scores)
	coverage.Centers = scores
	return coverage, nil
}

// AnalyzeMarketVendors returns coverage for every vendor with at least one center,
// best coverage first.
func (a *Analyzer) AnalyzeMarketVendors(market domain.Market, vendors []domain.Vendor, centers []domain.DistributionCenter) ([]domain.VendorCoverage, error) {
	var coverages []domain.VendorCoverage
	for _, v := range vendors {
		cov, err := a.AnalyzeVendorCoverage(market, v, centers)
		if err != nil {
			return nil, err
		}
		if !cov.HasCoverage() {
			a.logger.Debug().Str("market_id", market.MarketID).Str("vendor_id", v.VendorID).Msg("vendor has no centers")
			continue
		}
		coverages = append(coverages, cov)
	}

	sort.SliceStable(coverages, func(i, j int) bool {
		return coverages[i].CoverageScore > coverages[j].CoverageScore
	})
	return coverages, nil
}

// FindCoverageGaps returns every (market, vendor) pair whose coverage score is below
// minCoverageScore, worst first.
func (a *Analyzer) FindCoverageGaps(markets []domain.Market, vendors []domain.Vendor, centers []domain.DistributionCenter, minCoverageScore float64) ([]domain.CoverageGap, error) {
	var gaps []domain.CoverageGap
	for _, m := range markets {
		for _, v := range vendors {
			cov, err := a.AnalyzeVendorCoverage(m, v, centers)
			if err != nil {
				return nil, err
			}
			if cov.CoverageScore >= minCoverageScore {
				continue
			}
			gaps = append(gaps, domain.CoverageGap{
				MarketID:                m.MarketID,
				RegionName:              m.RegionName,
				VendorID:                v.VendorID,
				VendorName:              v.VendorName,
				CoverageScore:           cov.CoverageScore,
				NearestCenterDistanceKm: cov.NearestCenterDistanceKm,
				CenterCount:             cov.CenterCount,
				GapSeverity:             GapSeverity(cov.CoverageScore),
			})
		}
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].CoverageScore < gaps[j].CoverageScore
	})
	return gaps, nil
}

// GapSeverity buckets a coverage score: below 10 critical, below 20 high, else medium.
func GapSeverity(coverageScore float64) domain.Severity {
	switch {
	case coverageScore < 10:
		return domain.SeverityCritical
	case coverageScore < 20:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}
