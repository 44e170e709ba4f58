package storage

import (
	"context"
	"time"

	"pricepoint-intel/internal/domain"
)

// ObservationStore provides access to vendor_pricing storage.
// Observations are keyed by (vendor_id, sku_id, market_id, observed_at).
type ObservationStore interface {
	// InsertBulk adds multiple observations atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, observations []domain.PricingObservation) error

	// GetAll retrieves all observations, ordered by observed_at, vendor_id, sku_id, market_id.
	GetAll(ctx context.Context) ([]domain.PricingObservation, error)

	// GetByTimeRange retrieves observations with observed_at within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]domain.PricingObservation, error)

	// GetByVendor retrieves all observations quoted by a vendor.
	GetByVendor(ctx context.Context, vendorID string) ([]domain.PricingObservation, error)
}

// ReferenceStore provides access to vendors, markets and distribution_centers.
type ReferenceStore interface {
	// InsertVendors adds vendors. Returns ErrDuplicateKey if a vendor_id exists.
	InsertVendors(ctx context.Context, vendors []domain.Vendor) error

	// InsertMarkets adds markets. Returns ErrDuplicateKey if a market_id exists.
	InsertMarkets(ctx context.Context, markets []domain.Market) error

	// InsertCenters adds distribution centers. Returns ErrDuplicateKey if a center_id exists.
	InsertCenters(ctx context.Context, centers []domain.DistributionCenter) error

	// ListVendors retrieves all vendors ordered by vendor_id.
	ListVendors(ctx context.Context) ([]domain.Vendor, error)

	// ListMarkets retrieves all markets ordered by market_id.
	ListMarkets(ctx context.Context) ([]domain.Market, error)

	// ListCenters retrieves all distribution centers ordered by center_id.
	ListCenters(ctx context.Context) ([]domain.DistributionCenter, error)
}

// AnomalyStore provides access to anomaly_flags storage.
type AnomalyStore interface {
	// InsertBulk adds multiple flags atomically. Fails entire batch on duplicate anomaly_id.
	InsertBulk(ctx context.Context, flags []domain.AnomalyFlag) error

	// GetBySKU retrieves flags for a SKU, most severe first then by anomaly_id.
	GetBySKU(ctx context.Context, skuID string) ([]domain.AnomalyFlag, error)

	// GetAll retrieves all flags, most severe first then by anomaly_id.
	GetAll(ctx context.Context) ([]domain.AnomalyFlag, error)
}

// BenchmarkStore provides access to regional_benchmarks storage.
type BenchmarkStore interface {
	// InsertBulk adds multiple benchmarks atomically. Fails entire batch on duplicate benchmark_id.
	InsertBulk(ctx context.Context, benchmarks []domain.RegionalBenchmark) error

	// GetByKey retrieves the benchmark with the latest period end for (market_id, sku_id).
	// Returns ErrNotFound if none exists.
	GetByKey(ctx context.Context, marketID, skuID string) (domain.RegionalBenchmark, error)

	// GetByMarket retrieves all benchmarks for a market ordered by sku_id, period end.
	GetByMarket(ctx context.Context, marketID string) ([]domain.RegionalBenchmark, error)

	// GetAll retrieves all benchmarks ordered by market_id, sku_id, period end.
	GetAll(ctx context.Context) ([]domain.RegionalBenchmark, error)
}

// ComparisonStore provides access to benchmark_comparisons storage.
// Comparisons are keyed by (benchmark_id, vendor_id).
type ComparisonStore interface {
	// InsertBulk adds multiple comparisons atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, comparisons []domain.VendorBenchmarkComparison) error

	// GetByVendor retrieves a vendor's comparisons ordered by market_id, sku_id.
	GetByVendor(ctx context.Context, vendorID string) ([]domain.VendorBenchmarkComparison, error)
}
