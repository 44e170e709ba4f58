package clickhouse

import (
	"context"
	"fmt"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ComparisonStore implements storage.ComparisonStore using ClickHouse.
type ComparisonStore struct {
	conn *Conn
}

// NewComparisonStore creates a new ComparisonStore.
func NewComparisonStore(conn *Conn) *ComparisonStore {
	return &ComparisonStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ComparisonStore = (*ComparisonStore)(nil)

const comparisonColumns = `benchmark_id, vendor_id, vendor_name, market_id, region_name, sku_id, product_name,
	vendor_price, benchmark_avg, benchmark_min, benchmark_max,
	price_position, variance_from_avg_pct, percentile_rank, competitiveness_score`

// InsertBulk adds multiple comparisons atomically. Fails entire batch on any duplicate.
func (s *ComparisonStore) InsertBulk(ctx context.Context, comparisons []domain.VendorBenchmarkComparison) error {
	if len(comparisons) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(comparisons))
	for _, c := range comparisons {
		if c.BenchmarkID == "" || c.VendorID == "" {
			return storage.Invalid("comparison requires benchmark_id and vendor_id")
		}
		key := c.BenchmarkID + "|" + c.VendorID
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, c := range comparisons {
		exists, err := s.exists(ctx, c.BenchmarkID, c.VendorID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO benchmark_comparisons (`+comparisonColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range comparisons {
		err = batch.Append(
			c.BenchmarkID, c.VendorID, c.VendorName, c.MarketID, c.RegionName, c.SKUID, c.ProductName,
			c.VendorPrice, c.BenchmarkAvg, c.BenchmarkMin, c.BenchmarkMax,
			c.PricePosition.String(), c.VarianceFromAvgPct, c.PercentileRank, c.CompetitivenessScore,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByVendor retrieves a vendor's comparisons ordered by market_id, sku_id.
func (s *ComparisonStore) GetByVendor(ctx context.Context, vendorID string) ([]domain.VendorBenchmarkComparison, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+comparisonColumns+`
		FROM benchmark_comparisons FINAL
		WHERE vendor_id = ?
		ORDER BY market_id ASC, sku_id ASC, benchmark_id ASC
	`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("query comparisons by vendor: %w", err)
	}
	defer rows.Close()

	var comparisons []domain.VendorBenchmarkComparison
	for rows.Next() {
		var (
			c        domain.VendorBenchmarkComparison
			position string
		)
		err := rows.Scan(
			&c.BenchmarkID, &c.VendorID, &c.VendorName, &c.MarketID, &c.RegionName, &c.SKUID, &c.ProductName,
			&c.VendorPrice, &c.BenchmarkAvg, &c.BenchmarkMin, &c.BenchmarkMax,
			&position, &c.VarianceFromAvgPct, &c.PercentileRank, &c.CompetitivenessScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan comparison row: %w", err)
		}
		c.PricePosition = domain.PricePosition(position)
		comparisons = append(comparisons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparison rows: %w", err)
	}

	return comparisons, nil
}

func (s *ComparisonStore) exists(ctx context.Context, benchmarkID, vendorID string) (bool, error) {
	return rowExists(ctx, s.conn,
		`SELECT count(*) FROM benchmark_comparisons FINAL WHERE benchmark_id = ? AND vendor_id = ?`,
		benchmarkID, vendorID)
}
