package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using ClickHouse.
type BenchmarkStore struct {
	conn *Conn
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore(conn *Conn) *BenchmarkStore {
	return &BenchmarkStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

const benchmarkColumns = `benchmark_id, sku_id, category_id, market_id, region_name,
	avg_price, min_price, max_price, median_price, std_deviation,
	sample_size, vendor_count, price_trend, trend_percentage,
	benchmark_period_start, benchmark_period_end, currency_code`

// InsertBulk adds multiple benchmarks atomically. Fails entire batch on duplicate benchmark_id.
func (s *BenchmarkStore) InsertBulk(ctx context.Context, benchmarks []domain.RegionalBenchmark) error {
	if len(benchmarks) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(benchmarks))
	for _, b := range benchmarks {
		if b.BenchmarkID == "" || b.SKUID == "" {
			return storage.Invalid("benchmark requires benchmark_id and sku_id")
		}
		if _, exists := seen[b.BenchmarkID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[b.BenchmarkID] = struct{}{}
	}

	// ReplacingMergeTree would silently replace; keep append-only semantics.
	for _, b := range benchmarks {
		exists, err := s.exists(ctx, b.BenchmarkID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO regional_benchmarks (`+benchmarkColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range benchmarks {
		err = batch.Append(
			b.BenchmarkID, b.SKUID, b.CategoryID, b.MarketID, b.RegionName,
			b.AvgPrice, b.MinPrice, b.MaxPrice, b.MedianPrice, b.StdDeviation,
			uint32(b.SampleSize), uint32(b.VendorCount), b.PriceTrend.String(), b.TrendPercentage,
			b.PeriodStart, b.PeriodEnd, b.CurrencyCode,
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

// GetByKey retrieves the benchmark with the latest period end for (market_id, sku_id).
func (s *BenchmarkStore) GetByKey(ctx context.Context, marketID, skuID string) (domain.RegionalBenchmark, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+benchmarkColumns+`
		FROM regional_benchmarks FINAL
		WHERE market_id = ? AND sku_id = ?
		ORDER BY benchmark_period_end DESC, benchmark_id ASC
		LIMIT 1
	`, marketID, skuID)
	if err != nil {
		return domain.RegionalBenchmark{}, fmt.Errorf("query benchmark by key: %w", err)
	}
	defer rows.Close()

	benchmarks, err := scanBenchmarks(rows)
	if err != nil {
		return domain.RegionalBenchmark{}, err
	}
	if len(benchmarks) == 0 {
		return domain.RegionalBenchmark{}, storage.ErrNotFound
	}
	return benchmarks[0], nil
}

// GetByMarket retrieves all benchmarks for a market ordered by sku_id, period end.
func (s *BenchmarkStore) GetByMarket(ctx context.Context, marketID string) ([]domain.RegionalBenchmark, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+benchmarkColumns+`
		FROM regional_benchmarks FINAL
		WHERE market_id = ?
		ORDER BY sku_id ASC, benchmark_period_end ASC, benchmark_id ASC
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("query benchmarks by market: %w", err)
	}
	defer rows.Close()

	return scanBenchmarks(rows)
}

// GetAll retrieves all benchmarks ordered by market_id, sku_id, period end.
func (s *BenchmarkStore) GetAll(ctx context.Context) ([]domain.RegionalBenchmark, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+benchmarkColumns+`
		FROM regional_benchmarks FINAL
		ORDER BY market_id ASC, sku_id ASC, benchmark_period_end ASC, benchmark_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all benchmarks: %w", err)
	}
	defer rows.Close()

	return scanBenchmarks(rows)
}

func (s *BenchmarkStore) exists(ctx context.Context, benchmarkID string) (bool, error) {
	return rowExists(ctx, s.conn,
		`SELECT count(*) FROM regional_benchmarks FINAL WHERE benchmark_id = ?`, benchmarkID)
}

// scanBenchmarks scans multiple rows into a slice of RegionalBenchmark.
func scanBenchmarks(rows chRows) ([]domain.RegionalBenchmark, error) {
	var benchmarks []domain.RegionalBenchmark

	for rows.Next() {
		var (
			b                       domain.RegionalBenchmark
			sampleSize, vendorCount uint32
			trend                   string
			periodStart, periodEnd  time.Time
		)
		err := rows.Scan(
			&b.BenchmarkID, &b.SKUID, &b.CategoryID, &b.MarketID, &b.RegionName,
			&b.AvgPrice, &b.MinPrice, &b.MaxPrice, &b.MedianPrice, &b.StdDeviation,
			&sampleSize, &vendorCount, &trend, &b.TrendPercentage,
			&periodStart, &periodEnd, &b.CurrencyCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan benchmark row: %w", err)
		}
		b.SampleSize = int(sampleSize)
		b.VendorCount = int(vendorCount)
		b.PriceTrend = domain.Trend(trend)
		b.PeriodStart = periodStart.UTC()
		b.PeriodEnd = periodEnd.UTC()
		benchmarks = append(benchmarks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benchmark rows: %w", err)
	}

	return benchmarks, nil
}
