package memory

import (
	"context"
	"sort"
	"sync"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// BenchmarkStore is an in-memory implementation of storage.BenchmarkStore.
type BenchmarkStore struct {
	mu   sync.RWMutex
	data map[string]domain.RegionalBenchmark // keyed by benchmark_id
}

// NewBenchmarkStore creates a new in-memory benchmark store.
func NewBenchmarkStore() *BenchmarkStore {
	return &BenchmarkStore{
		data: make(map[string]domain.RegionalBenchmark),
	}
}

// InsertBulk adds multiple benchmarks atomically. Fails entire batch on duplicate benchmark_id.
func (s *BenchmarkStore) InsertBulk(_ context.Context, benchmarks []domain.RegionalBenchmark) error {
	if len(benchmarks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.data, benchmarks, func(b domain.RegionalBenchmark) string { return b.BenchmarkID })
}

// GetByKey retrieves the benchmark with the latest period end for (market_id, sku_id).
func (s *BenchmarkStore) GetByKey(_ context.Context, marketID, skuID string) (domain.RegionalBenchmark, error) {
	matches := s.filter(func(b domain.RegionalBenchmark) bool {
		return b.MarketID == marketID && b.SKUID == skuID
	})
	if len(matches) == 0 {
		return domain.RegionalBenchmark{}, storage.ErrNotFound
	}
	return matches[len(matches)-1], nil
}

// GetByMarket retrieves all benchmarks for a market ordered by sku_id, period end.
func (s *BenchmarkStore) GetByMarket(_ context.Context, marketID string) ([]domain.RegionalBenchmark, error) {
	return s.filter(func(b domain.RegionalBenchmark) bool { return b.MarketID == marketID }), nil
}

// GetAll retrieves all benchmarks ordered by market_id, sku_id, period end.
func (s *BenchmarkStore) GetAll(_ context.Context) ([]domain.RegionalBenchmark, error) {
	return s.filter(func(domain.RegionalBenchmark) bool { return true }), nil
}

func (s *BenchmarkStore) filter(keep func(domain.RegionalBenchmark) bool) []domain.RegionalBenchmark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RegionalBenchmark
	for _, b := range s.data {
		if keep(b) {
			result = append(result, b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		if a.SKUID != b.SKUID {
			return a.SKUID < b.SKUID
		}
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			return a.PeriodEnd.Before(b.PeriodEnd)
		}
		return a.BenchmarkID < b.BenchmarkID
	})

	return result
}

var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)
