package memory

import (
	"context"
	"sort"
	"sync"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ComparisonStore is an in-memory implementation of storage.ComparisonStore.
type ComparisonStore struct {
	mu   sync.RWMutex
	data map[string]domain.VendorBenchmarkComparison // keyed by benchmark_id|vendor_id
}

// NewComparisonStore creates a new in-memory comparison store.
func NewComparisonStore() *ComparisonStore {
	return &ComparisonStore{
		data: make(map[string]domain.VendorBenchmarkComparison),
	}
}

func comparisonKey(c domain.VendorBenchmarkComparison) string {
	if c.BenchmarkID == "" || c.VendorID == "" {
		return ""
	}
	return c.BenchmarkID + "|" + c.VendorID
}

// InsertBulk adds multiple comparisons atomically. Fails entire batch on any duplicate.
func (s *ComparisonStore) InsertBulk(_ context.Context, comparisons []domain.VendorBenchmarkComparison) error {
	if len(comparisons) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.data, comparisons, comparisonKey)
}

// GetByVendor retrieves a vendor's comparisons ordered by market_id, sku_id.
func (s *ComparisonStore) GetByVendor(_ context.Context, vendorID string) ([]domain.VendorBenchmarkComparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.VendorBenchmarkComparison
	for _, c := range s.data {
		if c.VendorID == vendorID {
			result = append(result, c)
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
		return a.BenchmarkID < b.BenchmarkID
	})

	return result, nil
}

var _ storage.ComparisonStore = (*ComparisonStore)(nil)
