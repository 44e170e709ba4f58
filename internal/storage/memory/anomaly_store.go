package memory

import (
	"context"
	"sort"
	"sync"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// AnomalyStore is an in-memory implementation of storage.AnomalyStore.
type AnomalyStore struct {
	mu   sync.RWMutex
	data map[string]domain.AnomalyFlag // keyed by anomaly_id
}

// NewAnomalyStore creates a new in-memory anomaly store.
func NewAnomalyStore() *AnomalyStore {
	return &AnomalyStore{
		data: make(map[string]domain.AnomalyFlag),
	}
}

// InsertBulk adds multiple flags atomically. Fails entire batch on duplicate anomaly_id.
func (s *AnomalyStore) InsertBulk(_ context.Context, flags []domain.AnomalyFlag) error {
	if len(flags) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.data, cloneFlags(flags), func(f domain.AnomalyFlag) string { return f.AnomalyID })
}

// GetBySKU retrieves flags for a SKU, most severe first then by anomaly_id.
func (s *AnomalyStore) GetBySKU(_ context.Context, skuID string) ([]domain.AnomalyFlag, error) {
	return s.filter(func(f domain.AnomalyFlag) bool { return f.SKUID == skuID }), nil
}

// GetAll retrieves all flags, most severe first then by anomaly_id.
func (s *AnomalyStore) GetAll(_ context.Context) ([]domain.AnomalyFlag, error) {
	return s.filter(func(domain.AnomalyFlag) bool { return true }), nil
}

func (s *AnomalyStore) filter(keep func(domain.AnomalyFlag) bool) []domain.AnomalyFlag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.AnomalyFlag
	for _, f := range s.data {
		if keep(f) {
			result = append(result, f)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		ri, rj := result[i].Severity.Rank(), result[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return result[i].AnomalyID < result[j].AnomalyID
	})

	return cloneFlags(result)
}

// cloneFlags copies the optional price pointers so callers cannot mutate stored flags.
func cloneFlags(flags []domain.AnomalyFlag) []domain.AnomalyFlag {
	out := make([]domain.AnomalyFlag, len(flags))
	for i, f := range flags {
		if f.ExpectedPrice != nil {
			v := *f.ExpectedPrice
			f.ExpectedPrice = &v
		}
		if f.ZScore != nil {
			v := *f.ZScore
			f.ZScore = &v
		}
		out[i] = f
	}
	return out
}

var _ storage.AnomalyStore = (*AnomalyStore)(nil)
