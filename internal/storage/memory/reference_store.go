package memory

import (
	"context"
	"sort"
	"sync"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ReferenceStore is an in-memory implementation of storage.ReferenceStore.
type ReferenceStore struct {
	mu      sync.RWMutex
	vendors map[string]domain.Vendor
	markets map[string]domain.Market
	centers map[string]domain.DistributionCenter
}

// NewReferenceStore creates a new in-memory reference store.
func NewReferenceStore() *ReferenceStore {
	return &ReferenceStore{
		vendors: make(map[string]domain.Vendor),
		markets: make(map[string]domain.Market),
		centers: make(map[string]domain.DistributionCenter),
	}
}

// insertAll adds items keyed by id atomically, rejecting existing and intra-batch duplicates.
func insertAll[T any](data map[string]T, items []T, id func(T) string) error {
	batch := make(map[string]struct{}, len(items))
	for _, item := range items {
		k := id(item)
		if k == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}
	for _, item := range items {
		data[id(item)] = item
	}
	return nil
}

// listSorted returns the values ordered by id.
func listSorted[T any](data map[string]T) []T {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]T, 0, len(keys))
	for _, k := range keys {
		result = append(result, data[k])
	}
	return result
}

// InsertVendors adds vendors. Returns ErrDuplicateKey if a vendor_id exists.
func (s *ReferenceStore) InsertVendors(_ context.Context, vendors []domain.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAll(s.vendors, vendors, func(v domain.Vendor) string { return v.VendorID })
}

// InsertMarkets adds markets. Returns ErrDuplicateKey if a market_id exists.
func (s *ReferenceStore) InsertMarkets(_ context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if err := m.Coordinate().Validate(); err != nil {
			return storage.Invalid("market %s: %v", m.MarketID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAll(s.markets, markets, func(m domain.Market) string { return m.MarketID })
}

// InsertCenters adds distribution centers. Returns ErrDuplicateKey if a center_id exists.
func (s *ReferenceStore) InsertCenters(_ context.Context, centers []domain.DistributionCenter) error {
	for _, c := range centers {
		if err := c.Coordinate().Validate(); err != nil {
			return storage.Invalid("center %s: %v", c.CenterID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertAll(s.centers, centers, func(c domain.DistributionCenter) string { return c.CenterID })
}

// ListVendors retrieves all vendors ordered by vendor_id.
func (s *ReferenceStore) ListVendors(_ context.Context) ([]domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSorted(s.vendors), nil
}

// ListMarkets retrieves all markets ordered by market_id.
func (s *ReferenceStore) ListMarkets(_ context.Context) ([]domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSorted(s.markets), nil
}

// ListCenters retrieves all distribution centers ordered by center_id.
func (s *ReferenceStore) ListCenters(_ context.Context) ([]domain.DistributionCenter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSorted(s.centers), nil
}

var _ storage.ReferenceStore = (*ReferenceStore)(nil)
