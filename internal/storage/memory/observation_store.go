package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]domain.PricingObservation // keyed by composite key
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]domain.PricingObservation),
	}
}

// observationKey generates a unique key for an observation.
func observationKey(o domain.PricingObservation) string {
	return fmt.Sprintf("%s|%s|%s|%d", o.VendorID, o.SKUID, o.MarketID, o.ObservedAt.UnixNano())
}

func validateObservation(o domain.PricingObservation) error {
	if o.SKUID == "" || o.VendorID == "" {
		return storage.Invalid("observation requires sku_id and vendor_id")
	}
	if o.UnitPrice < 0 {
		return storage.Invalid("negative unit_price %v for %s/%s", o.UnitPrice, o.VendorID, o.SKUID)
	}
	return nil
}

// InsertBulk adds multiple observations atomically. Fails entire batch on any duplicate.
func (s *ObservationStore) InsertBulk(_ context.Context, observations []domain.PricingObservation) error {
	if len(observations) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		if err := validateObservation(o); err != nil {
			return err
		}
		key := observationKey(o)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, o := range observations {
		s.data[observationKey(o)] = o
	}
	return nil
}

// GetAll retrieves all observations in stable order.
func (s *ObservationStore) GetAll(_ context.Context) ([]domain.PricingObservation, error) {
	return s.filter(func(domain.PricingObservation) bool { return true }), nil
}

// GetByTimeRange retrieves observations with observed_at within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]domain.PricingObservation, error) {
	return s.filter(func(o domain.PricingObservation) bool {
		return !o.ObservedAt.Before(start) && !o.ObservedAt.After(end)
	}), nil
}

// GetByVendor retrieves all observations quoted by a vendor.
func (s *ObservationStore) GetByVendor(_ context.Context, vendorID string) ([]domain.PricingObservation, error) {
	return s.filter(func(o domain.PricingObservation) bool {
		return o.VendorID == vendorID
	}), nil
}

func (s *ObservationStore) filter(keep func(domain.PricingObservation) bool) []domain.PricingObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricingObservation
	for _, o := range s.data {
		if keep(o) {
			result = append(result, o)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.Before(b.ObservedAt)
		}
		if a.VendorID != b.VendorID {
			return a.VendorID < b.VendorID
		}
		if a.SKUID != b.SKUID {
			return a.SKUID < b.SKUID
		}
		return a.MarketID < b.MarketID
	})

	return result
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
