package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func observation(vendor, sku, market string, price float64, at time.Time) domain.PricingObservation {
	return domain.PricingObservation{
		SKUID:        sku,
		VendorID:     vendor,
		MarketID:     market,
		UnitPrice:    price,
		CurrencyCode: "USD",
		ObservedAt:   at,
	}
}

func TestObservationStore_InsertAndGetAll(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []domain.PricingObservation{
		observation("V2", "S1", "M1", 12, t0.Add(time.Hour)),
		observation("V1", "S1", "M1", 10, t0),
		observation("V1", "S2", "M1", 20, t0),
	})
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "S1", all[0].SKUID)
	assert.Equal(t, "S2", all[1].SKUID)
	assert.Equal(t, "V2", all[2].VendorID)
}

func TestObservationStore_DuplicateKey(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()
	o := observation("V1", "S1", "M1", 10, t0)

	require.NoError(t, store.InsertBulk(ctx, []domain.PricingObservation{o}))

	err := store.InsertBulk(ctx, []domain.PricingObservation{observation("V1", "S9", "M1", 1, t0), o})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	all, _ := store.GetAll(ctx)
	assert.Len(t, all, 1, "failed batch must not be partially applied")
}

func TestObservationStore_IntraBatchDuplicate(t *testing.T) {
	store := NewObservationStore()
	o := observation("V1", "S1", "M1", 10, t0)

	err := store.InsertBulk(context.Background(), []domain.PricingObservation{o, o})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []domain.PricingObservation{observation("", "S1", "M1", 10, t0)})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))

	err = store.InsertBulk(ctx, []domain.PricingObservation{observation("V1", "S1", "M1", -1, t0)})
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestObservationStore_GetByTimeRangeAndVendor(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []domain.PricingObservation{
		observation("V1", "S1", "M1", 10, t0),
		observation("V1", "S1", "M1", 11, t0.AddDate(0, 0, 10)),
		observation("V2", "S1", "M1", 12, t0.AddDate(0, 0, 20)),
	}))

	inRange, err := store.GetByTimeRange(ctx, t0, t0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Len(t, inRange, 2, "range is inclusive on both ends")

	v2, err := store.GetByVendor(ctx, "V2")
	require.NoError(t, err)
	require.Len(t, v2, 1)
	assert.Equal(t, 12.0, v2[0].UnitPrice)
}
