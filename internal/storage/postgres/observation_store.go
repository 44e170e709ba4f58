package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

const observationColumns = `vendor_id, sku_id, market_id, vendor_name, region_name, product_name,
	category_id, category_name, unit_price, currency_code, observed_at`

// InsertBulk adds multiple observations atomically. Fails entire batch on any duplicate.
func (s *ObservationStore) InsertBulk(ctx context.Context, observations []domain.PricingObservation) error {
	for _, o := range observations {
		if o.SKUID == "" || o.VendorID == "" {
			return storage.Invalid("observation requires sku_id and vendor_id")
		}
	}

	query := `INSERT INTO vendor_pricing (` + observationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	return execBatch(ctx, s.pool, query, observations, func(o domain.PricingObservation) []any {
		return []any{
			o.VendorID, o.SKUID, o.MarketID, o.VendorName, o.RegionName, o.ProductName,
			o.CategoryID, o.CategoryName, o.UnitPrice, o.Currency(), o.ObservedAt,
		}
	}, "observation")
}

// GetAll retrieves all observations.
func (s *ObservationStore) GetAll(ctx context.Context) ([]domain.PricingObservation, error) {
	return s.query(ctx, "", "get all observations")
}

// GetByTimeRange retrieves observations with observed_at within [start, end] (inclusive).
func (s *ObservationStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]domain.PricingObservation, error) {
	return s.query(ctx, "WHERE observed_at >= $1 AND observed_at <= $2", "get observations by time range", start, end)
}

// GetByVendor retrieves all observations quoted by a vendor.
func (s *ObservationStore) GetByVendor(ctx context.Context, vendorID string) ([]domain.PricingObservation, error) {
	return s.query(ctx, "WHERE vendor_id = $1", "get observations by vendor", vendorID)
}

func (s *ObservationStore) query(ctx context.Context, where, op string, args ...any) ([]domain.PricingObservation, error) {
	query := `SELECT ` + observationColumns + ` FROM vendor_pricing ` + where + `
		ORDER BY observed_at ASC, vendor_id ASC, sku_id ASC, market_id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans multiple rows into a slice of PricingObservation.
func scanObservations(rows pgx.Rows) ([]domain.PricingObservation, error) {
	var observations []domain.PricingObservation

	for rows.Next() {
		var o domain.PricingObservation
		err := rows.Scan(
			&o.VendorID, &o.SKUID, &o.MarketID, &o.VendorName, &o.RegionName, &o.ProductName,
			&o.CategoryID, &o.CategoryName, &o.UnitPrice, &o.CurrencyCode, &o.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.ObservedAt = o.ObservedAt.UTC()
		observations = append(observations, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
