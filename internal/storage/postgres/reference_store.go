package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// ReferenceStore implements storage.ReferenceStore using PostgreSQL.
type ReferenceStore struct {
	pool *Pool
}

// NewReferenceStore creates a new ReferenceStore.
func NewReferenceStore(pool *Pool) *ReferenceStore {
	return &ReferenceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferenceStore = (*ReferenceStore)(nil)

// InsertVendors adds vendors. Returns ErrDuplicateKey if a vendor_id exists.
func (s *ReferenceStore) InsertVendors(ctx context.Context, vendors []domain.Vendor) error {
	for _, v := range vendors {
		if v.VendorID == "" {
			return storage.Invalid("vendor requires vendor_id")
		}
	}
	return execBatch(ctx, s.pool,
		`INSERT INTO vendors (vendor_id, vendor_name) VALUES ($1, $2)`,
		vendors,
		func(v domain.Vendor) []any { return []any{v.VendorID, v.VendorName} },
		"vendor")
}

// InsertMarkets adds markets. Returns ErrDuplicateKey if a market_id exists.
func (s *ReferenceStore) InsertMarkets(ctx context.Context, markets []domain.Market) error {
	for _, m := range markets {
		if m.MarketID == "" {
			return storage.Invalid("market requires market_id")
		}
		if err := m.Coordinate().Validate(); err != nil {
			return storage.Invalid("market %s: %v", m.MarketID, err)
		}
	}
	return execBatch(ctx, s.pool, `
		INSERT INTO markets (market_id, region_name, country_code, latitude, longitude, population_estimate)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		markets,
		func(m domain.Market) []any {
			return []any{m.MarketID, m.RegionName, m.CountryCode, m.Latitude, m.Longitude, m.PopulationEstimate}
		},
		"market")
}

// InsertCenters adds distribution centers. Returns ErrDuplicateKey if a center_id exists.
func (s *ReferenceStore) InsertCenters(ctx context.Context, centers []domain.DistributionCenter) error {
	for _, c := range centers {
		if c.CenterID == "" || c.VendorID == "" {
			return storage.Invalid("distribution center requires center_id and vendor_id")
		}
		if err := c.Coordinate().Validate(); err != nil {
			return storage.Invalid("center %s: %v", c.CenterID, err)
		}
	}
	return execBatch(ctx, s.pool, `
		INSERT INTO distribution_centers (center_id, center_name, vendor_id, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)`,
		centers,
		func(c domain.DistributionCenter) []any {
			return []any{c.CenterID, c.CenterName, c.VendorID, c.Latitude, c.Longitude}
		},
		"distribution center")
}

// ListVendors retrieves all vendors ordered by vendor_id.
func (s *ReferenceStore) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := s.pool.Query(ctx, `SELECT vendor_id, vendor_name FROM vendors ORDER BY vendor_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (domain.Vendor, error) {
		var v domain.Vendor
		err := row.Scan(&v.VendorID, &v.VendorName)
		return v, err
	})
}

// ListMarkets retrieves all markets ordered by market_id.
func (s *ReferenceStore) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, region_name, country_code, latitude, longitude, population_estimate
		FROM markets
		ORDER BY market_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (domain.Market, error) {
		var m domain.Market
		err := row.Scan(&m.MarketID, &m.RegionName, &m.CountryCode, &m.Latitude, &m.Longitude, &m.PopulationEstimate)
		return m, err
	})
}

// ListCenters retrieves all distribution centers ordered by center_id.
func (s *ReferenceStore) ListCenters(ctx context.Context) ([]domain.DistributionCenter, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT center_id, center_name, vendor_id, latitude, longitude
		FROM distribution_centers
		ORDER BY center_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list distribution centers: %w", err)
	}
	return collect(rows, func(row pgx.CollectableRow) (domain.DistributionCenter, error) {
		var c domain.DistributionCenter
		err := row.Scan(&c.CenterID, &c.CenterName, &c.VendorID, &c.Latitude, &c.Longitude)
		return c, err
	})
}

// collect drains rows with pgx.CollectRows, returning an empty non-nil slice for no rows.
func collect[T any](rows pgx.Rows, scan pgx.RowToFunc[T]) ([]T, error) {
	items, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
