package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/storage"
)

// AnomalyStore implements storage.AnomalyStore using PostgreSQL.
type AnomalyStore struct {
	pool *Pool
}

// NewAnomalyStore creates a new AnomalyStore.
func NewAnomalyStore(pool *Pool) *AnomalyStore {
	return &AnomalyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnomalyStore = (*AnomalyStore)(nil)

const anomalyColumns = `anomaly_id, sku_id, product_name, vendor_id, vendor_name, market_id, region_name,
	anomaly_type, severity, expected_price, actual_price, variance_percentage, z_score, description, detected_at`

// severityOrder sorts critical first, matching domain.Severity.Rank.
const severityOrder = `CASE severity
	WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`

// InsertBulk adds multiple flags atomically. Fails entire batch on duplicate anomaly_id.
func (s *AnomalyStore) InsertBulk(ctx context.Context, flags []domain.AnomalyFlag) error {
	for _, f := range flags {
		if f.AnomalyID == "" || f.SKUID == "" {
			return storage.Invalid("anomaly requires anomaly_id and sku_id")
		}
		if !f.Type.IsValid() || !f.Severity.IsValid() {
			return storage.Invalid("anomaly %s has type %q severity %q", f.AnomalyID, f.Type, f.Severity)
		}
	}

	query := `INSERT INTO anomaly_flags (` + anomalyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	return execBatch(ctx, s.pool, query, flags, func(f domain.AnomalyFlag) []any {
		return []any{
			f.AnomalyID, f.SKUID, f.ProductName, f.VendorID, f.VendorName, f.MarketID, f.RegionName,
			f.Type.String(), f.Severity.String(), f.ExpectedPrice, f.ActualPrice, f.VariancePercentage,
			f.ZScore, f.Description, f.DetectedAt,
		}
	}, "anomaly flag")
}

// GetBySKU retrieves flags for a SKU, most severe first then by anomaly_id.
func (s *AnomalyStore) GetBySKU(ctx context.Context, skuID string) ([]domain.AnomalyFlag, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomaly_flags
		WHERE sku_id = $1
		ORDER BY ` + severityOrder + `, anomaly_id ASC`

	rows, err := s.pool.Query(ctx, query, skuID)
	if err != nil {
		return nil, fmt.Errorf("get anomalies by sku: %w", err)
	}
	defer rows.Close()

	return scanAnomalies(rows)
}

// GetAll retrieves all flags, most severe first then by anomaly_id.
func (s *AnomalyStore) GetAll(ctx context.Context) ([]domain.AnomalyFlag, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomaly_flags
		ORDER BY ` + severityOrder + `, anomaly_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all anomalies: %w", err)
	}
	defer rows.Close()

	return scanAnomalies(rows)
}

// scanAnomalies scans multiple rows into a slice of AnomalyFlag.
func scanAnomalies(rows pgx.Rows) ([]domain.AnomalyFlag, error) {
	var flags []domain.AnomalyFlag

	for rows.Next() {
		var (
			f                   domain.AnomalyFlag
			anomalyType, sevStr string
		)
		err := rows.Scan(
			&f.AnomalyID, &f.SKUID, &f.ProductName, &f.VendorID, &f.VendorName, &f.MarketID, &f.RegionName,
			&anomalyType, &sevStr, &f.ExpectedPrice, &f.ActualPrice, &f.VariancePercentage,
			&f.ZScore, &f.Description, &f.DetectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan anomaly row: %w", err)
		}
		f.Type = domain.AnomalyType(anomalyType)
		f.Severity = domain.Severity(sevStr)
		f.DetectedAt = f.DetectedAt.UTC()
		flags = append(flags, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly rows: %w", err)
	}

	return flags, nil
}
