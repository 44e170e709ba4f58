package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"pricepoint-intel/internal/domain"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestPool starts a throwaway PostgreSQL container with the schema applied.
// The container is terminated when the test finishes.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("pricepoint"),
		tcpostgres.WithUsername("pricepoint"),
		tcpostgres.WithPassword("pricepoint"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applySchema(t, ctx, pool)
	return pool
}

// applySchema executes the postgres migration files in name order. They are
// read from disk because the migrations package imports this one.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, self, _, ok := runtime.Caller(0)
	require.True(t, ok, "locate test source")
	dir := filepath.Join(filepath.Dir(self), "..", "migrations", "postgres")

	names, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, names, "no migrations under %s", dir)
	slices.Sort(names)

	for _, name := range names {
		sql, err := os.ReadFile(name)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", strings.TrimPrefix(name, dir+string(filepath.Separator)))
	}
}

func observation(vendor, sku, market string, price float64, at time.Time) domain.PricingObservation {
	return domain.PricingObservation{
		SKUID:        sku,
		VendorID:     vendor,
		VendorName:   "Vendor " + vendor,
		MarketID:     market,
		UnitPrice:    price,
		CurrencyCode: "USD",
		ObservedAt:   at,
	}
}

func ptr[T any](v T) *T {
	return &v
}
