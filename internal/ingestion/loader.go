package ingestion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/storage"
)

// Loader persists accepted import records.
type Loader struct {
	observations storage.ObservationStore
	reference    storage.ReferenceStore
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(observations storage.ObservationStore, reference storage.ReferenceStore, metrics *observability.Metrics, logger zerolog.Logger) *Loader {
	return &Loader{
		observations: observations,
		reference:    reference,
		metrics:      metrics,
		logger:       logger,
	}
}

// LoadObservations inserts the accepted observations as one batch.
func (l *Loader) LoadObservations(ctx context.Context, res *ImportResult[domain.PricingObservation]) error {
	return load(ctx, l, KindObservation, res, l.observations.InsertBulk)
}

// LoadVendors inserts the accepted vendors as one batch.
func (l *Loader) LoadVendors(ctx context.Context, res *ImportResult[domain.Vendor]) error {
	return load(ctx, l, KindVendor, res, l.reference.InsertVendors)
}

// LoadMarkets inserts the accepted markets as one batch.
func (l *Loader) LoadMarkets(ctx context.Context, res *ImportResult[domain.Market]) error {
	return load(ctx, l, KindMarket, res, l.reference.InsertMarkets)
}

// LoadCenters inserts the accepted distribution centers as one batch.
func (l *Loader) LoadCenters(ctx context.Context, res *ImportResult[domain.DistributionCenter]) error {
	return load(ctx, l, KindCenter, res, l.reference.InsertCenters)
}

func load[T any](ctx context.Context, l *Loader, kind Kind, res *ImportResult[T], insert func(context.Context, []T) error) error {
	if len(res.Records) > 0 {
		if err := insert(ctx, res.Records); err != nil {
			return fmt.Errorf("store %s records from %s: %w", kind, res.Source, err)
		}
	}

	if l.metrics != nil {
		l.metrics.RecordImport(string(kind), res.Source, res.Succeeded, res.Failed)
	}
	l.logger.Info().
		Str("kind", string(kind)).
		Str("source", res.Source).
		Int("stored", len(res.Records)).
		Int("rejected", res.Failed).
		Int("warnings", len(res.Warnings)).
		Msg("records stored")
	return nil
}
