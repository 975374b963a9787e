// Package indexer materializes WeatherReported events into the report store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/couchcryptid/weather-oracle/internal/store"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a non-positive cache size is requested.
const DefaultCacheSize = 1000

// Indexer applies decoded events to a ReportStore. A report, once stored, is
// never modified: the first delivery of a WeatherReported wins and every
// later delivery with the same request ID is discarded.
//
// It implements pipeline.BatchLoader.
type Indexer struct {
	store   store.ReportStore
	seen    *lru.Cache[common.Hash, struct{}]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Indexer over s. cacheSize bounds the set of recently
// materialized IDs kept to skip replays without a store round trip. A nil
// metrics falls back to an unregistered set.
func New(s store.ReportStore, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) (*Indexer, error) {
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	seen, err := lru.New[common.Hash, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create replay cache: %w", err)
	}
	return &Indexer{
		store:   s,
		seen:    seen,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Apply applies a single event. WeatherRequested events carry nothing to
// materialize and are acknowledged. Re-applying an event is not an error.
func (ix *Indexer) Apply(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.WeatherReported:
		return ix.applyReported(ctx, e)
	case domain.WeatherRequested:
		ix.logger.Debug("request observed", "request_id", e.RequestID.Hex(), "city", e.City)
		return nil
	default:
		return fmt.Errorf("%w: unsupported event %T", domain.ErrMalformedEvent, event)
	}
}

// LoadBatch applies events in order and stops at the first error.
func (ix *Indexer) LoadBatch(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		if err := ix.Apply(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// CheckReadiness reports whether the backing store is reachable.
func (ix *Indexer) CheckReadiness(ctx context.Context) error {
	return ix.store.Ping(ctx)
}

func (ix *Indexer) applyReported(ctx context.Context, e domain.WeatherReported) error {
	id := e.RequestID
	if ix.seen.Contains(id) {
		ix.metrics.ReplayCacheHits.Inc()
		ix.duplicate(e)
		return nil
	}

	inserted, err := ix.store.Insert(ctx, domain.ReportFromEvent(e))
	if err != nil {
		return fmt.Errorf("apply report %s: %w", id.Hex(), err)
	}
	ix.seen.Add(id, struct{}{})

	if !inserted {
		ix.duplicate(e)
		return nil
	}
	ix.metrics.ReportsCreated.Inc()
	ix.logger.Info("report materialized",
		"request_id", id.Hex(),
		"city", e.City,
		"temperature", e.Temperature.String(),
		"description", e.Description,
	)
	return nil
}

func (ix *Indexer) duplicate(e domain.WeatherReported) {
	ix.metrics.DuplicateReports.Inc()
	ix.logger.Debug("duplicate report discarded", "request_id", e.RequestID.Hex())
}
