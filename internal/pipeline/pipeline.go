package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/weather-oracle/internal/backoff"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/jonboulle/clockwork"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer decodes a raw message into a contract event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.Event, error)
}

// BatchLoader applies decoded events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.Event) error
}

// Pipeline orchestrates the extract-decode-apply loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	ready       atomic.Bool
	batchSize   int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for backoff sleeps and batch timing.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the given stages and observability. A nil
// metrics falls back to an unregistered set.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil if the pipeline has applied at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not applied any events yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled. It returns nil
// on cancellation and a non-nil error only when a message cannot be decoded;
// that batch is left uncommitted.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	bo := backoff.New(p.clock)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		cont, err := p.processBatch(ctx, bo)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
}

// processBatch runs one extract-decode-apply cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, bo *backoff.Backoff) (bool, error) {
	start := p.clock.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		p.logger.Error("extract batch failed", "error", err)
		return bo.Wait(ctx), nil
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil, nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	bo.Reset()

	events, err := p.decode(ctx, rawBatch)
	if err != nil {
		return false, err
	}

	if !p.load(ctx, events, bo) {
		return false, nil
	}

	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(p.clock.Since(start).Seconds())
	p.ready.Store(true)
	return true, nil
}

// decode transforms every message in the batch. The first malformed message
// aborts the whole batch.
func (p *Pipeline) decode(ctx context.Context, rawBatch []domain.RawEvent) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(rawBatch))
	for _, raw := range rawBatch {
		event, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.metrics.MalformedEvents.Inc()
			p.logger.Error("malformed event, halting",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			return nil, fmt.Errorf("decode %s/%d@%d: %w", raw.Topic, raw.Partition, raw.Offset, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// load applies events, retrying the same batch with backoff until it
// succeeds. Returns false if the context was cancelled first.
func (p *Pipeline) load(ctx context.Context, events []domain.Event, bo *backoff.Backoff) bool {
	for {
		err := p.loader.LoadBatch(ctx, events)
		if err == nil {
			bo.Reset()
			return true
		}
		p.metrics.LoadErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(events), "retry_in", bo.Current())
		if !bo.Wait(ctx) {
			return false
		}
	}
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
