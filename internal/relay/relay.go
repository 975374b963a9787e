// Package relay follows the contract event log and publishes every entry to
// the event topic at least once, in log order.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/weather-oracle/internal/backoff"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/eventlog"
	"github.com/couchcryptid/weather-oracle/internal/observability"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
)

// Publisher writes a batch of encoded events to the broker. A nil error means
// every event in the batch was accepted.
type Publisher interface {
	Publish(ctx context.Context, events []domain.OutputEvent) error
}

// CursorStore records how far the relay has published so a restarted relay
// resumes after the last accepted batch.
type CursorStore interface {
	SaveCursor(ctx context.Context, contract common.Address, seq uint64) error
}

// Relay publishes event log entries after its cursor.
type Relay struct {
	log        *eventlog.Log
	publisher  Publisher
	checkpoint CursorStore
	contract  common.Address
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	cursor    atomic.Uint64
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock sets the clock used for backoff sleeps.
func WithClock(c clockwork.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// WithCursor starts the relay after the given sequence number instead of
// at the beginning of the log.
func WithCursor(seq uint64) Option {
	return func(r *Relay) { r.cursor.Store(seq) }
}

// WithCheckpoint saves the cursor to s after every accepted batch.
func WithCheckpoint(s CursorStore) Option {
	return func(r *Relay) { r.checkpoint = s }
}

// New creates a Relay for the log of the contract at address contract. A nil
// metrics falls back to an unregistered set.
func New(log *eventlog.Log, publisher Publisher, contract common.Address, batchSize int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Relay {
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	r := &Relay{
		log:       log,
		publisher: publisher,
		contract:  contract,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cursor returns the sequence number of the last published entry.
func (r *Relay) Cursor() uint64 {
	return r.cursor.Load()
}

// Run publishes until the context is cancelled. A failed publish is retried
// with the same batch; the cursor only moves past entries the publisher
// accepted.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay started", "cursor", r.Cursor(), "batch_size", r.batchSize)
	bo := backoff.New(r.clock)

	for {
		if ctx.Err() != nil {
			r.logger.Info("relay stopping", "reason", ctx.Err(), "cursor", r.Cursor())
			return nil
		}

		// Take the notify channel before reading so an append between the
		// read and the wait is not missed.
		wake := r.log.Notify()
		entries := r.log.Read(r.Cursor(), r.batchSize)
		if len(entries) == 0 {
			select {
			case <-ctx.Done():
			case <-wake:
			}
			continue
		}

		batch, err := r.encode(entries)
		if err != nil {
			return err
		}
		if !r.publish(ctx, batch, bo) {
			continue
		}

		last := entries[len(entries)-1].Seq
		r.cursor.Store(last)
		r.metrics.EventsPublished.Add(float64(len(batch)))
		r.metrics.RelayCursor.Set(float64(last))
		r.logger.Debug("events relayed", "count", len(batch), "cursor", last)
		r.saveCursor(ctx, last)
	}
}

func (r *Relay) encode(entries []eventlog.Entry) ([]domain.OutputEvent, error) {
	batch := make([]domain.OutputEvent, len(entries))
	for i, entry := range entries {
		out, err := domain.SerializeEvent(entry.Event, entry.Seq, r.contract)
		if err != nil {
			return nil, fmt.Errorf("encode log entry %d: %w", entry.Seq, err)
		}
		batch[i] = out
	}
	return batch, nil
}

// publish retries the batch with exponential backoff. Returns false if the
// context was cancelled before the batch was accepted.
func (r *Relay) publish(ctx context.Context, batch []domain.OutputEvent, bo *backoff.Backoff) bool {
	for {
		err := r.publisher.Publish(ctx, batch)
		if err == nil {
			bo.Reset()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		r.metrics.PublishErrors.Inc()
		r.logger.Error("publish failed", "error", err, "batch_size", len(batch), "retry_in", bo.Current())

		if !bo.Wait(ctx) {
			return false
		}
	}
}

// saveCursor checkpoints seq. A failed save only means a restart publishes
// the batch again.
func (r *Relay) saveCursor(ctx context.Context, seq uint64) {
	if r.checkpoint == nil {
		return
	}
	if err := r.checkpoint.SaveCursor(ctx, r.contract, seq); err != nil {
		r.logger.Warn("save relay cursor failed", "error", err, "cursor", seq)
	}
}
