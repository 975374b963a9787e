// Package backoff provides the exponential retry delay shared by the event
// relay and the indexer pipeline.
package backoff

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	Initial = 200 * time.Millisecond
	Max     = 5 * time.Second
)

// Backoff doubles its delay after every wait, from Initial up to Max.
// It is not safe for concurrent use.
type Backoff struct {
	clock   clockwork.Clock
	current time.Duration
}

// New creates a Backoff that sleeps on clock.
func New(clock clockwork.Clock) *Backoff {
	return &Backoff{clock: clock, current: Initial}
}

// Current returns the delay the next Wait will sleep for.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Reset returns the delay to Initial.
func (b *Backoff) Reset() {
	b.current = Initial
}

// Wait sleeps for the current delay and then doubles it. It returns false,
// leaving the delay unchanged, if ctx is done first.
func (b *Backoff) Wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if !Sleep(ctx, b.clock, b.current) {
		return false
	}
	b.current = min(b.current*2, Max)
	return true
}

// Sleep blocks for d on clock. It returns false if ctx is done first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
