// Package eventlog holds the append-only, ordered stream of contract events.
package eventlog

import (
	"fmt"
	"sync"

	"github.com/couchcryptid/weather-oracle/internal/domain"
)

// Entry is a single event together with its position in the log.
// Sequence numbers start at 1 and have no gaps.
type Entry struct {
	Seq   uint64
	Event domain.Event
}

// Log is an append-only event sequence. The contract is its only writer;
// followers read it by sequence number.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	notify  chan struct{}
}

// New creates an empty log.
func New() *Log {
	return &Log{notify: make(chan struct{})}
}

// Restore creates a log holding entries, which must be numbered from 1
// without gaps.
func Restore(entries []Entry) (*Log, error) {
	for i, e := range entries {
		if e.Seq != uint64(i)+1 {
			return nil, fmt.Errorf("restore event log: entry %d has sequence %d", i+1, e.Seq)
		}
	}
	l := New()
	l.entries = append([]Entry(nil), entries...)
	return l, nil
}

// Append adds an event and returns its sequence number.
func (l *Log) Append(event domain.Event) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := uint64(len(l.entries)) + 1
	l.entries = append(l.entries, Entry{Seq: seq, Event: event})

	close(l.notify)
	l.notify = make(chan struct{})
	return seq
}

// Read returns up to limit entries with a sequence number greater than after.
// A limit of zero or less means no limit.
func (l *Log) Read(after uint64, limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if after >= uint64(len(l.entries)) {
		return nil
	}
	tail := l.entries[after:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	out := make([]Entry, len(tail))
	copy(out, tail)
	return out
}

// Len returns the sequence number of the last entry.
func (l *Log) Len() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.entries))
}

// Notify returns a channel that is closed on the next Append.
func (l *Log) Notify() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.notify
}
