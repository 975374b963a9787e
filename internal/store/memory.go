package store

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore is a concurrency-safe in-memory ReportStore.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[common.Hash]domain.Report
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[common.Hash]domain.Report)}
}

func (s *MemoryStore) Get(_ context.Context, id common.Hash) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Insert(_ context.Context, r domain.Report) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; ok {
		return false, nil
	}
	s.reports[r.ID] = r
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Report, 0, len(s.reports))
	for _, r := range s.reports {
		if opts.match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if n := opts.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
