package oracle

import (
	"sort"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// ledger maps request IDs to pending requests. An ID is present iff the
// request was made and not yet fulfilled.
type ledger struct {
	pending map[common.Hash]domain.Request
}

func newLedger() *ledger {
	return &ledger{pending: make(map[common.Hash]domain.Request)}
}

func (l *ledger) insert(r domain.Request) {
	l.pending[r.ID] = r
}

func (l *ledger) get(id common.Hash) (domain.Request, bool) {
	r, ok := l.pending[id]
	return r, ok
}

func (l *ledger) remove(id common.Hash) {
	delete(l.pending, id)
}

func (l *ledger) len() int {
	return len(l.pending)
}

// list returns pending requests oldest first.
func (l *ledger) list() []domain.Request {
	out := make([]domain.Request, 0, len(l.pending))
	for _, r := range l.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out
}
