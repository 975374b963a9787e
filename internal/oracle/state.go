package oracle

import (
	"context"
	"math/big"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/eventlog"
	"github.com/ethereum/go-ethereum/common"
)

// State is everything a contract keeps between operations.
type State struct {
	Owner   common.Address
	Config  Configuration
	Nonce   uint64
	Escrow  *big.Int
	Pending []domain.Request
	Events  []eventlog.Entry
}

// Change is the effect of one successful operation: the scalar state after
// it, plus at most one pending request added, one removed and one event
// appended.
type Change struct {
	Owner  common.Address
	Config Configuration
	Nonce  uint64
	Escrow *big.Int

	Insert *domain.Request
	Remove *common.Hash
	Event  *eventlog.Entry
}

// StateStore persists contract state. Commit applies a Change atomically:
// either all of it is durable when it returns nil, or none of it is.
type StateStore interface {
	// Load returns the stored state of the contract at address. The boolean
	// is false when nothing has been stored for it yet.
	Load(ctx context.Context, address common.Address) (State, bool, error)
	Commit(ctx context.Context, address common.Address, change Change) error
}
