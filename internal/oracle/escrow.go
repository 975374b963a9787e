package oracle

import "math/big"

// escrow is the token balance held by the contract. It never goes negative:
// callers check covers before debiting.
type escrow struct {
	balance *big.Int
}

func newEscrow(initial *big.Int) *escrow {
	return &escrow{balance: cloneAmount(initial)}
}

func (e *escrow) covers(amount *big.Int) bool {
	return e.balance.Cmp(amount) >= 0
}

func (e *escrow) credit(amount *big.Int) {
	e.balance.Add(e.balance, amount)
}

func (e *escrow) debit(amount *big.Int) {
	e.balance.Sub(e.balance, amount)
}

func (e *escrow) snapshot() *big.Int {
	return new(big.Int).Set(e.balance)
}
