package oracle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Configuration holds the operational parameters the owner may change.
type Configuration struct {
	CallbackAuthority common.Address `json:"callbackAuthority"`
	TaskID            common.Hash    `json:"taskId"`
	Fee               *big.Int       `json:"fee"`
}

func (c Configuration) clone() Configuration {
	c.Fee = cloneAmount(c.Fee)
	return c
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
