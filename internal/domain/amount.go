package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

// TokenDecimals is the number of fractional digits of the fee token.
const TokenDecimals = 18

// ParseTokenAmount converts a decimal token string such as "0.1" into base
// units. Negative values and values finer than one base unit are rejected.
func ParseTokenAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok || s == "" {
		return nil, fmt.Errorf("%w: amount %q is not a decimal number", ErrInvalidInput, s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount %q is negative", ErrInvalidInput, s)
	}
	r.Mul(r, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: amount %q has more than %d decimals", ErrInvalidInput, s, TokenDecimals)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatTokenAmount renders base units as a decimal token string, trimming
// trailing zeros ("100000000000000000" -> "0.1").
func FormatTokenAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	unit := big.NewInt(params.Ether)
	q, m := new(big.Int).QuoRem(new(big.Int).Abs(v), unit, new(big.Int))
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	if m.Sign() == 0 {
		return sign + q.String()
	}
	digits := m.String()
	frac := strings.TrimRight(strings.Repeat("0", TokenDecimals-len(digits))+digits, "0")
	return sign + q.String() + "." + frac
}

// RequestID derives the identifier of the nonce-th request made by contract.
func RequestID(contract common.Address, nonce uint64) common.Hash {
	n := new(big.Int).SetUint64(nonce)
	return crypto.Keccak256Hash(contract.Bytes(), common.LeftPadBytes(n.Bytes(), 32))
}

// TaskIDFromString packs a Chainlink job identifier into 32 bytes: UTF-8
// bytes, right-padded with zeros. A 0x-prefixed 64-digit hex string is taken
// literally.
func TaskIDFromString(s string) (common.Hash, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		b, err := hexutil.Decode(s)
		if err != nil {
			return common.Hash{}, fmt.Errorf("%w: task id %q: %v", ErrInvalidInput, s, err)
		}
		return common.BytesToHash(b), nil
	}
	if len(s) > common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: task id %q longer than %d bytes", ErrInvalidInput, s, common.HashLength)
	}
	var h common.Hash
	copy(h[:], s)
	return h, nil
}
