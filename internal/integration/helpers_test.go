package integration_test

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokens(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := domain.ParseTokenAmount(s)
	require.NoError(t, err)
	return v
}
