package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/couchcryptid/weather-oracle/internal/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type env struct {
	oracleURL  string
	indexerURL string
	contract   *oracle.Contract
	reports    *store.MemoryStore
}

func newEnv(t *testing.T) env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fee, err := domain.ParseTokenAmount("0.1")
	require.NoError(t, err)
	c, err := oracle.New(contractAddr, owner, oracle.Configuration{CallbackAuthority: operator, Fee: fee},
		oracle.WithLogger(logger))
	require.NoError(t, err)
	reports := store.NewMemoryStore()

	ready := httpadapter.ReadinessFunc(func(context.Context) error { return nil })
	oracleSrv := httptest.NewServer(httpadapter.NewServer(":0", ready, logger, httpadapter.WithOracle(c)))
	indexerSrv := httptest.NewServer(httpadapter.NewServer(":0", ready, logger, httpadapter.WithReports(reports)))
	t.Cleanup(oracleSrv.Close)
	t.Cleanup(indexerSrv.Close)
	return env{oracleURL: oracleSrv.URL, indexerURL: indexerSrv.URL, contract: c, reports: reports}
}

func (e env) run(t *testing.T, caller common.Address, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	argv := []string{"weatherctl", "--api", e.oracleURL, "--indexer-api", e.indexerURL}
	if caller != (common.Address{}) {
		argv = append(argv, "--caller", caller.Hex())
	}
	err := newApp(&stdout, &stderr).RunContext(context.Background(), append(argv, args...))
	return stdout.String(), err
}

func TestWeatherctl_RequestAndFulfill(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, alice, "request", "London")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	out, err := e.run(t, alice, "deposit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 1")

	out, err = e.run(t, alice, "request", "London")
	require.NoError(t, err)
	assert.Contains(t, out, "City: London")
	pending := e.contract.PendingRequests()
	require.Len(t, pending, 1)
	id := pending[0].ID.Hex()
	assert.Contains(t, out, id)

	out, err = e.run(t, common.Address{}, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = e.run(t, alice, "fulfill", "--id", id, "--city", "London", "--temperature", "15.5", "--description", "Cloudy")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	out, err = e.run(t, operator, "fulfill", "--id", id, "--city", "London",
		"--temperature", "15.5", "--description", "Cloudy", "--timestamp", "1700000000")
	require.NoError(t, err)
	assert.Contains(t, out, "15.50°C")
	assert.Empty(t, e.contract.PendingRequests())

	out, err = e.run(t, common.Address{}, "escrow")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance: 0.9")
}

func TestWeatherctl_OwnerCommands(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, alice, "set-fee", "2")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	out, err := e.run(t, owner, "set-fee", "0.25")
	require.NoError(t, err)
	assert.Contains(t, out, "Fee: 0.25")

	out, err = e.run(t, owner, "set-callback", alice.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Callback authority: "+alice.Hex())

	_, err = e.run(t, owner, "set-task", "weather-job")
	require.NoError(t, err)

	_, err = e.run(t, owner, "deposit", "1")
	require.NoError(t, err)
	out, err = e.run(t, owner, "withdraw", "0.4")
	require.NoError(t, err)
	assert.Contains(t, out, "Withdrawn: 0.4")
	assert.Contains(t, out, "Balance: 0.6")

	out, err = e.run(t, owner, "transfer-ownership", alice.Hex())
	require.NoError(t, err)
	assert.Contains(t, out, "Owner: "+alice.Hex())

	out, err = e.run(t, common.Address{}, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Contract: "+contractAddr.Hex())
}

func TestWeatherctl_Reports(t *testing.T) {
	e := newEnv(t)
	_, err := e.reports.Insert(context.Background(), domain.Report{
		ID:          domain.RequestID(contractAddr, 1),
		City:        "London",
		Temperature: 1550,
		Description: "Cloudy",
		Timestamp:   1_700_000_000,
		Requester:   alice,
	})
	require.NoError(t, err)

	out, err := e.run(t, common.Address{}, "reports", "--city", "London")
	require.NoError(t, err)
	assert.Contains(t, out, "15.50°C")
	assert.Contains(t, out, "Cloudy")
	assert.Contains(t, out, "2023-11-14T22:13:20Z")

	out, err = e.run(t, common.Address{}, "reports", "--city", "Paris")
	require.NoError(t, err)
	assert.NotContains(t, out, "Cloudy")
}

func TestWeatherctl_ArgumentErrors(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, alice, "request")
	require.Error(t, err)

	_, err = e.run(t, operator, "fulfill", "--id", "0x01", "--city", "London", "--temperature", "hot", "--description", "x")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	var stdout, stderr bytes.Buffer
	err = newApp(&stdout, &stderr).RunContext(context.Background(),
		[]string{"weatherctl", "--api", e.oracleURL, "--caller", "alice", "escrow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--caller")
}
