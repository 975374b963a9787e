package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	"github.com/couchcryptid/weather-oracle/internal/client"
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

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ready struct{}

func (ready) CheckReadiness(context.Context) error { return nil }

func newAPI(t *testing.T) (string, *store.MemoryStore) {
	t.Helper()
	fee, err := domain.ParseTokenAmount("0.1")
	require.NoError(t, err)
	c, err := oracle.New(contractAddr, owner, oracle.Configuration{CallbackAuthority: operator, Fee: fee},
		oracle.WithLogger(discardLogger()))
	require.NoError(t, err)

	reports := store.NewMemoryStore()
	srv := httptest.NewServer(httpadapter.NewServer(":0", ready{}, discardLogger(),
		httpadapter.WithOracle(c), httpadapter.WithReports(reports)))
	t.Cleanup(srv.Close)
	return srv.URL, reports
}

func as(url string, caller common.Address) *client.Client {
	return client.New(url, caller, 5*time.Second, discardLogger())
}

func TestClient_RequestLifecycle(t *testing.T) {
	ctx := context.Background()
	url, _ := newAPI(t)

	_, err := as(url, alice).Request(ctx, "London")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	escrow, err := as(url, alice).Deposit(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", escrow.Balance)

	req, err := as(url, alice).Request(ctx, "London")
	require.NoError(t, err)
	assert.Equal(t, "London", req.City)
	assert.Equal(t, "0.1", req.Fee)

	pending, err := as(url, common.Address{}).Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got, err := as(url, common.Address{}).GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	err = as(url, alice).Fulfill(ctx, req.ID, "London", 1550, "Cloudy", 1_700_000_000)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, as(url, operator).Fulfill(ctx, req.ID, "London", 1550, "Cloudy", 1_700_000_000))

	err = as(url, operator).Fulfill(ctx, req.ID, "London", 1550, "Cloudy", 1_700_000_000)
	require.ErrorIs(t, err, domain.ErrUnknownRequest)

	escrow, err = as(url, common.Address{}).Escrow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.9", escrow.Balance)
}

func TestClient_OwnerOperations(t *testing.T) {
	ctx := context.Background()
	url, _ := newAPI(t)

	_, err := as(url, alice).SetFee(ctx, "1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	cfg, err := as(url, owner).SetFee(ctx, "0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.5", cfg.Fee)

	cfg, err = as(url, owner).SetTaskID(ctx, "weather-job")
	require.NoError(t, err)
	taskID, err := domain.TaskIDFromString("weather-job")
	require.NoError(t, err)
	assert.Equal(t, taskID.Hex(), cfg.TaskID)

	cfg, err = as(url, owner).SetCallbackAuthority(ctx, alice.Hex())
	require.NoError(t, err)
	assert.Equal(t, alice.Hex(), cfg.CallbackAuthority)

	_, err = as(url, owner).Deposit(ctx, "2")
	require.NoError(t, err)
	out, err := as(url, owner).Withdraw(ctx, "0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.5", out.Amount)
	assert.Equal(t, "1.5", out.Balance)

	_, err = as(url, owner).SetFee(ctx, "abc")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	cfg, err = as(url, owner).TransferOwnership(ctx, alice.Hex())
	require.NoError(t, err)
	assert.Equal(t, alice.Hex(), cfg.Owner)

	cfg, err = as(url, common.Address{}).Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, contractAddr.Hex(), cfg.Contract)
}

func TestClient_Reports(t *testing.T) {
	ctx := context.Background()
	url, reports := newAPI(t)
	for i, city := range []string{"London", "Paris", "London"} {
		_, err := reports.Insert(ctx, domain.Report{
			ID:          domain.RequestID(contractAddr, uint64(i+1)),
			City:        city,
			Temperature: domain.Temperature(100 * (i + 1)),
			Description: "Clear",
			Timestamp:   int64(i + 1),
			Requester:   alice,
		})
		require.NoError(t, err)
	}

	c := as(url, common.Address{})
	all, err := c.Reports(ctx, client.ReportQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	london, err := c.Reports(ctx, client.ReportQuery{City: "London", Limit: 1})
	require.NoError(t, err)
	require.Len(t, london, 1)
	assert.Equal(t, "3.00°C", london[0].TemperatureFormatted)

	_, err = c.Reports(ctx, client.ReportQuery{Requester: "nobody"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAPIError_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := as(srv.URL, alice).Config(context.Background())
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream exploded", apiErr.Message)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)
}
