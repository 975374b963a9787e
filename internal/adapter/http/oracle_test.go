package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator     = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func tokens(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := domain.ParseTokenAmount(s)
	require.NoError(t, err)
	return v
}

func newOracleServer(t *testing.T, fee, escrow string) (*httpadapter.Server, *oracle.Contract) {
	t.Helper()
	c, err := oracle.New(contractAddr, owner, oracle.Configuration{
		CallbackAuthority: operator,
		Fee:               tokens(t, fee),
	},
		oracle.WithEscrow(tokens(t, escrow)),
		oracle.WithClock(clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))),
		oracle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	srv := httpadapter.NewServer(":0", readiness(nil), slog.Default(), httpadapter.WithOracle(c))
	return srv, c
}

func do(t *testing.T, srv http.Handler, method, path string, caller *common.Address, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != nil {
		req.Header.Set(httpadapter.CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestOracleAPI_RequestAndFulfill(t *testing.T) {
	srv, c := newOracleServer(t, "0.1", "1")

	rec := do(t, srv, http.MethodPost, "/api/v1/requests", &alice, map[string]string{"city": "London"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[httpadapter.RequestView](t, rec)
	assert.Equal(t, "London", created.City)
	assert.Equal(t, alice.Hex(), created.Requester)
	assert.Equal(t, "0.1", created.Fee)
	assert.Equal(t, int64(1_700_000_000), created.CreatedAt)

	rec = do(t, srv, http.MethodGet, "/api/v1/escrow", nil, nil)
	assert.Equal(t, "0.9", decode[httpadapter.EscrowView](t, rec).Balance)

	rec = do(t, srv, http.MethodGet, "/api/v1/requests", nil, nil)
	pending := decode[[]httpadapter.RequestView](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].ID)

	rec = do(t, srv, http.MethodGet, "/api/v1/requests/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	fulfillment := map[string]any{
		"requestId":   created.ID,
		"city":        "London",
		"temperature": 1550,
		"description": "Cloudy",
		"timestamp":   1_700_000_060,
	}
	rec = do(t, srv, http.MethodPost, "/api/v1/fulfillments", &alice, fulfillment)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decode[httpadapter.ErrorResponse](t, rec).Error, "unauthorized")

	rec = do(t, srv, http.MethodPost, "/api/v1/fulfillments", &operator, fulfillment)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Empty(t, c.PendingRequests())

	rec = do(t, srv, http.MethodPost, "/api/v1/fulfillments", &operator, fulfillment)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/requests/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOracleAPI_InsufficientFunds(t *testing.T) {
	srv, c := newOracleServer(t, "0.1", "0")

	rec := do(t, srv, http.MethodPost, "/api/v1/requests", &alice, map[string]string{"city": "Paris"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, decode[httpadapter.ErrorResponse](t, rec).Error, "insufficient funds")
	assert.Empty(t, c.PendingRequests())
	assert.Zero(t, c.Events().Len())
}

func TestOracleAPI_InvalidInput(t *testing.T) {
	srv, _ := newOracleServer(t, "0.1", "1")

	tests := []struct {
		name   string
		method string
		path   string
		caller *common.Address
		body   any
	}{
		{"missing caller", http.MethodPost, "/api/v1/requests", nil, map[string]string{"city": "London"}},
		{"empty city", http.MethodPost, "/api/v1/requests", &alice, map[string]string{"city": ""}},
		{"unknown field", http.MethodPost, "/api/v1/requests", &alice, map[string]string{"town": "London"}},
		{"bad request id", http.MethodGet, "/api/v1/requests/0x1234", nil, nil},
		{"missing temperature", http.MethodPost, "/api/v1/fulfillments", &operator, map[string]any{
			"requestId": common.Hash{1}.Hex(), "city": "London", "description": "Cloudy", "timestamp": 1,
		}},
		{"bad amount", http.MethodPost, "/api/v1/escrow/deposit", &alice, map[string]string{"amount": "lots"}},
		{"zero deposit", http.MethodPost, "/api/v1/escrow/deposit", &alice, map[string]string{"amount": "0"}},
		{"bad address", http.MethodPut, "/api/v1/config/callback-authority", &owner, map[string]string{"address": "oracle.near"}},
		{"negative fee", http.MethodPut, "/api/v1/config/fee", &owner, map[string]string{"fee": "-1"}},
		{"zero owner", http.MethodPut, "/api/v1/config/owner", &owner, map[string]string{"address": common.Address{}.Hex()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.caller, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[httpadapter.ErrorResponse](t, rec).Error)
		})
	}
}

func TestOracleAPI_EscrowDepositAndWithdraw(t *testing.T) {
	srv, _ := newOracleServer(t, "0.1", "0")

	rec := do(t, srv, http.MethodPost, "/api/v1/escrow/deposit", &alice, map[string]string{"amount": "2.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2.5", decode[httpadapter.EscrowView](t, rec).Balance)

	rec = do(t, srv, http.MethodPost, "/api/v1/escrow/withdraw", &alice, map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/escrow/withdraw", &owner, map[string]string{"amount": "3"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/escrow/withdraw", &owner, map[string]string{"amount": "1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[httpadapter.WithdrawView](t, rec)
	assert.Equal(t, "1", out.Amount)
	assert.Equal(t, "1.5", out.Balance)
}

func TestOracleAPI_Configuration(t *testing.T) {
	srv, c := newOracleServer(t, "0.1", "1")

	rec := do(t, srv, http.MethodPut, "/api/v1/config/fee", &alice, map[string]string{"fee": "5"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, tokens(t, "0.1"), c.Config().Fee)

	rec = do(t, srv, http.MethodPut, "/api/v1/config/fee", &owner, map[string]string{"fee": "0.25"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "0.25", decode[httpadapter.ConfigView](t, rec).Fee)

	rec = do(t, srv, http.MethodPut, "/api/v1/config/task-id", &owner, map[string]string{"taskId": "ca98366cc3314ed5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	taskID, err := domain.TaskIDFromString("ca98366cc3314ed5")
	require.NoError(t, err)
	assert.Equal(t, taskID.Hex(), decode[httpadapter.ConfigView](t, rec).TaskID)

	rec = do(t, srv, http.MethodPut, "/api/v1/config/callback-authority", &owner, map[string]string{"address": alice.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, alice, c.Config().CallbackAuthority)

	rec = do(t, srv, http.MethodPut, "/api/v1/config/owner", &owner, map[string]string{"address": alice.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/v1/config", nil, nil)
	view := decode[httpadapter.ConfigView](t, rec)
	assert.Equal(t, alice.Hex(), view.Owner)
	assert.Equal(t, contractAddr.Hex(), view.Contract)

	rec = do(t, srv, http.MethodPut, "/api/v1/config/fee", &owner, map[string]string{"fee": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "previous owner loses access")
}
