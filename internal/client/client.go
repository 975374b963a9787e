// Package client is the HTTP client for the oracle and indexer APIs, used by
// weatherctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpadapter "github.com/couchcryptid/weather-oracle/internal/adapter/http"
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// APIError is a non-2xx response. It unwraps to the matching domain error so
// callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusPaymentRequired:
		return domain.ErrInsufficientFunds
	case http.StatusNotFound:
		return domain.ErrUnknownRequest
	default:
		return nil
	}
}

// Client talks to a single API base URL on behalf of one caller address.
type Client struct {
	baseURL    string
	caller     common.Address
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for baseURL. A zero caller sends no caller header.
func New(baseURL string, caller common.Address, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		caller:     caller,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Request submits a weather request for city.
func (c *Client) Request(ctx context.Context, city string) (httpadapter.RequestView, error) {
	var out httpadapter.RequestView
	err := c.do(ctx, http.MethodPost, "/api/v1/requests", httpadapter.CreateRequestBody{City: city}, &out)
	return out, err
}

// Pending lists pending requests.
func (c *Client) Pending(ctx context.Context) ([]httpadapter.RequestView, error) {
	var out []httpadapter.RequestView
	err := c.do(ctx, http.MethodGet, "/api/v1/requests", nil, &out)
	return out, err
}

// GetRequest returns a pending request by ID.
func (c *Client) GetRequest(ctx context.Context, id string) (httpadapter.RequestView, error) {
	var out httpadapter.RequestView
	err := c.do(ctx, http.MethodGet, "/api/v1/requests/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Fulfill delivers a result as the callback authority.
func (c *Client) Fulfill(ctx context.Context, id, city string, temperature domain.Temperature, description string, timestamp int64) error {
	temp := int32(temperature)
	return c.do(ctx, http.MethodPost, "/api/v1/fulfillments", httpadapter.FulfillBody{
		RequestID:   id,
		City:        city,
		Temperature: &temp,
		Description: description,
		Timestamp:   &timestamp,
	}, nil)
}

// Escrow returns the escrow balance.
func (c *Client) Escrow(ctx context.Context) (httpadapter.EscrowView, error) {
	var out httpadapter.EscrowView
	err := c.do(ctx, http.MethodGet, "/api/v1/escrow", nil, &out)
	return out, err
}

// Deposit funds escrow with a decimal token amount.
func (c *Client) Deposit(ctx context.Context, amount string) (httpadapter.EscrowView, error) {
	var out httpadapter.EscrowView
	err := c.do(ctx, http.MethodPost, "/api/v1/escrow/deposit", httpadapter.AmountBody{Amount: amount}, &out)
	return out, err
}

// Withdraw moves a decimal token amount out of escrow to the owner.
func (c *Client) Withdraw(ctx context.Context, amount string) (httpadapter.WithdrawView, error) {
	var out httpadapter.WithdrawView
	err := c.do(ctx, http.MethodPost, "/api/v1/escrow/withdraw", httpadapter.AmountBody{Amount: amount}, &out)
	return out, err
}

// Config returns the contract configuration.
func (c *Client) Config(ctx context.Context) (httpadapter.ConfigView, error) {
	var out httpadapter.ConfigView
	err := c.do(ctx, http.MethodGet, "/api/v1/config", nil, &out)
	return out, err
}

func (c *Client) SetFee(ctx context.Context, fee string) (httpadapter.ConfigView, error) {
	return c.putConfig(ctx, "fee", httpadapter.FeeBody{Fee: fee})
}

func (c *Client) SetTaskID(ctx context.Context, taskID string) (httpadapter.ConfigView, error) {
	return c.putConfig(ctx, "task-id", httpadapter.TaskIDBody{TaskID: taskID})
}

func (c *Client) SetCallbackAuthority(ctx context.Context, address string) (httpadapter.ConfigView, error) {
	return c.putConfig(ctx, "callback-authority", httpadapter.AddressBody{Address: address})
}

func (c *Client) TransferOwnership(ctx context.Context, address string) (httpadapter.ConfigView, error) {
	return c.putConfig(ctx, "owner", httpadapter.AddressBody{Address: address})
}

// ReportQuery filters a report listing. Zero values are omitted.
type ReportQuery struct {
	City      string
	Requester string
	Limit     int
}

// Reports lists materialized reports from the indexer API.
func (c *Client) Reports(ctx context.Context, q ReportQuery) ([]httpadapter.ReportView, error) {
	params := url.Values{}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.Requester != "" {
		params.Set("requester", q.Requester)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/api/v1/reports"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out []httpadapter.ReportView
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) putConfig(ctx context.Context, key string, body any) (httpadapter.ConfigView, error) {
	var out httpadapter.ConfigView
	err := c.do(ctx, http.MethodPut, "/api/v1/config/"+key, body, &out)
	return out, err
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.caller != (common.Address{}) {
		req.Header.Set(httpadapter.CallerHeader, c.caller.Hex())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var apiErr httpadapter.ErrorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
