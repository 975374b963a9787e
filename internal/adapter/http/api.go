package http

import (
	"github.com/couchcryptid/weather-oracle/internal/domain"
	"github.com/couchcryptid/weather-oracle/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
)

// Header carrying the caller's address on oracle routes.
const CallerHeader = "X-Caller"

// Amounts are decimal token strings, e.g. "0.1".

// RequestView is the JSON form of a pending request.
type RequestView struct {
	ID        string `json:"id"`
	Nonce     uint64 `json:"nonce"`
	City      string `json:"city"`
	Requester string `json:"requester"`
	CreatedAt int64  `json:"createdAt"`
	TaskID    string `json:"taskId"`
	Fee       string `json:"fee"`
}

// ConfigView is the JSON form of the contract configuration.
type ConfigView struct {
	Contract          string `json:"contract"`
	Owner             string `json:"owner"`
	CallbackAuthority string `json:"callbackAuthority"`
	TaskID            string `json:"taskId"`
	Fee               string `json:"fee"`
}

// EscrowView reports the escrow balance.
type EscrowView struct {
	Balance string `json:"balance"`
}

// WithdrawView reports a completed withdrawal.
type WithdrawView struct {
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

// ReportView is the JSON form of a materialized report.
type ReportView struct {
	ID                   string `json:"id"`
	City                 string `json:"city"`
	Temperature          int32  `json:"temperature"`
	TemperatureFormatted string `json:"temperatureFormatted"`
	Description          string `json:"description"`
	Timestamp            int64  `json:"timestamp"`
	Requester            string `json:"requester"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Request bodies.

type CreateRequestBody struct {
	City string `json:"city" validate:"required"`
}

type FulfillBody struct {
	RequestID   string `json:"requestId" validate:"required,hexadecimal,len=66"`
	City        string `json:"city" validate:"required"`
	Temperature *int32 `json:"temperature" validate:"required"`
	Description string `json:"description" validate:"required"`
	Timestamp   *int64 `json:"timestamp" validate:"required"`
}

type AmountBody struct {
	Amount string `json:"amount" validate:"required,numeric"`
}

type AddressBody struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

type TaskIDBody struct {
	TaskID string `json:"taskId" validate:"required"`
}

type FeeBody struct {
	Fee string `json:"fee" validate:"required,numeric"`
}

func newRequestView(r domain.Request) RequestView {
	return RequestView{
		ID:        r.ID.Hex(),
		Nonce:     r.Nonce,
		City:      r.City,
		Requester: r.Requester.Hex(),
		CreatedAt: r.CreatedAt,
		TaskID:    r.TaskID.Hex(),
		Fee:       domain.FormatTokenAmount(r.Fee),
	}
}

func newConfigView(contract, owner common.Address, cfg oracle.Configuration) ConfigView {
	return ConfigView{
		Contract:          contract.Hex(),
		Owner:             owner.Hex(),
		CallbackAuthority: cfg.CallbackAuthority.Hex(),
		TaskID:            cfg.TaskID.Hex(),
		Fee:               domain.FormatTokenAmount(cfg.Fee),
	}
}

// NewReportView converts a stored report.
func NewReportView(r domain.Report) ReportView {
	return ReportView{
		ID:                   r.ID.Hex(),
		City:                 r.City,
		Temperature:          int32(r.Temperature),
		TemperatureFormatted: r.Temperature.String(),
		Description:          r.Description,
		Timestamp:            r.Timestamp,
		Requester:            r.Requester.Hex(),
	}
}
