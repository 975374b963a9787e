package domain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxCityLength bounds the city name accepted by a request, in bytes.
const MaxCityLength = 64

// Event names, also used as the event_type message header.
const (
	EventWeatherRequested = "WeatherRequested"
	EventWeatherReported  = "WeatherReported"
)

// Temperature is a fixed-point Celsius value with two implied decimals.
type Temperature int32

// String renders the temperature as e.g. "15.50°C".
func (t Temperature) String() string {
	v := int64(t)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d°C", sign, v/100, v%100)
}

// ParseTemperature reads a Celsius value with at most two decimals, e.g.
// "15.5" or "-3.25".
func ParseTemperature(s string) (Temperature, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "°C")
	r, ok := new(big.Rat).SetString(s)
	if !ok || s == "" {
		return 0, fmt.Errorf("%w: temperature %q is not a decimal number", ErrInvalidInput, s)
	}
	r.Mul(r, big.NewRat(100, 1))
	if !r.IsInt() {
		return 0, fmt.Errorf("%w: temperature %q has more than two decimals", ErrInvalidInput, s)
	}
	n := r.Num()
	if !n.IsInt64() || n.Int64() < math.MinInt32 || n.Int64() > math.MaxInt32 {
		return 0, fmt.Errorf("%w: temperature %q out of range", ErrInvalidInput, s)
	}
	return Temperature(n.Int64()), nil
}

// Request is a pending weather request held by the contract ledger.
type Request struct {
	ID        common.Hash    `json:"id"`
	Nonce     uint64         `json:"nonce"`
	City      string         `json:"city"`
	Requester common.Address `json:"requester"`
	CreatedAt int64          `json:"createdAt"`
	TaskID    common.Hash    `json:"taskId"`
	Fee       *big.Int       `json:"fee"`
}

// Event is implemented by the two events the contract emits.
type Event interface {
	EventName() string
	RequestKey() common.Hash
}

// WeatherRequested is emitted when a request is funded and recorded.
type WeatherRequested struct {
	RequestID common.Hash    `json:"requestId"`
	City      string         `json:"city"`
	Requester common.Address `json:"requester"`
	Timestamp int64          `json:"timestamp"`
}

func (WeatherRequested) EventName() string         { return EventWeatherRequested }
func (e WeatherRequested) RequestKey() common.Hash { return e.RequestID }

// WeatherReported is emitted when the callback authority fulfills a request.
type WeatherReported struct {
	RequestID   common.Hash    `json:"requestId"`
	City        string         `json:"city"`
	Temperature Temperature    `json:"temperature"`
	Description string         `json:"description"`
	Timestamp   int64          `json:"timestamp"`
	Requester   common.Address `json:"requester"`
}

func (WeatherReported) EventName() string         { return EventWeatherReported }
func (e WeatherReported) RequestKey() common.Hash { return e.RequestID }

// Report is the materialized, queryable view of a fulfilled request.
type Report struct {
	ID          common.Hash    `json:"id"`
	City        string         `json:"city"`
	Temperature Temperature    `json:"temperature"`
	Description string         `json:"description"`
	Timestamp   int64          `json:"timestamp"`
	Requester   common.Address `json:"requester"`
}

// ReportFromEvent builds the report a WeatherReported event materializes.
func ReportFromEvent(e WeatherReported) Report {
	return Report{
		ID:          e.RequestID,
		City:        e.City,
		Temperature: e.Temperature,
		Description: e.Description,
		Timestamp:   e.Timestamp,
		Requester:   e.Requester,
	}
}

// RawEvent represents an unprocessed message from the event topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the event topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
