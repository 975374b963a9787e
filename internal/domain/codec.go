package domain

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Message header keys.
const (
	HeaderEventType = "event_type"
	HeaderLogSeq    = "log_seq"
	HeaderContract  = "contract"
)

// requestedWire and reportedWire use pointers so a missing field can be told
// apart from a zero value.
type requestedWire struct {
	RequestID *common.Hash    `json:"requestId"`
	City      *string         `json:"city"`
	Requester *common.Address `json:"requester"`
	Timestamp *int64          `json:"timestamp"`
}

type reportedWire struct {
	RequestID   *common.Hash    `json:"requestId"`
	City        *string         `json:"city"`
	Temperature *int32          `json:"temperature"`
	Description *string         `json:"description"`
	Timestamp   *int64          `json:"timestamp"`
	Requester   *common.Address `json:"requester"`
}

// SerializeEvent encodes a contract event into a message keyed by request ID.
func SerializeEvent(event Event, seq uint64, contract common.Address) (OutputEvent, error) {
	switch event.(type) {
	case WeatherRequested, WeatherReported:
	default:
		return OutputEvent{}, fmt.Errorf("serialize event: unsupported type %T", event)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize %s: %w", event.EventName(), err)
	}
	return OutputEvent{
		Key:   []byte(event.RequestKey().Hex()),
		Value: data,
		Headers: map[string]string{
			HeaderEventType: event.EventName(),
			HeaderLogSeq:    strconv.FormatUint(seq, 10),
			HeaderContract:  contract.Hex(),
		},
	}, nil
}

// ParseRawEvent decodes a message from the event topic. Any schema violation
// is reported as ErrMalformedEvent.
func ParseRawEvent(raw RawEvent) (Event, error) {
	name := raw.Headers[HeaderEventType]
	switch name {
	case EventWeatherRequested:
		return parseRequested(raw.Value)
	case EventWeatherReported:
		return parseReported(raw.Value)
	case "":
		return nil, fmt.Errorf("%w: missing %s header", ErrMalformedEvent, HeaderEventType)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, name)
	}
}

func parseRequested(data []byte) (Event, error) {
	var w requestedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, EventWeatherRequested, err)
	}
	if err := requireFields(EventWeatherRequested, map[string]bool{
		"requestId": w.RequestID != nil,
		"city":      w.City != nil,
		"requester": w.Requester != nil,
		"timestamp": w.Timestamp != nil,
	}); err != nil {
		return nil, err
	}
	return WeatherRequested{
		RequestID: *w.RequestID,
		City:      *w.City,
		Requester: *w.Requester,
		Timestamp: *w.Timestamp,
	}, nil
}

func parseReported(data []byte) (Event, error) {
	var w reportedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, EventWeatherReported, err)
	}
	if err := requireFields(EventWeatherReported, map[string]bool{
		"requestId":   w.RequestID != nil,
		"city":        w.City != nil,
		"temperature": w.Temperature != nil,
		"description": w.Description != nil,
		"timestamp":   w.Timestamp != nil,
		"requester":   w.Requester != nil,
	}); err != nil {
		return nil, err
	}
	return WeatherReported{
		RequestID:   *w.RequestID,
		City:        *w.City,
		Temperature: Temperature(*w.Temperature),
		Description: *w.Description,
		Timestamp:   *w.Timestamp,
		Requester:   *w.Requester,
	}, nil
}

// requireFields fails on the first missing field in wire order.
func requireFields(event string, present map[string]bool) error {
	order := requestedOrder
	if event == EventWeatherReported {
		order = reportedOrder
	}
	for _, field := range order {
		if !present[field] {
			return fmt.Errorf("%w: %s: missing field %q", ErrMalformedEvent, event, field)
		}
	}
	return nil
}

var (
	requestedOrder = []string{"requestId", "city", "requester", "timestamp"}
	reportedOrder  = []string{"requestId", "city", "temperature", "description", "timestamp", "requester"}
)
