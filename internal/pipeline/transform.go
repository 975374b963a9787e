package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/weather-oracle/internal/domain"
)

// EventTransformer implements Transformer using the domain wire codec.
type EventTransformer struct {
	logger *slog.Logger
}

// NewTransformer creates an EventTransformer.
func NewTransformer(logger *slog.Logger) *EventTransformer {
	return &EventTransformer{logger: logger}
}

func (t *EventTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Event, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("event decoded",
		"event_type", event.EventName(),
		"request_id", event.RequestKey().Hex(),
		"log_seq", raw.Headers[domain.HeaderLogSeq],
	)
	return event, nil
}
