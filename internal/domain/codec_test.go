package domain

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	testRequester = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func TestSerializeEvent_Reported(t *testing.T) {
	event := WeatherReported{
		RequestID:   RequestID(testContract, 1),
		City:        "London",
		Temperature: 1550,
		Description: "Cloudy",
		Timestamp:   1714143000,
		Requester:   testRequester,
	}

	out, err := SerializeEvent(event, 7, testContract)
	require.NoError(t, err)

	assert.Equal(t, []byte(event.RequestID.Hex()), out.Key)
	assert.Equal(t, EventWeatherReported, out.Headers[HeaderEventType])
	assert.Equal(t, "7", out.Headers[HeaderLogSeq])
	assert.Equal(t, testContract.Hex(), out.Headers[HeaderContract])
	assert.JSONEq(t, `{
		"requestId": "`+event.RequestID.Hex()+`",
		"city": "London",
		"temperature": 1550,
		"description": "Cloudy",
		"timestamp": 1714143000,
		"requester": "`+testRequester.Hex()+`"
	}`, string(out.Value))
}

func TestSerializeEvent_FieldOrder(t *testing.T) {
	out, err := SerializeEvent(WeatherRequested{City: "Paris"}, 1, testContract)
	require.NoError(t, err)

	var keys []string
	dec := json.NewDecoder(bytes.NewReader(out.Value))
	_, err = dec.Token()
	require.NoError(t, err)
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, requestedOrder, keys)
}

func TestParseRawEvent_RoundTrip(t *testing.T) {
	events := []Event{
		WeatherRequested{
			RequestID: RequestID(testContract, 3),
			City:      "Paris",
			Requester: testRequester,
			Timestamp: 1714143000,
		},
		WeatherReported{
			RequestID:   RequestID(testContract, 3),
			City:        "Paris",
			Temperature: -325,
			Description: "Snow",
			Timestamp:   1714146600,
			Requester:   testRequester,
		},
	}

	for _, want := range events {
		t.Run(want.EventName(), func(t *testing.T) {
			out, err := SerializeEvent(want, 1, testContract)
			require.NoError(t, err)

			got, err := ParseRawEvent(RawEvent{Key: out.Key, Value: out.Value, Headers: out.Headers})
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRawEvent_Malformed(t *testing.T) {
	id := RequestID(testContract, 1).Hex()
	reported := map[string]string{HeaderEventType: EventWeatherReported}

	tests := []struct {
		name    string
		headers map[string]string
		value   string
		field   string
	}{
		{
			name:    "missing event type header",
			headers: map[string]string{},
			value:   `{}`,
			field:   HeaderEventType,
		},
		{
			name:    "unknown event type",
			headers: map[string]string{HeaderEventType: "WeatherCancelled"},
			value:   `{}`,
			field:   "WeatherCancelled",
		},
		{
			name:    "not json",
			headers: reported,
			value:   `not-json{{{`,
		},
		{
			name:    "missing temperature",
			headers: reported,
			value:   `{"requestId":"` + id + `","city":"London","description":"Cloudy","timestamp":1,"requester":"` + testRequester.Hex() + `"}`,
			field:   "temperature",
		},
		{
			name:    "missing requester",
			headers: reported,
			value:   `{"requestId":"` + id + `","city":"London","temperature":1550,"description":"Cloudy","timestamp":1}`,
			field:   "requester",
		},
		{
			name:    "short request id",
			headers: reported,
			value:   `{"requestId":"0x1234","city":"London","temperature":1550,"description":"Cloudy","timestamp":1,"requester":"` + testRequester.Hex() + `"}`,
		},
		{
			name:    "temperature overflows int32",
			headers: reported,
			value:   `{"requestId":"` + id + `","city":"London","temperature":3000000000,"description":"Cloudy","timestamp":1,"requester":"` + testRequester.Hex() + `"}`,
		},
		{
			name:    "requested without city",
			headers: map[string]string{HeaderEventType: EventWeatherRequested},
			value:   `{"requestId":"` + id + `","requester":"` + testRequester.Hex() + `","timestamp":1}`,
			field:   "city",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRawEvent(RawEvent{Headers: tc.headers, Value: []byte(tc.value)})
			require.ErrorIs(t, err, ErrMalformedEvent)
			if tc.field != "" {
				assert.Contains(t, err.Error(), tc.field)
			}
		})
	}
}

func TestParseRawEvent_EmptyDescriptionIsPresent(t *testing.T) {
	value := `{"requestId":"` + RequestID(testContract, 1).Hex() + `","city":"London","temperature":0,"description":"","timestamp":0,"requester":"` + testRequester.Hex() + `"}`
	event, err := ParseRawEvent(RawEvent{
		Headers: map[string]string{HeaderEventType: EventWeatherReported},
		Value:   []byte(value),
	})
	require.NoError(t, err)
	assert.Equal(t, Temperature(0), event.(WeatherReported).Temperature)
	assert.Empty(t, event.(WeatherReported).Description)
}
