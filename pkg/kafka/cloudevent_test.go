package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEvent_RoundTrip(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
	}

	ce, err := NewCloudEvent("service-booking", "booking.confirmed", payload{BookingID: "b-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, ce.ID)
	assert.Equal(t, "1.0", ce.SpecVersion)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "booking.confirmed", parsed.Type)

	var got payload
	require.NoError(t, parsed.ParseData(&got))
	assert.Equal(t, "b-1", got.BookingID)
}

func TestParseCloudEvent_RejectsUntyped(t *testing.T) {
	_, err := ParseCloudEvent([]byte(`{"id":"1","data":{}}`))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`not json`))
	assert.Error(t, err)
}
