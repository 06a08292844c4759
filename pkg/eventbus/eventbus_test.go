package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Success(t *testing.T) {
	data := RideOfferedData{
		RideID:    12,
		RiderID:   3,
		DriverID:  7,
		Attempt:   1,
		RadiusKm:  10,
		OfferedAt: time.Now().UTC(),
	}

	event, err := NewEvent(SubjectRideOffered, "dispatch", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectRideOffered, event.Type)
	assert.Equal(t, "dispatch", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	// ID should be a valid UUID
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded RideOfferedData
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, int64(12), decoded.RideID)
	assert.Equal(t, int64(7), decoded.DriverID)
	assert.Equal(t, 1, decoded.Attempt)
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	// Channels cannot be marshaled to JSON
	event, err := NewEvent("test", "src", make(chan int))
	assert.Error(t, err)
	assert.Nil(t, event)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		event, err := NewEvent("test", "src", nil)
		require.NoError(t, err)
		assert.False(t, ids[event.ID], "duplicate event ID generated")
		ids[event.ID] = true
	}
}

func TestNewEvent_TimestampIsUTC(t *testing.T) {
	event, err := NewEvent("test", "src", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestEvent_JSONRoundTrip(t *testing.T) {
	original, err := NewEvent(SubjectRideCompleted, "dispatch", RideCompletedData{RideID: 5, Fare: 25})
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Event
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Type, restored.Type)
	assert.Equal(t, original.Source, restored.Source)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
}

func TestSubjectConstants(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"RideRequested", SubjectRideRequested, "rides.requested"},
		{"RideOffered", SubjectRideOffered, "rides.offered"},
		{"RideAccepted", SubjectRideAccepted, "rides.accepted"},
		{"RideStarted", SubjectRideStarted, "rides.started"},
		{"RideCompleted", SubjectRideCompleted, "rides.completed"},
		{"RideCancelled", SubjectRideCancelled, "rides.cancelled"},
		{"DriverLocationUpdated", SubjectDriverLocationUpdated, "drivers.location.updated"},
		{"DriverOnline", SubjectDriverOnline, "drivers.online"},
		{"DriverOffline", SubjectDriverOffline, "drivers.offline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "dispatch", cfg.Name)
	assert.Equal(t, "DISPATCH", cfg.StreamName)
}

func TestHandlerFunc_Invocation(t *testing.T) {
	var called bool
	var receivedEvent *Event

	handler := HandlerFunc(func(ctx context.Context, event *Event) error {
		called = true
		receivedEvent = event
		return nil
	})

	event, _ := NewEvent("test.event", "test", map[string]string{"key": "value"})
	err := handler(context.Background(), event)

	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, event.ID, receivedEvent.ID)
}

func TestBus_Connected_NilConn(t *testing.T) {
	bus := &Bus{}
	assert.False(t, bus.Connected())
}

func TestBus_Close_NoSubs(t *testing.T) {
	bus := &Bus{}
	// Should not panic
	bus.Close()
}
