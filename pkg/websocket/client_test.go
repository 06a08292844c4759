package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	hub := NewHub()

	client := NewClient(123, nil, hub, "rider")

	assert.NotNil(t, client)
	assert.Equal(t, int64(123), client.ID)
	assert.Equal(t, "rider", client.Role)
	assert.Equal(t, hub, client.Hub)
	assert.NotNil(t, client.Send)
	assert.Equal(t, int64(0), client.GetRide())
	assert.Equal(t, 256, cap(client.Send))
}

func TestClientSetRide(t *testing.T) {
	client := NewClient(123, nil, NewHub(), "rider")

	client.SetRide(789)
	assert.Equal(t, int64(789), client.GetRide())

	client.SetRide(0)
	assert.Equal(t, int64(0), client.GetRide())
}

func TestClientTrySend(t *testing.T) {
	client := NewClient(123, nil, NewHub(), "rider")

	msg := &Message{
		Type:      "test",
		Data:      map[string]interface{}{"key": "value"},
		Timestamp: time.Now(),
	}

	require.True(t, client.trySend(msg))

	select {
	case received := <-client.Send:
		assert.Equal(t, "test", received.Type)
		assert.Equal(t, "value", received.Data["key"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("message not received in channel")
	}
}

func TestClientTrySendFullBuffer(t *testing.T) {
	client := NewClient(123, nil, NewHub(), "rider")
	client.Send = make(chan *Message, 2)

	assert.True(t, client.trySend(&Message{Type: "one"}))
	assert.True(t, client.trySend(&Message{Type: "two"}))

	// Buffer is full: the send must fail without blocking.
	assert.False(t, client.trySend(&Message{Type: "overflow"}))
}

func TestClientTrySendAfterClose(t *testing.T) {
	client := NewClient(123, nil, NewHub(), "rider")

	client.close()
	assert.False(t, client.trySend(&Message{Type: "late"}))

	// Closing twice must not panic.
	client.close()
}

func TestClientConcurrentRideAccess(t *testing.T) {
	client := NewClient(123, nil, NewHub(), "rider")

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int64) {
			client.SetRide(id)
			done <- true
		}(int64(i))
	}

	for i := 0; i < 10; i++ {
		go func() {
			_ = client.GetRide()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

func TestMessageMarshalJSON(t *testing.T) {
	msg := &Message{
		Type:      "ride_offer_received",
		RideID:    123,
		UserID:    456,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]interface{}{
			"key": "value",
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	require.NoError(t, err)

	assert.Equal(t, "ride_offer_received", result["type"])
	assert.Equal(t, float64(123), result["ride_id"])
	assert.Equal(t, float64(456), result["user_id"])
	assert.Equal(t, "2024-01-01T12:00:00Z", result["timestamp"])

	dataMap := result["data"].(map[string]interface{})
	assert.Equal(t, "value", dataMap["key"])
}

func TestMessageUnmarshalJSON(t *testing.T) {
	jsonData := `{
		"type": "location_update",
		"ride_id": 123,
		"user_id": 456,
		"timestamp": "2024-01-01T12:00:00Z",
		"data": {
			"latitude": 42.87,
			"longitude": 74.56
		}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)
	require.NoError(t, err)

	assert.Equal(t, "location_update", msg.Type)
	assert.Equal(t, int64(123), msg.RideID)
	assert.Equal(t, int64(456), msg.UserID)
	assert.Equal(t, 42.87, msg.Data["latitude"])
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestMessageUnmarshalJSONInvalidTimestamp(t *testing.T) {
	jsonData := `{
		"type": "test",
		"timestamp": "invalid-timestamp",
		"data": {}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)

	assert.Error(t, err)
}

func TestMessageUnmarshalJSONEmptyTimestamp(t *testing.T) {
	jsonData := `{
		"type": "test",
		"data": {}
	}`

	var msg Message
	err := json.Unmarshal([]byte(jsonData), &msg)

	require.NoError(t, err)
	assert.Equal(t, "test", msg.Type)
}
