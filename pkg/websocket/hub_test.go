package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubAttachAndSendToUser(t *testing.T) {
	hub := NewHub()
	client := NewClient(7, nil, hub, "driver")

	hub.Attach(client)
	assert.Equal(t, 1, hub.GetClientCount())

	hub.SendToUser(7, &Message{Type: "ride_offer_received", RideID: 1})

	select {
	case msg := <-client.Send:
		assert.Equal(t, "ride_offer_received", msg.Type)
		assert.Equal(t, int64(1), msg.RideID)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}

func TestHubSendToUnknownUserIsDropped(t *testing.T) {
	hub := NewHub()

	// Nobody is attached: must not block or panic.
	hub.SendToUser(99, &Message{Type: "offer_expired"})

	assert.Equal(t, 0, hub.GetClientCount())
}

func TestHubAttachReplacesExistingSession(t *testing.T) {
	hub := NewHub()
	first := NewClient(7, nil, hub, "driver")
	second := NewClient(7, nil, hub, "driver")

	hub.Attach(first)
	hub.Attach(second)

	assert.Equal(t, 1, hub.GetClientCount())

	// The first session's channel is closed by the replacement.
	_, open := <-first.Send
	assert.False(t, open)

	// Messages route to the new session.
	hub.SendToUser(7, &Message{Type: "driver_assigned"})
	select {
	case msg := <-second.Send:
		assert.Equal(t, "driver_assigned", msg.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("replacement session did not receive message")
	}
}

func TestHubDetach(t *testing.T) {
	hub := NewHub()
	client := NewClient(7, nil, hub, "rider")

	hub.Attach(client)
	hub.Detach(client)

	assert.Equal(t, 0, hub.GetClientCount())

	// Further sends are dropped silently.
	hub.SendToUser(7, &Message{Type: "request_timeout"})
}

func TestHubDetachStaleSessionKeepsReplacement(t *testing.T) {
	hub := NewHub()
	stale := NewClient(7, nil, hub, "rider")
	fresh := NewClient(7, nil, hub, "rider")

	hub.Attach(stale)
	hub.Attach(fresh)

	// The stale session's read pump detaching must not evict the fresh one.
	hub.Detach(stale)

	assert.Equal(t, 1, hub.GetClientCount())
	got, ok := hub.GetClient(7)
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestHubSendToUserDetachesOnFullBuffer(t *testing.T) {
	hub := NewHub()
	client := NewClient(7, nil, hub, "driver")
	client.Send = make(chan *Message, 1)

	hub.Attach(client)

	hub.SendToUser(7, &Message{Type: "first"})
	hub.SendToUser(7, &Message{Type: "second"}) // overflows, client detached

	assert.Equal(t, 0, hub.GetClientCount())
}

func TestHubRideRooms(t *testing.T) {
	hub := NewHub()
	driver := NewClient(1, nil, hub, "driver")
	rider := NewClient(2, nil, hub, "rider")

	hub.Attach(driver)
	hub.Attach(rider)

	hub.AddClientToRide(1, 55)
	hub.AddClientToRide(2, 55)

	assert.Equal(t, 1, hub.GetRideCount())
	assert.Len(t, hub.GetClientsInRide(55), 2)
	assert.Equal(t, int64(55), driver.GetRide())

	hub.SendToRide(55, &Message{Type: "driver_location", RideID: 55})

	for _, c := range []*Client{driver, rider} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "driver_location", msg.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("ride room member did not receive message")
		}
	}

	hub.RemoveClientFromRide(1, 55)
	assert.Len(t, hub.GetClientsInRide(55), 1)
	assert.Equal(t, int64(0), driver.GetRide())

	hub.RemoveClientFromRide(2, 55)
	assert.Equal(t, 0, hub.GetRideCount())
}

func TestHubAddUnknownClientToRideIsNoop(t *testing.T) {
	hub := NewHub()

	hub.AddClientToRide(42, 55)

	assert.Equal(t, 0, hub.GetRideCount())
}

func TestHubDetachRemovesFromRideRoom(t *testing.T) {
	hub := NewHub()
	client := NewClient(1, nil, hub, "driver")

	hub.Attach(client)
	hub.AddClientToRide(1, 55)
	hub.Detach(client)

	assert.Empty(t, hub.GetClientsInRide(55))
	assert.Equal(t, 0, hub.GetRideCount())
}

func TestHubHandleMessageRouting(t *testing.T) {
	hub := NewHub()
	client := NewClient(1, nil, hub, "driver")

	received := make(chan *Message, 1)
	hub.RegisterHandler("location_update", func(c *Client, msg *Message) {
		received <- msg
	})

	hub.HandleMessage(client, &Message{Type: "location_update", Data: map[string]interface{}{"latitude": 1.0}})

	select {
	case msg := <-received:
		assert.Equal(t, 1.0, msg.Data["latitude"])
	case <-time.After(100 * time.Millisecond):
		t.Fatal("handler was not invoked")
	}

	// Unknown types are ignored without panicking.
	hub.HandleMessage(client, &Message{Type: "unknown_type"})
}
