package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/logger"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active client sessions, keyed by user id. At most
// one session exists per user: attaching a second connection for the same id
// replaces the first. Delivery is fire-and-forget; sends to absent users
// are dropped silently and a session that cannot keep up is detached, so
// callers never block and never see an error.
type Hub struct {
	// Registered clients by user ID
	clients map[int64]*Client

	// Clients grouped by ride ID
	rides map[int64]map[int64]*Client

	// Message handlers by message type
	handlers map[string]MessageHandler

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[int64]*Client),
		rides:    make(map[int64]map[int64]*Client),
		handlers: make(map[string]MessageHandler),
	}
}

// Attach registers a client session, replacing any existing session for the
// same user id.
func (h *Hub) Attach(client *Client) {
	h.mu.Lock()
	existing, ok := h.clients[client.ID]
	h.clients[client.ID] = client
	h.mu.Unlock()

	if ok && existing != client {
		existing.close()
	}

	logger.Debug("websocket client attached",
		zap.Int64("user_id", client.ID),
		zap.String("role", client.Role),
	)
}

// Detach removes a client session and closes its send channel. Detaching a
// client that was already replaced by a newer session leaves the newer
// session untouched.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)

		if rideID := client.GetRide(); rideID != 0 {
			if ride, ok := h.rides[rideID]; ok {
				delete(ride, client.ID)
				if len(ride) == 0 {
					delete(h.rides, rideID)
				}
			}
		}
	}
	h.mu.Unlock()

	client.close()

	logger.Debug("websocket client detached", zap.Int64("user_id", client.ID))
}

// SendToUser sends a message to a specific user. Unknown users are dropped
// silently; a full client buffer detaches that client.
func (h *Hub) SendToUser(userID int64, msg *Message) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	if !client.trySend(msg) {
		logger.Warn("websocket client buffer full, detaching",
			zap.Int64("user_id", userID),
		)
		h.Detach(client)
	}
}

// SendToRide sends a message to all clients in a ride room.
func (h *Hub) SendToRide(rideID int64, msg *Message) {
	for _, client := range h.GetClientsInRide(rideID) {
		if !client.trySend(msg) {
			h.Detach(client)
		}
	}
}

// HandleMessage routes incoming messages to appropriate handlers
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if exists {
		handler(client, msg)
	} else {
		logger.Debug("no handler for websocket message type", zap.String("type", msg.Type))
	}
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// AddClientToRide adds a client to a ride room
func (h *Hub) AddClientToRide(clientID, rideID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	if _, ok := h.rides[rideID]; !ok {
		h.rides[rideID] = make(map[int64]*Client)
	}

	h.rides[rideID][clientID] = client
	client.SetRide(rideID)
}

// RemoveClientFromRide removes a client from a ride room
func (h *Hub) RemoveClientFromRide(clientID, rideID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ride, ok := h.rides[rideID]; ok {
		delete(ride, clientID)
		if len(ride) == 0 {
			delete(h.rides, rideID)
		}
	}

	if client, ok := h.clients[clientID]; ok {
		client.SetRide(0)
	}
}

// GetClient returns a client by ID
func (h *Hub) GetClient(clientID int64) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientsInRide returns all clients in a ride
func (h *Hub) GetClientsInRide(rideID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0)
	if ride, ok := h.rides[rideID]; ok {
		for _, client := range ride {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRideCount returns the number of active ride rooms
func (h *Hub) GetRideCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rides)
}
