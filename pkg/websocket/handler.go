package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The demo client is served from arbitrary origins.
		return true
	},
}

// Serve upgrades the request to a WebSocket connection, attaches the session
// to the hub and starts the read/write pumps. The caller is responsible for
// resolving the user id and role beforehand.
func Serve(c *gin.Context, hub *Hub, userID int64, role string) (*Client, error) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("failed to upgrade websocket connection",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	client := NewClient(userID, conn, hub, role)
	hub.Attach(client)

	go client.WritePump()
	go client.ReadPump()

	return client, nil
}
