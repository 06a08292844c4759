package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/cityhail/dispatch/pkg/common"
	ws "github.com/cityhail/dispatch/pkg/websocket"
)

// Handler upgrades WebSocket connections for the realtime channel.
type Handler struct {
	service *Service
	hub     *ws.Hub
}

// NewHandler creates a realtime handler.
func NewHandler(service *Service, hub *ws.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

// RegisterRoutes wires the realtime endpoint onto the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/:user_id", h.Connect)
}

// Connect resolves the user against the database and upgrades the request.
// Unknown ids are rejected before the upgrade so the client gets a proper
// HTTP status.
func (h *Handler) Connect(c *gin.Context) {
	userID, ok := common.ParseIDParam(c, "user_id", "user ID")
	if !ok {
		return
	}

	role, found, err := h.service.ResolveUser(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to resolve user") {
		return
	}
	if !found {
		common.AppErrorResponse(c, common.NewNotFoundError("user not found", nil))
		return
	}

	// Serve attaches the session and starts the pumps; errors are already
	// written to the connection by the upgrader.
	ws.Serve(c, h.hub, userID, role)
}
