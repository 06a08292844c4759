package users

import (
	"github.com/gin-gonic/gin"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/models"
)

// Handler handles HTTP requests for user accounts
type Handler struct {
	service *Service
}

// NewHandler creates a users handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the account endpoints onto the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id/location", h.UpdateLocation)
	r.PUT("/users/:id/availability", h.UpdateAvailability)
}

// Register handles account creation
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to register") {
		return
	}

	common.CreatedResponse(c, user)
}

// Login handles password verification
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Login(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to log in") {
		return
	}

	common.SuccessResponse(c, user)
}

// GetUser handles fetching a public profile
func (h *Handler) GetUser(c *gin.Context) {
	userID, ok := common.ParseIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), userID)
	if common.HandleServiceError(c, err, "failed to get user") {
		return
	}

	common.SuccessResponse(c, user)
}

// UpdateLocation handles moving a user's stored position
func (h *Handler) UpdateLocation(c *gin.Context) {
	userID, ok := common.ParseIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	var req models.UpdateLocationRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateLocation(c.Request.Context(), userID, *req.Latitude, *req.Longitude)
	if common.HandleServiceError(c, err, "failed to update location") {
		return
	}

	common.SuccessResponse(c, user)
}

// UpdateAvailability handles flipping a driver's availability
func (h *Handler) UpdateAvailability(c *gin.Context) {
	userID, ok := common.ParseIDParam(c, "id", "user ID")
	if !ok {
		return
	}

	var req models.UpdateAvailabilityRequest
	if !common.BindJSON(c, &req) {
		return
	}

	user, err := h.service.UpdateAvailability(c.Request.Context(), userID, *req.Availability)
	if common.HandleServiceError(c, err, "failed to update availability") {
		return
	}

	common.SuccessResponse(c, user)
}
