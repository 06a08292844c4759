package rides

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/pagination"
)

// DriverActions is the slice of the matching engine the handler needs for
// offer responses.
type DriverActions interface {
	Accept(ctx context.Context, rideID, driverID int64) (*models.Ride, error)
	Decline(ctx context.Context, rideID, driverID int64) (*models.Ride, error)
}

// Handler handles HTTP requests for rides
type Handler struct {
	service *Service
	actions DriverActions
}

// NewHandler creates a rides handler.
func NewHandler(service *Service, actions DriverActions) *Handler {
	return &Handler{service: service, actions: actions}
}

// RegisterRoutes wires the ride endpoints onto the router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/ride/request", h.RequestRide)
	r.GET("/rides", h.ListRides)
	r.GET("/rides/:id", h.GetRide)
	r.PUT("/rides/:id/accept", h.AcceptRide)
	r.PUT("/rides/:id/decline", h.DeclineRide)
	r.PUT("/rides/:id/cancel", h.CancelRide)
	r.PUT("/rides/:id/start", h.StartRide)
	r.PUT("/rides/:id/complete", h.CompleteRide)
}

// RequestRide handles creating a new ride request
func (h *Handler) RequestRide(c *gin.Context) {
	var req models.CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), &req)
	if common.HandleServiceError(c, err, "failed to request ride") {
		return
	}

	common.CreatedResponse(c, ride)
}

// GetRide handles getting a ride by ID
func (h *Handler) GetRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// ListRides handles listing rides with optional status/rider/driver filters.
func (h *Handler) ListRides(c *gin.Context) {
	var filter models.RideFilter

	if raw := c.Query("status"); raw != "" {
		status := models.RideStatus(raw)
		switch status {
		case models.RideStatusRequested, models.RideStatusOffering,
			models.RideStatusAccepted, models.RideStatusInProgress,
			models.RideStatusCompleted, models.RideStatusCancelled:
			filter.Status = &status
		default:
			common.ErrorResponse(c, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	riderID, ok := common.ParseIDQuery(c, "rider_id", "rider ID")
	if !ok {
		return
	}
	filter.RiderID = riderID

	driverID, ok := common.ParseIDQuery(c, "driver_id", "driver ID")
	if !ok {
		return
	}
	filter.DriverID = driverID

	params := pagination.ParseParams(c)
	rides, total, err := h.service.ListRides(c.Request.Context(), filter, params.Limit, params.Offset)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, rides, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// AcceptRide handles a driver accepting an offered ride.
func (h *Handler) AcceptRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.DriverActionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.actions.Accept(c.Request.Context(), rideID, req.DriverID)
	if common.HandleServiceError(c, err, "failed to accept ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// DeclineRide handles a driver declining an offered ride.
func (h *Handler) DeclineRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.DriverActionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.actions.Decline(c.Request.Context(), rideID, req.DriverID)
	if common.HandleServiceError(c, err, "failed to decline ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// CancelRide handles the rider cancelling their ride.
func (h *Handler) CancelRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to cancel ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// StartRide moves an accepted ride into progress.
func (h *Handler) StartRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.StartRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to start ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// CompleteRide finishes a ride, optionally recording the fare from the
// `fare` query parameter.
func (h *Handler) CompleteRide(c *gin.Context) {
	rideID, ok := common.ParseIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var fare *float64
	if raw := c.Query("fare"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			common.ErrorResponse(c, http.StatusBadRequest, "invalid fare")
			return
		}
		fare = &parsed
	}

	ride, err := h.service.CompleteRide(c.Request.Context(), rideID, fare)
	if common.HandleServiceError(c, err, "failed to complete ride") {
		return
	}

	common.SuccessResponse(c, ride)
}
