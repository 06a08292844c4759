package models

import "time"

// RideStatus represents the status of a ride
type RideStatus string

const (
	RideStatusRequested  RideStatus = "requested"
	RideStatusOffering   RideStatus = "offering"
	RideStatusAccepted   RideStatus = "accepted"
	RideStatusInProgress RideStatus = "in_progress"
	RideStatusCompleted  RideStatus = "completed"
	RideStatusCancelled  RideStatus = "cancelled"
)

// IsTerminal reports whether the status is absorbing: no transition ever
// leaves completed or cancelled.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Cancellation reasons recorded by system-initiated cancels. Rider cancels
// leave the reason empty.
const (
	CancelReasonNoDrivers      = "no_drivers_available"
	CancelReasonRequestTimeout = "request_timeout"
)

// Ride is the central entity. The offer fields (OfferedToDriverID,
// OfferedAt, ExpiresAt) are set exactly while status is "offering" and
// null otherwise; DeclinedDriverIDs accumulates every driver that declined
// or timed out and is never re-offered this ride.
type Ride struct {
	ID                 int64      `json:"id" db:"id"`
	RiderID            int64      `json:"rider_id" db:"rider_id"`
	DriverID           *int64     `json:"driver_id,omitempty" db:"driver_id"`
	Status             RideStatus `json:"status" db:"status"`
	StartLocation      string     `json:"start_location" db:"start_location"`
	EndLocation        string     `json:"end_location" db:"end_location"`
	StartLat           float64    `json:"start_lat" db:"start_lat"`
	StartLng           float64    `json:"start_lng" db:"start_lng"`
	EndLat             *float64   `json:"end_lat,omitempty" db:"end_lat"`
	EndLng             *float64   `json:"end_lng,omitempty" db:"end_lng"`
	OfferedToDriverID  *int64     `json:"offered_to_driver_id,omitempty" db:"offered_to_driver_id"`
	OfferedAt          *time.Time `json:"offered_at,omitempty" db:"offered_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	OfferAttempts      int        `json:"offer_attempts" db:"offer_attempts"`
	DeclinedDriverIDs  []int64    `json:"declined_driver_ids" db:"declined_driver_ids"`
	CancellationReason *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	Fare               *float64   `json:"fare,omitempty" db:"fare"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// HasDeclined reports whether the driver already declined (or timed out
// on) this ride.
func (r *Ride) HasDeclined(driverID int64) bool {
	for _, id := range r.DeclinedDriverIDs {
		if id == driverID {
			return true
		}
	}
	return false
}

// CreateRideRequest is the rider's new-request payload.
type CreateRideRequest struct {
	SourceLocation string   `json:"source_location" binding:"required"`
	DestLocation   string   `json:"dest_location" binding:"required"`
	UserID         int64    `json:"user_id" binding:"required"`
	PickupLat      *float64 `json:"pickup_lat" binding:"required,latitude"`
	PickupLng      *float64 `json:"pickup_lng" binding:"required,longitude"`
	DestLat        *float64 `json:"dest_lat,omitempty" binding:"omitempty,latitude"`
	DestLng        *float64 `json:"dest_lng,omitempty" binding:"omitempty,longitude"`
}

// DriverActionRequest is the body of the accept/decline endpoints.
type DriverActionRequest struct {
	DriverID int64 `json:"driver_id" binding:"required"`
}

// RideResponse is a ride with embedded rider/driver summaries.
type RideResponse struct {
	*Ride
	Rider  *UserSummary `json:"rider,omitempty"`
	Driver *UserSummary `json:"driver,omitempty"`
}

// RideFilter narrows ride listings.
type RideFilter struct {
	Status   *RideStatus
	RiderID  int64
	DriverID int64
}
