package eventbus

import "time"

// RideRequestedData is emitted when a rider requests a ride. The matching
// engine picks the ride up from the database, so this carries context for
// downstream consumers only.
type RideRequestedData struct {
	RideID          int64     `json:"ride_id"`
	RiderID         int64     `json:"rider_id"`
	PickupLatitude  float64   `json:"pickup_latitude"`
	PickupLongitude float64   `json:"pickup_longitude"`
	PickupAddress   string    `json:"pickup_address"`
	DropoffAddress  string    `json:"dropoff_address"`
	RequestedAt     time.Time `json:"requested_at"`
}

// RideOfferedData is emitted when the engine offers a ride to a driver.
type RideOfferedData struct {
	RideID     int64     `json:"ride_id"`
	RiderID    int64     `json:"rider_id"`
	DriverID   int64     `json:"driver_id"`
	Attempt    int       `json:"attempt"`
	DistanceKm float64   `json:"distance_km"`
	RadiusKm   float64   `json:"radius_km"`
	ExpiresAt  time.Time `json:"expires_at"`
	OfferedAt  time.Time `json:"offered_at"`
}

// RideAcceptedData is emitted when a driver accepts an offer.
type RideAcceptedData struct {
	RideID     int64     `json:"ride_id"`
	RiderID    int64     `json:"rider_id"`
	DriverID   int64     `json:"driver_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// RideStartedData is emitted when a ride begins.
type RideStartedData struct {
	RideID    int64     `json:"ride_id"`
	RiderID   int64     `json:"rider_id"`
	DriverID  int64     `json:"driver_id"`
	StartedAt time.Time `json:"started_at"`
}

// RideCompletedData is emitted when a ride finishes.
type RideCompletedData struct {
	RideID      int64     `json:"ride_id"`
	RiderID     int64     `json:"rider_id"`
	DriverID    int64     `json:"driver_id"`
	Fare        float64   `json:"fare"`
	CompletedAt time.Time `json:"completed_at"`
}

// RideCancelledData is emitted when a ride is cancelled.
type RideCancelledData struct {
	RideID      int64     `json:"ride_id"`
	RiderID     int64     `json:"rider_id"`
	DriverID    int64     `json:"driver_id"`    // zero if not yet assigned
	CancelledBy string    `json:"cancelled_by"` // "rider" or "system"
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// DriverLocationUpdatedData is emitted on driver location changes.
type DriverLocationUpdatedData struct {
	DriverID  int64     `json:"driver_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}
