package models

// Push envelope types delivered over the per-user WebSocket channel.
// Clients branch on these discriminators; payloads are flat JSON objects.
const (
	PushRideOfferReceived = "ride_offer_received"
	PushOfferExpired      = "offer_expired"
	PushDriverAssigned    = "driver_assigned"
	PushRideCancelled     = "ride_cancelled"
	PushRequestTimeout    = "request_timeout"

	// In-ride location channel types.
	PushDriverLocation = "driver_location"
	PushJoinedRide     = "joined_ride"
	PushLeftRide       = "left_ride"
	PushError          = "error"
)
