package matching

import (
	"time"

	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/websocket"
)

// Envelope builders for the push messages the engine emits. Payload shapes
// are part of the client contract; change them with care.

func offerMessage(ride *models.Ride, attempt int, distanceKm, radiusKm float64, expiresAt, now time.Time) *websocket.Message {
	return &websocket.Message{
		Type:      models.PushRideOfferReceived,
		RideID:    ride.ID,
		Timestamp: now,
		Data: map[string]interface{}{
			"ride": map[string]interface{}{
				"id":             ride.ID,
				"rider_id":       ride.RiderID,
				"start_location": ride.StartLocation,
				"start_lat":      ride.StartLat,
				"start_lng":      ride.StartLng,
				"end_location":   ride.EndLocation,
				"end_lat":        ride.EndLat,
				"end_lng":        ride.EndLng,
				"fare":           ride.Fare,
				"expires_at":     expiresAt.Format(time.RFC3339),
			},
			"attempt":     attempt,
			"distance_km": distanceKm,
			"radius_km":   radiusKm,
		},
	}
}

func offerExpiredMessage(rideID int64, now time.Time) *websocket.Message {
	return &websocket.Message{
		Type:      models.PushOfferExpired,
		RideID:    rideID,
		Timestamp: now,
		Data: map[string]interface{}{
			"ride_id": rideID,
			"message": "Your offer window has closed",
		},
	}
}

func driverAssignedMessage(rideID int64, driver *models.UserSummary, now time.Time) *websocket.Message {
	data := map[string]interface{}{
		"ride_id": rideID,
	}
	if driver != nil {
		data["driver_id"] = driver.ID
		data["driver_name"] = driver.Username
		data["driver_vehicle"] = driver.Vehicle
		data["driver_rating"] = driver.Rating
	}

	return &websocket.Message{
		Type:      models.PushDriverAssigned,
		RideID:    rideID,
		Timestamp: now,
		Data:      data,
	}
}

func rideCancelledMessage(rideID int64, reason, text string, now time.Time) *websocket.Message {
	return &websocket.Message{
		Type:      models.PushRideCancelled,
		RideID:    rideID,
		Timestamp: now,
		Data: map[string]interface{}{
			"ride_id": rideID,
			"reason":  reason,
			"message": text,
		},
	}
}

func requestTimeoutMessage(rideID int64, now time.Time) *websocket.Message {
	return &websocket.Message{
		Type:      models.PushRequestTimeout,
		RideID:    rideID,
		Timestamp: now,
		Data: map[string]interface{}{
			"ride_id": rideID,
			"message": "No driver accepted your request in time",
		},
	}
}
