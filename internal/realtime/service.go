package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/redis"
	ws "github.com/cityhail/dispatch/pkg/websocket"
)

const locationCacheTTL = 5 * time.Minute

// Service wires the client-to-server WebSocket message types: ride room
// membership and in-ride driver location relay. It keeps its own small SQL
// handle for the membership point reads.
type Service struct {
	hub   *ws.Hub
	db    *sql.DB
	cache redis.ClientInterface // nil when redis is disabled
}

// NewService creates the realtime service and registers its handlers on the
// hub. cache may be nil.
func NewService(hub *ws.Hub, db *sql.DB, cache redis.ClientInterface) *Service {
	s := &Service{hub: hub, db: db, cache: cache}

	hub.RegisterHandler("join_ride", s.handleJoinRide)
	hub.RegisterHandler("leave_ride", s.handleLeaveRide)
	hub.RegisterHandler("location_update", s.handleLocationUpdate)

	return s
}

// handleJoinRide puts the client into a ride room after re-checking
// membership against the rides table: the rider, the assigned driver, and
// the currently offered driver may join.
func (s *Service) handleJoinRide(client *ws.Client, msg *ws.Message) {
	rideID := int64FromData(msg.Data, "ride_id")
	if rideID == 0 {
		s.sendError(client, "ride_id is required")
		return
	}

	member, err := s.isRideMember(rideID, client.ID)
	if err != nil {
		logger.Error("failed to check ride membership",
			zap.Int64("ride_id", rideID),
			zap.Int64("user_id", client.ID),
			zap.Error(err),
		)
		s.sendError(client, "failed to join ride")
		return
	}
	if !member {
		s.sendError(client, "not authorized for this ride")
		return
	}

	s.hub.AddClientToRide(client.ID, rideID)
	s.hub.SendToUser(client.ID, &ws.Message{
		Type:      models.PushJoinedRide,
		RideID:    rideID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"ride_id": rideID,
		},
	})
}

func (s *Service) handleLeaveRide(client *ws.Client, msg *ws.Message) {
	rideID := client.GetRide()
	if rideID == 0 {
		return
	}

	s.hub.RemoveClientFromRide(client.ID, rideID)
	s.hub.SendToUser(client.ID, &ws.Message{
		Type:      models.PushLeftRide,
		RideID:    rideID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"ride_id": rideID,
		},
	})
}

// handleLocationUpdate caches a driver's position and relays it to riders
// sharing the ride room.
func (s *Service) handleLocationUpdate(client *ws.Client, msg *ws.Message) {
	if client.Role != "driver" {
		s.sendError(client, "only drivers can send location updates")
		return
	}

	lat, latOK := msg.Data["latitude"].(float64)
	lng, lngOK := msg.Data["longitude"].(float64)
	if !latOK || !lngOK || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		s.sendError(client, "invalid location data")
		return
	}

	s.cacheLocation(client.ID, lat, lng)

	rideID := client.GetRide()
	if rideID == 0 {
		return
	}

	relay := &ws.Message{
		Type:      models.PushDriverLocation,
		RideID:    rideID,
		UserID:    client.ID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"latitude":  lat,
			"longitude": lng,
		},
	}
	for _, c := range s.hub.GetClientsInRide(rideID) {
		if c.Role == "rider" {
			s.hub.SendToUser(c.ID, relay)
		}
	}
}

// ResolveUser returns the role for a user id, or found=false for unknown ids.
func (s *Service) ResolveUser(ctx context.Context, userID int64) (role string, found bool, err error) {
	var isDriver bool
	err = s.db.QueryRowContext(ctx, `SELECT is_driver FROM users WHERE id = $1`, userID).Scan(&isDriver)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve user %d: %w", userID, err)
	}
	if isDriver {
		return "driver", true, nil
	}
	return "rider", true, nil
}

// Stats reports connection counts for the readiness payload.
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected_clients": s.hub.GetClientCount(),
		"active_rides":      s.hub.GetRideCount(),
	}
}

func (s *Service) isRideMember(rideID, userID int64) (bool, error) {
	query := `
		SELECT COUNT(*) FROM rides
		WHERE id = $1
		  AND (rider_id = $2 OR driver_id = $2 OR offered_to_driver_id = $2)`

	var count int
	if err := s.db.QueryRow(query, rideID, userID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) cacheLocation(driverID int64, lat, lng float64) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"latitude":  lat,
		"longitude": lng,
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		return
	}

	key := fmt.Sprintf("driver:location:%d", driverID)
	if err := s.cache.SetWithExpiration(context.Background(), key, string(payload), locationCacheTTL); err != nil {
		logger.Warn("failed to cache driver location",
			zap.Int64("driver_id", driverID),
			zap.Error(err),
		)
	}
}

func (s *Service) sendError(client *ws.Client, message string) {
	s.hub.SendToUser(client.ID, &ws.Message{
		Type:      models.PushError,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"message": message,
		},
	})
}

// int64FromData pulls a numeric field out of a decoded JSON payload, where
// numbers arrive as float64.
func int64FromData(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
