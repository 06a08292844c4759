package matching

import (
	"context"
	"time"

	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/websocket"
)

// Store is the engine's view of ride persistence.
type Store interface {
	// WithTx runs fn inside a transaction, committing on nil error.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Non-locking scans used by the periodic workers to find work before
	// re-verifying each candidate under its own transaction.
	ExpiredOfferingRideIDs(ctx context.Context, now time.Time) ([]int64, error)
	StaleRequestedRideIDs(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// Tx exposes the transaction-scoped row operations the engine needs.
type Tx interface {
	// OldestUnofferedRide locks the oldest requested ride with no live offer,
	// skipping rows locked by concurrent passes. Returns (nil, nil) when no
	// row qualifies.
	OldestUnofferedRide(ctx context.Context) (*models.Ride, error)

	// RideForUpdate locks a ride row. Returns (nil, nil) when absent.
	RideForUpdate(ctx context.Context, rideID int64) (*models.Ride, error)

	// EligibleDrivers returns the candidate snapshot: available drivers with
	// a known location, minus excluded ids, minus drivers holding a live
	// offer. Radius filtering happens in the selector, not here.
	EligibleDrivers(ctx context.Context, exclude []int64) ([]Candidate, error)

	// CountEligibleDrivers applies the same predicate without fetching rows.
	CountEligibleDrivers(ctx context.Context, exclude []int64) (int, error)

	// DriverForUpdate locks a driver row. Returns (nil, nil) when absent.
	DriverForUpdate(ctx context.Context, driverID int64) (*models.User, error)

	MarkOffering(ctx context.Context, rideID, driverID int64, offeredAt, expiresAt time.Time) error
	RevertToRequested(ctx context.Context, rideID, declinedDriverID int64) error
	AssignDriver(ctx context.Context, rideID, driverID int64) error
	SetDriverAvailability(ctx context.Context, driverID int64, available bool) error
	CancelRide(ctx context.Context, rideID int64, reason string) error
}

// Bus is the narrow notification surface the engine needs from the
// WebSocket hub. Delivery is fire-and-forget.
type Bus interface {
	SendToUser(userID int64, msg *websocket.Message)
}

// EventPublisher publishes lifecycle events. May be backed by NATS or left
// nil when the event bus is disabled.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}
