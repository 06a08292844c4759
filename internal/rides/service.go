package rides

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/tracing"
)

// RideStore is the persistence surface the service needs.
type RideStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CountActiveRides(ctx context.Context, riderID int64) (int, error)
	CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error)
	GetRideWithUsers(ctx context.Context, rideID int64) (*models.RideResponse, error)
	ListRides(ctx context.Context, filter models.RideFilter, limit, offset int) ([]*models.Ride, int64, error)
	TransitionRide(ctx context.Context, rideID int64, apply func(ride *models.Ride) (*RideMutation, error)) (*models.Ride, error)
}

// EventPublisher publishes ride lifecycle events. Nil when disabled.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Service handles ride intake, reads and rider-side lifecycle transitions.
// Driver accept/decline live on the matching engine, which owns the offer
// state machine.
type Service struct {
	store  RideStore
	events EventPublisher
}

// NewService creates a rides service. events may be nil.
func NewService(store RideStore, events EventPublisher) *Service {
	return &Service{store: store, events: events}
}

// CreateRide validates and persists a new ride request. The dispatch worker
// picks it up asynchronously; nothing is matched inline.
func (s *Service) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	ctx, span := tracing.StartSpan(ctx, "rides-service", "CreateRide")
	defer span.End()

	rider, err := s.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if rider == nil {
		return nil, common.NewNotFoundError("rider not found", nil)
	}
	if rider.IsDriver {
		return nil, common.NewValidationError("drivers cannot request rides")
	}

	active, err := s.store.CountActiveRides(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, common.NewConflictError("you already have an active ride")
	}

	ride, err := s.store.CreateRide(ctx, req)
	if err != nil {
		return nil, err
	}

	tracing.AddSpanAttributes(ctx, tracing.RideAttributes(ride.ID, ride.RiderID, 0)...)
	logger.InfoContext(ctx, "ride requested",
		zap.Int64("ride_id", ride.ID),
		zap.Int64("rider_id", ride.RiderID),
	)

	s.publish(ctx, eventbus.SubjectRideRequested, eventbus.RideRequestedData{
		RideID:          ride.ID,
		RiderID:         ride.RiderID,
		PickupLatitude:  ride.StartLat,
		PickupLongitude: ride.StartLng,
		PickupAddress:   ride.StartLocation,
		DropoffAddress:  ride.EndLocation,
		RequestedAt:     ride.CreatedAt,
	})
	return ride, nil
}

// GetRide returns a ride with rider and driver summaries.
func (s *Service) GetRide(ctx context.Context, rideID int64) (*models.RideResponse, error) {
	ride, err := s.store.GetRideWithUsers(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride == nil {
		return nil, common.NewNotFoundError("ride not found", nil)
	}
	return ride, nil
}

// ListRides returns rides matching the filter, newest first.
func (s *Service) ListRides(ctx context.Context, filter models.RideFilter, limit, offset int) ([]*models.Ride, int64, error) {
	return s.store.ListRides(ctx, filter, limit, offset)
}

// CancelRide is the rider-initiated cancel. Allowed while the ride has no
// committed driver work: requested, offering or accepted. Cancelling from
// accepted frees the driver; an offered driver is not told, their late
// accept simply fails.
func (s *Service) CancelRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	ride, err := s.store.TransitionRide(ctx, rideID, func(ride *models.Ride) (*RideMutation, error) {
		if ride == nil {
			return nil, common.NewNotFoundError("ride not found", nil)
		}
		switch ride.Status {
		case models.RideStatusRequested, models.RideStatusOffering:
			return &RideMutation{Status: models.RideStatusCancelled, SetCancelled: true, ClearOffer: true}, nil
		case models.RideStatusAccepted:
			return &RideMutation{
				Status:       models.RideStatusCancelled,
				SetCancelled: true,
				FreeDriverID: ride.DriverID,
			}, nil
		default:
			return nil, common.NewInvalidStateError("ride can no longer be cancelled")
		}
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride cancelled by rider", zap.Int64("ride_id", ride.ID))
	s.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		DriverID:    derefID(ride.DriverID),
		CancelledBy: "rider",
		CancelledAt: time.Now().UTC(),
	})
	return ride, nil
}

// StartRide moves an accepted ride to in_progress.
func (s *Service) StartRide(ctx context.Context, rideID int64) (*models.Ride, error) {
	ride, err := s.store.TransitionRide(ctx, rideID, func(ride *models.Ride) (*RideMutation, error) {
		if ride == nil {
			return nil, common.NewNotFoundError("ride not found", nil)
		}
		if ride.Status != models.RideStatusAccepted {
			return nil, common.NewInvalidStateError("only an accepted ride can be started")
		}
		return &RideMutation{Status: models.RideStatusInProgress}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride started", zap.Int64("ride_id", ride.ID))
	s.publish(ctx, eventbus.SubjectRideStarted, eventbus.RideStartedData{
		RideID:    ride.ID,
		RiderID:   ride.RiderID,
		DriverID:  derefID(ride.DriverID),
		StartedAt: time.Now().UTC(),
	})
	return ride, nil
}

// CompleteRide finishes an accepted or in-progress ride, records the fare
// when given, and puts the driver back in the candidate pool.
func (s *Service) CompleteRide(ctx context.Context, rideID int64, fare *float64) (*models.Ride, error) {
	ride, err := s.store.TransitionRide(ctx, rideID, func(ride *models.Ride) (*RideMutation, error) {
		if ride == nil {
			return nil, common.NewNotFoundError("ride not found", nil)
		}
		if ride.Status != models.RideStatusAccepted && ride.Status != models.RideStatusInProgress {
			return nil, common.NewInvalidStateError("ride is not in progress")
		}
		return &RideMutation{
			Status:       models.RideStatusCompleted,
			Fare:         fare,
			SetCompleted: true,
			FreeDriverID: ride.DriverID,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "ride completed",
		zap.Int64("ride_id", ride.ID),
		zap.Float64p("fare", ride.Fare),
	)
	s.publish(ctx, eventbus.SubjectRideCompleted, eventbus.RideCompletedData{
		RideID:      ride.ID,
		RiderID:     ride.RiderID,
		DriverID:    derefID(ride.DriverID),
		Fare:        derefFare(ride.Fare),
		CompletedAt: time.Now().UTC(),
	})
	return ride, nil
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, "rides", data)
	if err != nil {
		logger.WarnContext(ctx, "failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func derefFare(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
