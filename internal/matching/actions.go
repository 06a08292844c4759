package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
)

// Accept assigns the ride to the driver holding its live offer. Guards run
// in a fixed order so a driver with multiple problems always sees the same
// error: missing ride, then wrong status, then wrong driver, then expiry.
// An expired offer is left in place for the expiry worker to resolve.
func (e *Engine) Accept(ctx context.Context, rideID, driverID int64) (*models.Ride, error) {
	var (
		ride   *models.Ride
		driver *models.User
	)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.RideForUpdate(ctx, rideID)
		if err != nil {
			return err
		}
		if ride == nil {
			return common.NewNotFoundError("ride not found", nil)
		}
		if ride.Status != models.RideStatusOffering {
			return common.NewInvalidStateError("ride is not awaiting a driver response")
		}
		if ride.OfferedToDriverID == nil || *ride.OfferedToDriverID != driverID {
			return common.NewNotOfferedError("this ride is not offered to you")
		}
		if ride.ExpiresAt != nil && ride.ExpiresAt.Before(e.now()) {
			return common.NewExpiredError("the offer has expired")
		}

		driver, err = tx.DriverForUpdate(ctx, driverID)
		if err != nil {
			return err
		}

		if err := tx.AssignDriver(ctx, ride.ID, driverID); err != nil {
			return err
		}
		if err := tx.SetDriverAvailability(ctx, driverID, false); err != nil {
			return err
		}

		ride.Status = models.RideStatusAccepted
		ride.DriverID = &driverID
		ride.OfferedToDriverID = nil
		ride.OfferedAt = nil
		ride.ExpiresAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	offersAccepted.Inc()
	logger.Info("offer accepted",
		zap.Int64("ride_id", ride.ID),
		zap.Int64("driver_id", driverID),
		zap.Int("attempts", ride.OfferAttempts),
	)

	e.sendToUser(ride.RiderID, driverAssignedMessage(ride.ID, driver.Summary(), e.now()))
	e.publish(ctx, eventbus.SubjectRideAccepted, eventbus.RideAcceptedData{
		RideID:     ride.ID,
		RiderID:    ride.RiderID,
		DriverID:   driverID,
		AcceptedAt: e.now(),
	})

	return ride, nil
}

// Decline releases the driver's offer, records the refusal, and cancels the
// ride when no eligible driver remains. The guards mirror Accept minus the
// expiry check: a late decline and a timeout resolve the same way.
func (e *Engine) Decline(ctx context.Context, rideID, driverID int64) (*models.Ride, error) {
	var (
		ride      *models.Ride
		exhausted bool
	)
	err := e.store.WithTx(ctx, func(tx Tx) error {
		var err error
		ride, err = tx.RideForUpdate(ctx, rideID)
		if err != nil {
			return err
		}
		if ride == nil {
			return common.NewNotFoundError("ride not found", nil)
		}
		if ride.Status != models.RideStatusOffering {
			return common.NewInvalidStateError("ride is not awaiting a driver response")
		}
		if ride.OfferedToDriverID == nil || *ride.OfferedToDriverID != driverID {
			return common.NewNotOfferedError("this ride is not offered to you")
		}

		if err := tx.RevertToRequested(ctx, ride.ID, driverID); err != nil {
			return err
		}

		exclude := appendIfAbsent(ride.DeclinedDriverIDs, driverID)
		remaining, err := tx.CountEligibleDrivers(ctx, exclude)
		if err != nil {
			return err
		}
		exhausted = remaining == 0
		if exhausted {
			if err := tx.CancelRide(ctx, ride.ID, models.CancelReasonNoDrivers); err != nil {
				return err
			}
		}

		if exhausted {
			ride.Status = models.RideStatusCancelled
			reason := models.CancelReasonNoDrivers
			ride.CancellationReason = &reason
		} else {
			ride.Status = models.RideStatusRequested
		}
		ride.OfferedToDriverID = nil
		ride.OfferedAt = nil
		ride.ExpiresAt = nil
		ride.DeclinedDriverIDs = exclude
		return nil
	})
	if err != nil {
		return nil, err
	}

	offersDeclined.Inc()
	logger.Info("offer declined",
		zap.Int64("ride_id", ride.ID),
		zap.Int64("driver_id", driverID),
		zap.Bool("exhausted", exhausted),
	)

	if exhausted {
		ridesCancelled.WithLabelValues(models.CancelReasonNoDrivers).Inc()
		e.sendToUser(ride.RiderID, rideCancelledMessage(
			ride.ID, models.CancelReasonNoDrivers,
			"No drivers are available for your ride", e.now(),
		))
		e.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
			RideID:      ride.ID,
			RiderID:     ride.RiderID,
			DriverID:    driverID,
			CancelledBy: "system",
			Reason:      models.CancelReasonNoDrivers,
			CancelledAt: e.now(),
		})
	}

	return ride, nil
}
