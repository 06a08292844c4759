package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
)

// cleanupPass cancels requested rides that have waited past the stale
// threshold without ever being matched. Rides mid-offer are left to the
// expiry worker.
func (e *Engine) cleanupPass(ctx context.Context) {
	cutoff := e.now().Add(-e.cfg.StaleThreshold)
	ids, err := e.store.StaleRequestedRideIDs(ctx, cutoff)
	if err != nil {
		logger.Error("cleanup scan failed", zap.Error(err))
		return
	}

	for _, rideID := range ids {
		riderID, cancelled, err := e.cancelStaleRide(ctx, rideID)
		if err != nil {
			logger.Error("failed to cancel stale ride", zap.Int64("ride_id", rideID), zap.Error(err))
			continue
		}
		if !cancelled {
			continue
		}

		ridesCancelled.WithLabelValues(models.CancelReasonRequestTimeout).Inc()
		logger.Info("stale ride cancelled", zap.Int64("ride_id", rideID), zap.Int64("rider_id", riderID))

		e.sendToUser(riderID, requestTimeoutMessage(rideID, e.now()))
		e.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
			RideID:      rideID,
			RiderID:     riderID,
			CancelledBy: "system",
			Reason:      models.CancelReasonRequestTimeout,
			CancelledAt: e.now(),
		})
	}
}

func (e *Engine) cancelStaleRide(ctx context.Context, rideID int64) (riderID int64, cancelled bool, err error) {
	cutoff := e.now().Add(-e.cfg.StaleThreshold)
	err = e.store.WithTx(ctx, func(tx Tx) error {
		ride, err := tx.RideForUpdate(ctx, rideID)
		if err != nil {
			return err
		}
		if ride == nil || ride.Status != models.RideStatusRequested || !ride.CreatedAt.Before(cutoff) {
			return nil
		}
		if err := tx.CancelRide(ctx, ride.ID, models.CancelReasonRequestTimeout); err != nil {
			return err
		}
		riderID = ride.RiderID
		cancelled = true
		return nil
	})
	return riderID, cancelled, err
}
