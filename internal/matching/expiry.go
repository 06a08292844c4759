package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
)

// expiredOffer records a timed-out offer resolved by the expiry worker.
type expiredOffer struct {
	rideID    int64
	riderID   int64
	driverID  int64
	exhausted bool
}

// expiryPass times out offers whose window has closed. A timed-out offer is
// treated exactly like a decline: the ride reverts to requested with the
// driver recorded as declined, and the ride is cancelled when no eligible
// driver remains.
func (e *Engine) expiryPass(ctx context.Context) {
	now := e.now()
	ids, err := e.store.ExpiredOfferingRideIDs(ctx, now)
	if err != nil {
		logger.Error("expiry scan failed", zap.Error(err))
		return
	}

	for _, rideID := range ids {
		resolved, err := e.expireOffer(ctx, rideID)
		if err != nil {
			logger.Error("failed to expire offer", zap.Int64("ride_id", rideID), zap.Error(err))
			continue
		}
		if resolved == nil {
			continue
		}

		offersExpired.Inc()
		logger.Info("offer expired",
			zap.Int64("ride_id", resolved.rideID),
			zap.Int64("driver_id", resolved.driverID),
			zap.Bool("exhausted", resolved.exhausted),
		)

		e.sendToUser(resolved.driverID, offerExpiredMessage(resolved.rideID, e.now()))

		if resolved.exhausted {
			ridesCancelled.WithLabelValues(models.CancelReasonNoDrivers).Inc()
			e.sendToUser(resolved.riderID, rideCancelledMessage(
				resolved.rideID, models.CancelReasonNoDrivers,
				"No drivers are available for your ride", e.now(),
			))
			e.publish(ctx, eventbus.SubjectRideCancelled, eventbus.RideCancelledData{
				RideID:      resolved.rideID,
				RiderID:     resolved.riderID,
				CancelledBy: "system",
				Reason:      models.CancelReasonNoDrivers,
				CancelledAt: e.now(),
			})
		}
	}
}

// expireOffer re-verifies a single ride under lock and resolves its timed-out
// offer. Returns nil when the ride was resolved by someone else between the
// scan and the lock.
func (e *Engine) expireOffer(ctx context.Context, rideID int64) (*expiredOffer, error) {
	var resolved *expiredOffer
	err := e.store.WithTx(ctx, func(tx Tx) error {
		ride, err := tx.RideForUpdate(ctx, rideID)
		if err != nil {
			return err
		}
		if ride == nil || ride.Status != models.RideStatusOffering ||
			ride.ExpiresAt == nil || ride.ExpiresAt.After(e.now()) ||
			ride.OfferedToDriverID == nil {
			return nil
		}
		driverID := *ride.OfferedToDriverID

		if err := tx.RevertToRequested(ctx, ride.ID, driverID); err != nil {
			return err
		}

		exclude := appendIfAbsent(ride.DeclinedDriverIDs, driverID)
		remaining, err := tx.CountEligibleDrivers(ctx, exclude)
		if err != nil {
			return err
		}
		exhausted := remaining == 0
		if exhausted {
			if err := tx.CancelRide(ctx, ride.ID, models.CancelReasonNoDrivers); err != nil {
				return err
			}
		}

		resolved = &expiredOffer{
			rideID:    ride.ID,
			riderID:   ride.RiderID,
			driverID:  driverID,
			exhausted: exhausted,
		}
		return nil
	})
	return resolved, err
}

func appendIfAbsent(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	out := make([]int64, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}
