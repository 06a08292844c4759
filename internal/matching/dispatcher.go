package matching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
	"github.com/cityhail/dispatch/pkg/websocket"
)

// placedOffer carries the facts of a committed offer out of the transaction
// so notifications and events go out only after commit.
type placedOffer struct {
	ride       *models.Ride
	driverID   int64
	attempt    int
	distanceKm float64
	radiusKm   float64
	offeredAt  time.Time
	expiresAt  time.Time
}

// dispatchPass offers the oldest waiting ride to the nearest eligible
// driver. One ride per pass; rides with nobody in radius are left untouched
// and retried on the next tick with a wider radius.
func (e *Engine) dispatchPass(ctx context.Context) {
	dispatchPasses.Inc()

	var offer *placedOffer
	err := e.store.WithTx(ctx, func(tx Tx) error {
		ride, err := tx.OldestUnofferedRide(ctx)
		if err != nil {
			return err
		}
		if ride == nil {
			return nil
		}

		candidates, err := tx.EligibleDrivers(ctx, ride.DeclinedDriverIDs)
		if err != nil {
			return err
		}

		radius := e.searchRadius(ride.OfferAttempts)
		nearest, distance, ok := Nearest(ride.StartLat, ride.StartLng, radius, candidates)
		if !ok {
			selectorMisses.Inc()
			logger.Debug("no driver in search radius",
				zap.Int64("ride_id", ride.ID),
				zap.Float64("radius_km", radius),
				zap.Int("attempts", ride.OfferAttempts),
			)
			return nil
		}

		// Re-check under the driver's row lock: the snapshot above is not
		// locked and the driver may have flipped offline since.
		driver, err := tx.DriverForUpdate(ctx, nearest.ID)
		if err != nil {
			return err
		}
		if driver == nil || !driver.IsDriver || !driver.Availability || !driver.HasLocation() {
			return nil
		}

		offeredAt := e.now()
		expiresAt := offeredAt.Add(e.cfg.OfferTimeout)
		if err := tx.MarkOffering(ctx, ride.ID, driver.ID, offeredAt, expiresAt); err != nil {
			return err
		}

		offer = &placedOffer{
			ride:       ride,
			driverID:   driver.ID,
			attempt:    ride.OfferAttempts + 1,
			distanceKm: distance,
			radiusKm:   radius,
			offeredAt:  offeredAt,
			expiresAt:  expiresAt,
		}
		return nil
	})
	if err != nil {
		logger.Error("dispatch pass failed", zap.Error(err))
		return
	}
	if offer == nil {
		return
	}

	offersPlaced.Inc()
	logger.Info("offer placed",
		zap.Int64("ride_id", offer.ride.ID),
		zap.Int64("driver_id", offer.driverID),
		zap.Int("attempt", offer.attempt),
		zap.Float64("distance_km", offer.distanceKm),
		zap.Float64("radius_km", offer.radiusKm),
	)

	e.sendToUser(offer.driverID, offerMessage(
		offer.ride, offer.attempt, offer.distanceKm, offer.radiusKm, offer.expiresAt, e.now(),
	))

	e.publish(ctx, eventbus.SubjectRideOffered, eventbus.RideOfferedData{
		RideID:     offer.ride.ID,
		RiderID:    offer.ride.RiderID,
		DriverID:   offer.driverID,
		Attempt:    offer.attempt,
		DistanceKm: offer.distanceKm,
		RadiusKm:   offer.radiusKm,
		OfferedAt:  offer.offeredAt,
		ExpiresAt:  offer.expiresAt,
	})
}

func (e *Engine) sendToUser(userID int64, msg *websocket.Message) {
	if e.bus == nil {
		return
	}
	e.bus.SendToUser(userID, msg)
}
