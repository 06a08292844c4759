package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/models"
)

func assertAppError(t *testing.T, err error, wantCode string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*common.AppError)
	require.True(t, ok, "expected *common.AppError, got %T", err)
	assert.Equal(t, wantCode, appErr.ErrorCode)
}

func TestAcceptAssignsDriver(t *testing.T) {
	ride := offeringRide(1, 10, 5, testNow.Add(10*time.Second))
	vehicle := "Toyota Camry"
	driver := availableDriver(5, 42.88, 74.58)
	driver.Vehicle = &vehicle
	tx := &fakeTx{
		rides:   map[int64]*models.Ride{1: ride},
		drivers: map[int64]*models.User{5: driver},
	}
	bus := &fakeBus{}
	e := newTestEngine(&fakeStore{tx: tx}, bus)

	got, err := e.Accept(context.Background(), 1, 5)

	require.NoError(t, err)
	assert.Equal(t, models.RideStatusAccepted, got.Status)
	require.NotNil(t, got.DriverID)
	assert.Equal(t, int64(5), *got.DriverID)
	assert.Nil(t, got.OfferedToDriverID)
	assert.Nil(t, got.ExpiresAt)

	require.Len(t, tx.assigns, 1)
	assert.Equal(t, revertCall{rideID: 1, driverID: 5}, tx.assigns[0])
	require.Len(t, tx.availability, 1)
	assert.Equal(t, availCall{driverID: 5, available: false}, tx.availability[0])

	msgs := bus.messagesTo(10)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PushDriverAssigned, msgs[0].Type)
	assert.Equal(t, int64(1), msgs[0].Data["ride_id"])
	assert.Equal(t, int64(5), msgs[0].Data["driver_id"])
	assert.Equal(t, "driver", msgs[0].Data["driver_name"])
	assert.Equal(t, &vehicle, msgs[0].Data["driver_vehicle"])
	assert.Contains(t, msgs[0].Data, "driver_rating")
}

func TestAcceptGuards(t *testing.T) {
	tests := []struct {
		name     string
		ride     *models.Ride
		driverID int64
		wantCode string
	}{
		{
			name:     "ride not found",
			ride:     nil,
			driverID: 5,
			wantCode: common.CodeNotFound,
		},
		{
			name:     "ride not offering",
			ride:     requestedRide(1, 10),
			driverID: 5,
			wantCode: common.CodeInvalidState,
		},
		{
			name:     "offered to another driver",
			ride:     offeringRide(1, 10, 7, testNow.Add(10*time.Second)),
			driverID: 5,
			wantCode: common.CodeNotOfferedToYou,
		},
		{
			name:     "offer expired",
			ride:     offeringRide(1, 10, 5, testNow.Add(-time.Second)),
			driverID: 5,
			wantCode: common.CodeExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &fakeTx{rides: map[int64]*models.Ride{}}
			if tt.ride != nil {
				tx.rides[tt.ride.ID] = tt.ride
			}
			bus := &fakeBus{}
			e := newTestEngine(&fakeStore{tx: tx}, bus)

			_, err := e.Accept(context.Background(), 1, tt.driverID)

			assertAppError(t, err, tt.wantCode)
			assert.Empty(t, tx.assigns)
			assert.Empty(t, tx.availability)
			assert.Empty(t, bus.sent)
		})
	}
}

func TestAcceptExpiredLeavesOfferForExpiryWorker(t *testing.T) {
	ride := offeringRide(1, 10, 5, testNow.Add(-time.Second))
	tx := &fakeTx{rides: map[int64]*models.Ride{1: ride}}
	e := newTestEngine(&fakeStore{tx: tx}, &fakeBus{})

	_, err := e.Accept(context.Background(), 1, 5)

	assertAppError(t, err, common.CodeExpired)
	assert.Empty(t, tx.reverts, "a late accept must not resolve the offer itself")
	assert.Empty(t, tx.cancels)
}

func TestDeclineRevertsRide(t *testing.T) {
	ride := offeringRide(1, 10, 5, testNow.Add(10*time.Second))
	tx := &fakeTx{
		rides:         map[int64]*models.Ride{1: ride},
		eligibleCount: 3,
	}
	bus := &fakeBus{}
	e := newTestEngine(&fakeStore{tx: tx}, bus)

	got, err := e.Decline(context.Background(), 1, 5)

	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, got.Status)
	assert.Nil(t, got.OfferedToDriverID)
	assert.Contains(t, got.DeclinedDriverIDs, int64(5))

	require.Len(t, tx.reverts, 1)
	assert.Equal(t, revertCall{rideID: 1, driverID: 5}, tx.reverts[0])
	assert.Empty(t, tx.cancels)
	assert.Empty(t, bus.sent, "a plain decline notifies nobody")
}

func TestDeclineAfterExpiryStillCounts(t *testing.T) {
	// A decline that lands after the window closed behaves like any other
	// decline as long as the expiry worker has not resolved the offer yet.
	ride := offeringRide(1, 10, 5, testNow.Add(-time.Second))
	tx := &fakeTx{
		rides:         map[int64]*models.Ride{1: ride},
		eligibleCount: 1,
	}
	e := newTestEngine(&fakeStore{tx: tx}, &fakeBus{})

	got, err := e.Decline(context.Background(), 1, 5)

	require.NoError(t, err)
	assert.Equal(t, models.RideStatusRequested, got.Status)
	require.Len(t, tx.reverts, 1)
}

func TestDeclineCancelsWhenNoDriversRemain(t *testing.T) {
	ride := offeringRide(1, 10, 5, testNow.Add(10*time.Second))
	ride.DeclinedDriverIDs = []int64{4}
	tx := &fakeTx{
		rides:         map[int64]*models.Ride{1: ride},
		eligibleCount: 0,
	}
	bus := &fakeBus{}
	e := newTestEngine(&fakeStore{tx: tx}, bus)

	got, err := e.Decline(context.Background(), 1, 5)

	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, models.CancelReasonNoDrivers, *got.CancellationReason)
	assert.Equal(t, []int64{4, 5}, tx.lastCountExclude)

	require.Len(t, tx.cancels, 1)
	assert.Equal(t, cancelCall{rideID: 1, reason: models.CancelReasonNoDrivers}, tx.cancels[0])

	riderMsgs := bus.messagesTo(10)
	require.Len(t, riderMsgs, 1)
	assert.Equal(t, models.PushRideCancelled, riderMsgs[0].Type)
}

func TestDeclineGuards(t *testing.T) {
	tests := []struct {
		name     string
		ride     *models.Ride
		wantCode string
	}{
		{
			name:     "ride not found",
			ride:     nil,
			wantCode: common.CodeNotFound,
		},
		{
			name:     "ride not offering",
			ride:     requestedRide(1, 10),
			wantCode: common.CodeInvalidState,
		},
		{
			name:     "offered to another driver",
			ride:     offeringRide(1, 10, 7, testNow.Add(10*time.Second)),
			wantCode: common.CodeNotOfferedToYou,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &fakeTx{rides: map[int64]*models.Ride{}}
			if tt.ride != nil {
				tx.rides[tt.ride.ID] = tt.ride
			}
			e := newTestEngine(&fakeStore{tx: tx}, &fakeBus{})

			_, err := e.Decline(context.Background(), 1, 5)

			assertAppError(t, err, tt.wantCode)
			assert.Empty(t, tx.reverts)
			assert.Empty(t, tx.cancels)
		})
	}
}
