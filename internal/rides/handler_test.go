package rides

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/models"
)

type stubActions struct {
	ride *models.Ride
	err  error

	lastRideID   int64
	lastDriverID int64
	lastOp       string
}

func (s *stubActions) Accept(_ context.Context, rideID, driverID int64) (*models.Ride, error) {
	s.lastOp, s.lastRideID, s.lastDriverID = "accept", rideID, driverID
	return s.ride, s.err
}

func (s *stubActions) Decline(_ context.Context, rideID, driverID int64) (*models.Ride, error) {
	s.lastOp, s.lastRideID, s.lastDriverID = "decline", rideID, driverID
	return s.ride, s.err
}

func setupRouter(store RideStore, actions DriverActions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewService(store, nil), actions).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, common.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestRequestRideEndpoint(t *testing.T) {
	store := &mockStore{}
	store.On("GetUser", mock.Anything, int64(10)).Return(rider(10), nil)
	store.On("CountActiveRides", mock.Anything, int64(10)).Return(0, nil)
	store.On("CreateRide", mock.Anything, mock.Anything).Return(rideInStatus(1, models.RideStatusRequested), nil)

	r := setupRouter(store, &stubActions{})
	w, resp := doJSON(t, r, http.MethodPost, "/ride/request", validRequest())

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
}

func TestRequestRideValidation(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})

	// Missing pickup coordinates must fail binding before the service runs.
	w, resp := doJSON(t, r, http.MethodPost, "/ride/request", map[string]interface{}{
		"source_location": "Ala-Too Square",
		"dest_location":   "Osh Bazaar",
		"user_id":         10,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestRequestRideOutOfRangeCoordinates(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})

	w, _ := doJSON(t, r, http.MethodPost, "/ride/request", map[string]interface{}{
		"source_location": "Ala-Too Square",
		"dest_location":   "Osh Bazaar",
		"user_id":         10,
		"pickup_lat":      95.0,
		"pickup_lng":      74.5698,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRideEndpointNotFound(t *testing.T) {
	store := &mockStore{}
	store.On("GetRideWithUsers", mock.Anything, int64(42)).Return(nil, nil)

	r := setupRouter(store, &stubActions{})
	w, resp := doJSON(t, r, http.MethodGet, "/rides/42", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, common.CodeNotFound, resp.Error.ErrorCode)
}

func TestGetRideEndpointBadID(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})
	w, _ := doJSON(t, r, http.MethodGet, "/rides/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptRideEndpoint(t *testing.T) {
	actions := &stubActions{ride: rideInStatus(1, models.RideStatusAccepted)}
	r := setupRouter(&mockStore{}, actions)

	w, resp := doJSON(t, r, http.MethodPut, "/rides/1/accept", models.DriverActionRequest{DriverID: 5})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "accept", actions.lastOp)
	assert.Equal(t, int64(1), actions.lastRideID)
	assert.Equal(t, int64(5), actions.lastDriverID)
}

func TestAcceptRideEndpointNotOffered(t *testing.T) {
	actions := &stubActions{err: common.NewNotOfferedError("this ride is not offered to you")}
	r := setupRouter(&mockStore{}, actions)

	w, resp := doJSON(t, r, http.MethodPut, "/rides/1/accept", models.DriverActionRequest{DriverID: 5})

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, common.CodeNotOfferedToYou, resp.Error.ErrorCode)
}

func TestDeclineRideEndpoint(t *testing.T) {
	actions := &stubActions{ride: rideInStatus(1, models.RideStatusRequested)}
	r := setupRouter(&mockStore{}, actions)

	w, _ := doJSON(t, r, http.MethodPut, "/rides/1/decline", models.DriverActionRequest{DriverID: 5})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "decline", actions.lastOp)
}

func TestDriverActionRequiresDriverID(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})
	w, _ := doJSON(t, r, http.MethodPut, "/rides/1/accept", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteRideEndpointFare(t *testing.T) {
	store := &mockStore{}
	store.On("TransitionRide", mock.Anything, int64(1)).Return(rideInStatus(1, models.RideStatusInProgress), nil)

	r := setupRouter(store, &stubActions{})
	w, resp := doJSON(t, r, http.MethodPut, "/rides/1/complete?fare=250.5", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.Len(t, store.mutations, 1)
	require.NotNil(t, store.mutations[0].Fare)
	assert.Equal(t, 250.5, *store.mutations[0].Fare)
}

func TestCompleteRideEndpointInvalidFare(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})
	w, _ := doJSON(t, r, http.MethodPut, "/rides/1/complete?fare=free", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRidesEndpoint(t *testing.T) {
	store := &mockStore{}
	status := models.RideStatusCompleted
	store.On("ListRides", mock.Anything, models.RideFilter{Status: &status, RiderID: 10}, 20, 0).
		Return([]*models.Ride{rideInStatus(1, status)}, int64(1), nil)

	r := setupRouter(store, &stubActions{})
	w, resp := doJSON(t, r, http.MethodGet, "/rides?status=completed&rider_id=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
}

func TestListRidesEndpointBadStatus(t *testing.T) {
	r := setupRouter(&mockStore{}, &stubActions{})
	w, _ := doJSON(t, r, http.MethodGet, "/rides?status=flying", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
