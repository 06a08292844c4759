package realtime

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/cityhail/dispatch/pkg/websocket"
)

func setupRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := ws.NewHub()
	svc := NewService(hub, db, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc, hub).RegisterRoutes(r)
	return r, mock
}

func TestConnectUnknownUser(t *testing.T) {
	r, mock := setupRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_driver FROM users WHERE id = $1`)).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"is_driver"}))

	req := httptest.NewRequest(http.MethodGet, "/ws/99", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConnectInvalidID(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ws/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConnectRejectsPlainHTTP(t *testing.T) {
	// A known user without the upgrade headers must fail the handshake, not
	// the lookup.
	r, mock := setupRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT is_driver FROM users WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"is_driver"}).AddRow(true))

	req := httptest.NewRequest(http.MethodGet, "/ws/5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
