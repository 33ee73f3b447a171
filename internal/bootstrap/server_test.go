package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/Domenick1991/airreservations/internal/repository/repotest"
	"github.com/Domenick1991/airreservations/internal/service/booking"
	"github.com/Domenick1991/airreservations/internal/service/flights"
	"github.com/Domenick1991/airreservations/internal/service/inventory"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/Domenick1991/airreservations/internal/service/pnr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	router *gin.Engine
	tokens *auth.TokenService
}

func newTestApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.NewStore(t)
	ledger := inventory.NewLedger()
	tokens := auth.NewTokenService("test-secret", "airreservations", time.Hour)

	svc := Services{
		Flights:    flights.NewFlightService(store, nil),
		Bookings:   booking.NewBookingService(store, ledger, pnr.NewGenerator()),
		Passengers: passengers.NewPassengerService(store, ledger),
		Tokens:     tokens,
		Checks: map[string]func(context.Context) error{
			"database": store.Ping,
		},
	}
	return &testApp{router: NewRouter(cfg, svc, logger.Discard()), tokens: tokens}
}

func (a *testApp) do(t *testing.T, method, path string, actor *domain.Actor, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := a.tokens.Issue(*actor)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

var (
	admin    = domain.Actor{UserID: 1, Role: domain.RoleAdmin}
	customer = domain.Actor{UserID: 42, Role: domain.RoleCustomer}
	stranger = domain.Actor{UserID: 43, Role: domain.RoleCustomer}
)

func TestRouter_Healthz(t *testing.T) {
	app := newTestApp(t, &config.Config{})

	w := app.do(t, http.MethodGet, "/healthz", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestHealthHandler_Unavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/healthz", healthHandler(map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("dial tcp: connection refused") },
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_Auth(t *testing.T) {
	app := newTestApp(t, &config.Config{})

	w := app.do(t, http.MethodGet, "/api/bookings", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_AUTH_HEADER", decode(t, w)["code"])

	w = app.do(t, http.MethodPost, "/api/admin/flights", &customer, `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, "/api/flights/search", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Swagger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bookings.swagger.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"swagger":"2.0"}`), 0o600))
	app := newTestApp(t, &config.Config{HTTP: config.HTTPConfig{SwaggerFile: file}})

	w := app.do(t, http.MethodGet, swaggerPath, nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

// End to end: admin publishes a flight, a customer books two seats, edits a
// fare, drops a passenger and cancels.
func TestRouter_BookingLifecycle(t *testing.T) {
	app := newTestApp(t, &config.Config{})

	w := app.do(t, http.MethodPost, "/api/admin/flights", &admin, `{"code":"JU 590","origin_airport_id":1,
		"destination_airport_id":2,"departure_at":"2026-10-20T07:45:00Z","arrival_at":"2026-10-20T10:15:00Z",
		"seats_total":180,"base_price":159.99}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	flightID := int64(decode(t, w)["id"].(float64))

	w = app.do(t, http.MethodPost, "/api/bookings", &customer, fmt.Sprintf(`{"flight_id":%d,"passengers":[
		{"first_name":"Ana","last_name":"Petrovic","price":159.99},
		{"first_name":"Marko","last_name":"Petrovic","price":159.99}]}`, flightID))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	bookingID := int64(created["id"].(float64))
	assert.Equal(t, 319.98, created["total_price"])
	assert.Regexp(t, `^PNR[A-Z0-9]{6}$`, created["booking_code"])
	passengersList := created["passengers"].([]any)
	require.Len(t, passengersList, 2)
	secondID := int64(passengersList[1].(map[string]any)["id"].(float64))

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/flights/%d", flightID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(178), decode(t, w)["seats_available"])

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/bookings/%d", bookingID), &stranger, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodPatch, fmt.Sprintf("/api/passengers/%d", secondID), &customer, `{"price":199.99}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 359.98, decode(t, w)["booking"].(map[string]any)["total_price"])

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/passengers/%d", secondID), &customer, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	removed := decode(t, w)
	assert.Equal(t, 159.99, removed["booking"].(map[string]any)["total_price"])
	assert.Equal(t, float64(179), removed["seats_available"])

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/flights/%d", flightID), &admin, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", bookingID), &customer, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	canceled := decode(t, w)
	assert.Equal(t, "canceled", canceled["status"])
	assert.Equal(t, 159.99, canceled["total_price"])

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/cancel", bookingID), &customer, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/bookings/%d/passengers", bookingID), &customer,
		`{"first_name":"Late","last_name":"Guest","price":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/flights/%d", flightID), nil, "")
	assert.Equal(t, float64(180), decode(t, w)["seats_available"])
}
