package booking_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "booking-handler-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, userID uuid.UUID, role middleware.Role) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(f *fixture) *apiClient {
	router := gin.New()
	booking.NewHandler(f.svc, 2).RegisterRoutes(router, testSecret)
	return &apiClient{t: f.t, router: router}
}

func (a *apiClient) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, common.Response) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp common.Response
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func decodeBooking(t *testing.T, resp common.Response) booking.Booking {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var b booking.Booking
	require.NoError(t, json.Unmarshal(raw, &b))
	return b
}

func createBody(f *fixture, tripID uuid.UUID, seats int) gin.H {
	return gin.H{
		"scheduled_trip_id": tripID,
		"pickup_stop_id":    f.stops[0].ID,
		"drop_off_stop_id":  f.stops[2].ID,
		"seat_count":        seats,
	}
}

func TestHandler_BookingLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(3, base.Add(2*time.Hour))
	api := newAPI(f)
	rider := signToken(t, f.userID, middleware.RoleRider)
	driver := signToken(t, uuid.New(), middleware.RoleDriver)

	w, resp := api.do(http.MethodPost, "/api/v1/bookings", rider, createBody(f, trip.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBooking(t, resp)
	assert.Equal(t, booking.StatusPendingPayment, created.Status)
	assert.Len(t, created.BookedSeatIDs, 2)

	w, resp = api.do(http.MethodPost, "/api/v1/bookings/"+created.ID.String()+"/confirm", rider, gin.H{
		"provider":          "manual",
		"reference":         "cash-1",
		"amount_paid_cents": created.DueFareCents(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmed := decodeBooking(t, resp)
	assert.Equal(t, booking.StatusConfirmed, confirmed.Status)
	require.NotEmpty(t, confirmed.BoardingCode)

	w, _ = api.do(http.MethodPost, "/api/v1/bookings/"+created.ID.String()+"/board", rider, gin.H{"code": confirmed.BoardingCode})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp = api.do(http.MethodPost, "/api/v1/bookings/"+created.ID.String()+"/board", driver, gin.H{"code": confirmed.BoardingCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StatusOngoing, decodeBooking(t, resp).Status)

	w, resp = api.do(http.MethodGet, "/api/v1/bookings?limit=10", rider, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
}

func TestHandler_ErrorMapping(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(1, base.Add(2*time.Hour))
	api := newAPI(f)
	rider := signToken(t, f.userID, middleware.RoleRider)

	w, _ := api.do(http.MethodPost, "/api/v1/bookings", "", createBody(f, trip.ID, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodPost, "/api/v1/bookings", rider, gin.H{"seat_count": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(http.MethodPost, "/api/v1/bookings", rider, createBody(f, trip.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp := api.do(http.MethodPost, "/api/v1/bookings", rider, createBody(f, trip.ID, 1))
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ReasonInsufficientCapacity, resp.Error.Reason)

	w, _ = api.do(http.MethodGet, "/api/v1/bookings/not-a-uuid", rider, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = api.do(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), rider, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ReasonBookingNotFound, resp.Error.Reason)
}

func TestHandler_RidersCannotSeeOtherBookings(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(3, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))
	api := newAPI(f)
	stranger := signToken(t, uuid.New(), middleware.RoleRider)
	admin := signToken(t, uuid.New(), middleware.RoleAdmin)

	w, resp := api.do(http.MethodGet, "/api/v1/bookings/"+b.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ReasonBookingNotFound, resp.Error.Reason)

	w, _ = api.do(http.MethodPost, "/api/v1/bookings/"+b.ID.String()+"/cancel", stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = api.do(http.MethodGet, "/api/v1/bookings/"+b.ID.String(), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do(http.MethodPost, "/api/v1/bookings/"+b.ID.String()+"/cancel", admin, gin.H{"reason": "route closed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decodeBooking(t, resp)
	assert.Equal(t, booking.StatusCancelledByAdmin, cancelled.Status)
	assert.Equal(t, "route closed", cancelled.CancellationReason)
}

func TestHandler_AdminExpireHold(t *testing.T) {
	f := newFixture(t, nil)
	trip := f.addTrip(1, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))
	api := newAPI(f)
	rider := signToken(t, f.userID, middleware.RoleRider)
	admin := signToken(t, uuid.New(), middleware.RoleAdmin)

	w, _ := api.do(http.MethodPost, "/api/v1/admin/bookings/"+b.ID.String()+"/expire", rider, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, resp := api.do(http.MethodPost, "/api/v1/admin/bookings/"+b.ID.String()+"/expire", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ReasonHoldStillActive, resp.Error.Reason)

	f.now = base.Add(15 * time.Minute)
	w, resp = api.do(http.MethodPost, "/api/v1/admin/bookings/"+b.ID.String()+"/expire", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StatusCancelledByAdmin, decodeBooking(t, resp).Status)
	assert.Equal(t, 1, f.store.Trip(trip.ID).CurrentAvailableSeats)
}

func TestHandler_ConfirmRetriesBusyInventory(t *testing.T) {
	payments := new(mocks.MockPaymentConfirmer)
	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(false, domain.ErrCapacityBusy).Once()
	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil).Once()

	f := newFixture(t, payments)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))
	api := newAPI(f)
	rider := signToken(t, f.userID, middleware.RoleRider)

	w, resp := api.do(http.MethodPost, "/api/v1/bookings/"+b.ID.String()+"/confirm", rider, gin.H{
		"provider":          "manual",
		"reference":         "cash-2",
		"amount_paid_cents": b.DueFareCents(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StatusConfirmed, decodeBooking(t, resp).Status)
	payments.AssertNumberOfCalls(t, "ConfirmPayment", 2)
}

func TestHandler_ConfirmGivesUpWhenStillBusy(t *testing.T) {
	payments := new(mocks.MockPaymentConfirmer)
	payments.On("ConfirmPayment", mock.Anything, mock.Anything, mock.Anything).
		Return(false, domain.ErrCapacityBusy)

	f := newFixture(t, payments)
	trip := f.addTrip(2, base.Add(2*time.Hour))
	b := f.create(f.request(trip.ID, 1))
	api := newAPI(f)
	rider := signToken(t, f.userID, middleware.RoleRider)

	w, resp := api.do(http.MethodPost, "/api/v1/bookings/"+b.ID.String()+"/confirm", rider, gin.H{
		"provider":          "manual",
		"reference":         "cash-3",
		"amount_paid_cents": b.DueFareCents(),
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ReasonCapacityBusy, resp.Error.Reason)
	payments.AssertNumberOfCalls(t, "ConfirmPayment", 2)
	assert.Equal(t, booking.StatusPendingPayment, f.stored(b.ID).Status)
}
