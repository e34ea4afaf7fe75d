package roundtrip

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandler_CreateRoundTrip(t *testing.T) {
	const secret = "round-trip-secret"
	user := uuid.New()
	out := tripAt(base)
	back := tripAt(base.Add(3 * time.Hour))
	creator := new(mockLegCreator)

	router := gin.New()
	NewHandler(NewLinker(creator, tripMap{out.ID: out, back.ID: back}), 1).RegisterRoutes(router, secret)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID:           user,
		Role:             middleware.RoleRider,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	post := func(body interface{}) (*httptest.ResponseRecorder, common.Response) {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/round-trip", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		var resp common.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}
	leg := func(tripID uuid.UUID) gin.H {
		return gin.H{
			"scheduled_trip_id": tripID,
			"pickup_stop_id":    uuid.New(),
			"drop_off_stop_id":  uuid.New(),
			"seat_count":        1,
		}
	}

	w, _ := post(gin.H{"return": leg(back.ID)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := post(gin.H{"outbound": leg(back.ID), "return": leg(out.ID)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.ReasonRoundTripInconsistent, resp.Error.Reason)

	legs := []*booking.Booking{{ID: uuid.New(), UserID: user}, {ID: uuid.New(), UserID: user}}
	creator.On("CreateLinked", mock.Anything, mock.MatchedBy(func(reqs []*booking.CreateRequest) bool {
		return len(reqs) == 2 && reqs[0].UserID == user && reqs[1].UserID == user
	})).Return(legs, nil).Once()

	w, _ = post(gin.H{"outbound": leg(out.ID), "return": leg(back.ID)})
	assert.Equal(t, http.StatusCreated, w.Code)
	creator.AssertExpectations(t)
}
