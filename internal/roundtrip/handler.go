package roundtrip

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/pkg/resilience"
)

// Request is the body of a round-trip reservation. Return may be omitted.
type Request struct {
	Outbound *booking.CreateRequest `json:"outbound" binding:"required"`
	Return   *booking.CreateRequest `json:"return,omitempty"`
}

// Handler serves round-trip reservations
type Handler struct {
	linker *Linker
	retry  resilience.RetryConfig
}

// NewHandler creates a round-trip handler
func NewHandler(linker *Linker, busyRetries int) *Handler {
	return &Handler{linker: linker, retry: booking.BusyRetryConfig(busyRetries)}
}

// CreateRoundTrip reserves both legs
// POST /api/v1/bookings/round-trip
func (h *Handler) CreateRoundTrip(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req Request
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	req.Outbound.UserID = userID
	if req.Return != nil {
		req.Return.UserID = userID
	}

	out, err := resilience.Retry(c.Request.Context(), h.retry, func(ctx context.Context) (interface{}, error) {
		return h.linker.Reserve(ctx, req.Outbound, req.Return)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.CreatedResponse(c, out.(*RoundTrip))
}

// RegisterRoutes registers round-trip routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1/bookings")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	api.POST("/round-trip", h.CreateRoundTrip)
}
