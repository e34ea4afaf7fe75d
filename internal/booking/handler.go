package booking

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/pkg/pagination"
	"github.com/richxcame/ride-booking/pkg/resilience"
)

// Handler handles HTTP requests for bookings
type Handler struct {
	service *Service
	retry   resilience.RetryConfig
	extra   []gin.HandlerFunc
}

// NewHandler creates a booking handler. Operations failing with CapacityBusy
// are retried up to busyRetries attempts before the 503 reaches the client.
func NewHandler(service *Service, busyRetries int) *Handler {
	return &Handler{service: service, retry: BusyRetryConfig(busyRetries)}
}

// Use adds middleware that runs on rider routes after authentication.
func (h *Handler) Use(mw ...gin.HandlerFunc) *Handler {
	h.extra = append(h.extra, mw...)
	return h
}

// BusyRetryConfig retries only retryable domain errors, with short jittered backoff.
func BusyRetryConfig(attempts int) resilience.RetryConfig {
	if attempts <= 0 {
		attempts = 3
	}
	return resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
		RetryableChecker:  domain.IsRetryable,
	}
}

func (h *Handler) retryBusy(ctx context.Context, op func(ctx context.Context) (*Booking, error)) (*Booking, error) {
	out, err := resilience.Retry(ctx, h.retry, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Booking), nil
}

func bookingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return uuid.Nil, false
	}
	return id, true
}

func isStaff(c *gin.Context) bool {
	role, _ := middleware.GetUserRole(c)
	return role == middleware.RoleAdmin || role == middleware.RoleDriver
}

// owned loads the booking and hides it from riders who do not own it.
func (h *Handler) owned(c *gin.Context, userID, bookingID uuid.UUID) (*Booking, bool) {
	b, err := h.service.Get(c.Request.Context(), bookingID)
	if err != nil {
		common.HandleError(c, err)
		return nil, false
	}
	if b.UserID != userID && !isStaff(c) {
		common.HandleError(c, domain.ErrBookingNotFound)
		return nil, false
	}
	return b, true
}

// CreateBooking reserves seats on one trip
// POST /api/v1/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	req.UserID = userID

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.Create(ctx, &req)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.CreatedResponse(c, b)
}

// ConfirmBooking records the payment and issues the boarding code
// POST /api/v1/bookings/:id/confirm
func (h *Handler) ConfirmBooking(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req PaymentResult
	if !middleware.ValidateAndBind(c, &req) {
		return
	}
	if _, ok := h.owned(c, userID, bookingID); !ok {
		return
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.Confirm(ctx, bookingID, req)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// CancelBooking cancels a booking. Admins cancel any booking, riders their own.
// POST /api/v1/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength > 0 && !middleware.ValidateAndBind(c, &req) {
		return
	}

	actor := ActorUser
	if role, _ := middleware.GetUserRole(c); role == middleware.RoleAdmin {
		actor = ActorAdmin
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.Cancel(ctx, bookingID, actor, userID, req.Reason)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// BoardBooking verifies the rider's boarding code
// POST /api/v1/bookings/:id/board
func (h *Handler) BoardBooking(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req BoardRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.VerifyBoarding(ctx, bookingID, req.Code)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// ReissueBoardingCode replaces the boarding code of the caller's booking
// POST /api/v1/bookings/:id/boarding-code
func (h *Handler) ReissueBoardingCode(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	b, err := h.service.ReissueBoardingCode(c.Request.Context(), bookingID, userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// GetBooking returns one booking
// GET /api/v1/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	b, ok := h.owned(c, userID, bookingID)
	if !ok {
		return
	}
	common.SuccessResponse(c, b)
}

// ListBookings lists the caller's bookings
// GET /api/v1/bookings?limit=&offset=
func (h *Handler) ListBookings(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	params := pagination.ParseParams(c)
	bookings, total, err := h.service.ListForUser(c.Request.Context(), userID, params.Limit, params.Offset)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponseWithMeta(c, bookings, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// ExpireHold releases a lapsed seat hold
// POST /api/v1/admin/bookings/:id/expire
func (h *Handler) ExpireHold(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.ExpireHold(ctx, bookingID)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// MarkNoShow closes a confirmed booking whose rider never boarded
// POST /api/v1/admin/bookings/:id/no-show
func (h *Handler) MarkNoShow(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.MarkNoShow(ctx, bookingID)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// CompleteBooking closes a ride
// POST /api/v1/bookings/:id/complete
func (h *Handler) CompleteBooking(c *gin.Context) {
	bookingID, ok := bookingIDParam(c)
	if !ok {
		return
	}

	b, err := h.retryBusy(c.Request.Context(), func(ctx context.Context) (*Booking, error) {
		return h.service.Complete(ctx, bookingID)
	})
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, b)
}

// RegisterRoutes registers booking routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1/bookings")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	api.Use(h.extra...)
	{
		api.POST("", h.CreateBooking)
		api.GET("", h.ListBookings)
		api.GET("/:id", h.GetBooking)
		api.POST("/:id/confirm", h.ConfirmBooking)
		api.POST("/:id/cancel", h.CancelBooking)
		api.POST("/:id/boarding-code", h.ReissueBoardingCode)

		staff := api.Group("")
		staff.Use(middleware.RequireRole(middleware.RoleDriver, middleware.RoleAdmin))
		staff.POST("/:id/board", h.BoardBooking)
		staff.POST("/:id/complete", h.CompleteBooking)
	}

	admin := r.Group("/api/v1/admin/bookings")
	admin.Use(middleware.AuthMiddleware(jwtSecret))
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/:id/expire", h.ExpireHold)
		admin.POST("/:id/no-show", h.MarkNoShow)
	}
}
