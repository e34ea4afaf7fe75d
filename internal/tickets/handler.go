package tickets

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/internal/booking"
	"github.com/richxcame/ride-booking/internal/domain"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/middleware"
	"github.com/richxcame/ride-booking/pkg/storage"
)

const downloadTTL = 15 * time.Minute

// BookingGetter loads a booking. booking.Service implements it.
type BookingGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*booking.Booking, error)
}

// Handler hands out short-lived ticket download links
type Handler struct {
	bookings BookingGetter
	store    storage.Storage
}

// NewHandler creates a ticket handler
func NewHandler(bookings BookingGetter, store storage.Storage) *Handler {
	return &Handler{bookings: bookings, store: store}
}

// TicketLink is the download response
type TicketLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetTicket returns a presigned URL for the caller's e-ticket
// GET /api/v1/bookings/:id/ticket
func (h *Handler) GetTicket(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking id")
		return
	}

	b, err := h.bookings.Get(c.Request.Context(), bookingID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	role, _ := middleware.GetUserRole(c)
	if b.UserID != userID && role != middleware.RoleAdmin {
		common.HandleError(c, domain.ErrBookingNotFound)
		return
	}
	switch b.Status {
	case booking.StatusConfirmed, booking.StatusOngoing, booking.StatusCompleted:
	default:
		common.HandleError(c, common.NewNotFoundError("no ticket for a booking in status "+string(b.Status), nil))
		return
	}

	key := Key(eventbus.BookingEventData{BookingID: b.ID, CRN: b.CRN, DepartureAt: b.TripDepartureAt})
	url, err := h.store.PresignDownload(c.Request.Context(), key, downloadTTL)
	if err != nil {
		common.HandleError(c, common.NewInternalError("failed to sign ticket link", err))
		return
	}
	common.SuccessResponse(c, TicketLink{URL: url, ExpiresAt: time.Now().Add(downloadTTL).UTC()})
}

// RegisterRoutes registers ticket routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1/bookings")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	api.GET("/:id/ticket", h.GetTicket)
}
