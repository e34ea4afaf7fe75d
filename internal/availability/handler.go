package availability

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/ride-booking/internal/inventory"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/eventbus"
	"github.com/richxcame/ride-booking/pkg/logger"
	ws "github.com/richxcame/ride-booking/pkg/websocket"
	"go.uber.org/zap"
)

// Source reports a trip's current inventory. booking.Service implements it.
type Source interface {
	Availability(ctx context.Context, tripID uuid.UUID) (*inventory.Availability, error)
}

// Handler serves availability snapshots and the live feed
type Handler struct {
	source   Source
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler creates an availability handler. allowedOrigins empty accepts any origin.
func NewHandler(source Source, hub *ws.Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		source: source,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func tripIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid trip id")
		return uuid.Nil, false
	}
	return id, true
}

// GetAvailability returns the trip's seat counts and free seats
// GET /api/v1/trips/:id/availability
func (h *Handler) GetAvailability(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	avail, err := h.source.Availability(c.Request.Context(), tripID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, avail)
}

// Subscribe upgrades to a websocket that receives the current snapshot, then
// every change to the trip's availability.
// GET /api/v1/trips/:id/availability/ws
func (h *Handler) Subscribe(c *gin.Context) {
	tripID, ok := tripIDParam(c)
	if !ok {
		return
	}

	avail, err := h.source.Availability(c.Request.Context(), tripID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("availability: websocket upgrade failed", zap.Error(err))
		return
	}

	topic := Topic(tripID)
	snapshot, err := ws.NewMessage(MessageType, topic, eventbus.TripAvailabilityData{
		TripID:         avail.TripID,
		Status:         string(avail.Status),
		AvailableSeats: avail.CurrentAvailableSeats,
		InitialSeats:   avail.InitialAvailableSeats,
	})
	if err == nil {
		err = conn.WriteJSON(snapshot)
	}
	if err != nil {
		conn.Close()
		return
	}

	client := ws.NewClient(uuid.NewString(), topic, conn, h.hub, logger.Get())
	h.hub.Register <- client
	go client.WritePump()
	go client.ReadPump()
}

// RegisterRoutes registers availability routes. They are public.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	trips := r.Group("/api/v1/trips")
	{
		trips.GET("/:id/availability", h.GetAvailability)
		trips.GET("/:id/availability/ws", h.Subscribe)
	}
}
