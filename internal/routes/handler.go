package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/middleware"
)

// RouteReader is what the handler reads routes through.
type RouteReader interface {
	GetRoute(ctx context.Context, id uuid.UUID) (*Route, error)
	ListStops(ctx context.Context, routeID uuid.UUID) ([]RouteStop, error)
}

// Handler serves route and stop lookups.
type Handler struct {
	repo  RouteReader
	index *StopIndex
}

// NewHandler creates a new routes handler
func NewHandler(repo RouteReader, index *StopIndex) *Handler {
	return &Handler{repo: repo, index: index}
}

// GetRouteStops lists a route's stops in travel order
// GET /api/v1/routes/:id/stops
func (h *Handler) GetRouteStops(c *gin.Context) {
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid route id")
		return
	}

	route, err := h.repo.GetRoute(c.Request.Context(), routeID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	stops, err := h.repo.ListStops(c.Request.Context(), routeID)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"route": route, "stops": stops})
}

// NearestStops finds the stops closest to a point
// GET /api/v1/stops/nearest?lat=&lng=&limit=
func (h *Handler) NearestStops(c *gin.Context) {
	var q NearestQuery
	if !middleware.ValidateAndBindQuery(c, &q) {
		return
	}

	stops, err := h.index.Nearest(*q.Latitude, *q.Longitude, q.Limit)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	common.SuccessResponse(c, stops)
}

// RegisterRoutes registers route and stop routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		api.GET("/routes/:id/stops", h.GetRouteStops)
		api.GET("/stops/nearest", h.NearestStops)
	}
}
