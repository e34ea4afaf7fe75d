package subscriptions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/middleware"
)

// Handler handles HTTP requests for subscriptions
type Handler struct {
	service *Service
}

// NewHandler creates a new subscription handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListPlans lists available subscription plans
// GET /api/v1/subscriptions/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.service.ListPlans(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, plans)
}

// Subscribe starts a subscription pending payment
// POST /api/v1/subscriptions
func (h *Handler) Subscribe(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubscribeRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	sub, err := h.service.Subscribe(c.Request.Context(), userID, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.CreatedResponse(c, sub)
}

// GetEntitlement returns the remaining rides of a subscription
// GET /api/v1/subscriptions/:id/entitlement
func (h *Handler) GetEntitlement(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid subscription id")
		return
	}

	resp, err := h.service.Entitlement(c.Request.Context(), userID, subID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, resp)
}

// CancelSubscription cancels the caller's subscription
// POST /api/v1/subscriptions/:id/cancel
func (h *Handler) CancelSubscription(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.service.Cancel(c.Request.Context(), userID, subID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, sub)
}

// ActivateSubscription is the payment collaborator's callback
// POST /api/v1/admin/subscriptions/:id/activate
func (h *Handler) ActivateSubscription(c *gin.Context) {
	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.service.Activate(c.Request.Context(), subID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, sub)
}

// RegisterRoutes registers subscription routes
func (h *Handler) RegisterRoutes(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1/subscriptions")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		api.GET("/plans", h.ListPlans)
		api.POST("", h.Subscribe)
		api.GET("/:id/entitlement", h.GetEntitlement)
		api.POST("/:id/cancel", h.CancelSubscription)
	}

	admin := r.Group("/api/v1/admin/subscriptions")
	admin.Use(middleware.AuthMiddleware(jwtSecret))
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/:id/activate", h.ActivateSubscription)
	}
}
