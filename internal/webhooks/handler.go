package webhooks

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
)

// Handler handles HTTP requests for webhook subscriptions.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new webhook Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register registers all webhook routes on the given router group.
func (h *Handler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	wh := rg.Group("/webhooks", authn.RequireAuth(v))
	wh.POST("", h.CreateSubscription)
	wh.GET("", h.ListSubscriptions)
	wh.DELETE("/:id", h.DeleteSubscription)
}

// CreateSubscription handles POST /api/webhooks — creates a new subscription.
func (h *Handler) CreateSubscription(c *gin.Context) {
	claims := authn.ClaimsFromContext(c)

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}

	sub, err := h.svc.Subscribe(c.Request.Context(), claims.OwnerUUID(), &req)
	if err != nil {
		h.logger.Error("create webhook subscription", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to create subscription", err))
		return
	}

	// Return the secret once so the owner can store it; it's never returned again.
	apperr.OK(c, http.StatusCreated, gin.H{
		"subscription": sub,
		"secret":       sub.Secret,
	})
}

// ListSubscriptions handles GET /api/webhooks — lists the owner's subscriptions.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	claims := authn.ClaimsFromContext(c)

	subs, err := h.svc.ListByOwner(c.Request.Context(), claims.OwnerUUID())
	if err != nil {
		h.logger.Error("list webhook subscriptions", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to list subscriptions", err))
		return
	}
	if subs == nil {
		subs = []*WebhookSubscription{}
	}

	apperr.OK(c, http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// DeleteSubscription handles DELETE /api/webhooks/:id — deletes a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	claims := authn.ClaimsFromContext(c)

	subID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid subscription id"))
		return
	}

	if err := h.svc.Unsubscribe(c.Request.Context(), claims.OwnerUUID(), subID); err != nil {
		if errors.Is(err, ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("webhook subscription not found"))
			return
		}
		if errors.Is(err, ErrForbidden) {
			apperr.WriteJSON(c, apperr.Forbidden(err.Error()))
			return
		}
		h.logger.Error("delete webhook subscription", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to delete subscription", err))
		return
	}

	c.Status(http.StatusNoContent)
}
