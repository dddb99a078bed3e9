package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/store"
)

// OrderNotifyFunc is fired after a status transition lands, the same
// injected-callback shape ingest.NotifyFunc uses.
type OrderNotifyFunc func(ctx context.Context, eventType, ownerID string, payload map[string]string)

// OrderHandler serves /api/orders. Order tracking by number is public;
// status updates require the caller to own the order's parent agent.
type OrderHandler struct {
	store  *store.Store
	log    *zap.Logger
	notify OrderNotifyFunc
}

// NewOrderHandler builds an OrderHandler.
func NewOrderHandler(st *store.Store, log *zap.Logger) *OrderHandler {
	return &OrderHandler{store: st, log: log}
}

// SetNotify configures the order-status-changed callback.
func (h *OrderHandler) SetNotify(fn OrderNotifyFunc) { h.notify = fn }

// Register wires order routes onto rg.
func (h *OrderHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	orders := rg.Group("/orders")
	orders.POST("", authn.RequireAuth(v), h.CreateOrder)
	orders.GET("/track/:order_number", h.TrackOrder)
	orders.PATCH("/:id/status", authn.RequireAuth(v), h.UpdateStatus)
}

// CreateOrder handles POST /api/orders — an authenticated route for agent
// owners; the caller must own the agent the order is placed against.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.OrderCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if _, err := h.ownedAgent(c, req.AgentID); err != nil {
		return
	}

	order := &domain.Order{
		AgentID:       req.AgentID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Items:         req.Items,
	}
	for _, item := range req.Items {
		order.TotalAmount += item.UnitPrice * float64(item.Quantity)
	}

	if err := h.store.Orders.Create(c.Request.Context(), order); err != nil {
		h.log.Error("create order", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to create order", err))
		return
	}
	apperr.OK(c, http.StatusCreated, order)
}

// TrackOrder handles GET /api/orders/track/:order_number — public, no
// ownership check, returns only status-relevant fields.
func (h *OrderHandler) TrackOrder(c *gin.Context) {
	number := c.Param("order_number")
	if !domain.OrderNumberPattern.MatchString(number) {
		apperr.WriteJSON(c, apperr.Validation("malformed order number"))
		return
	}

	order, err := h.findByNumber(c, number)
	if err != nil {
		return
	}

	apperr.OK(c, http.StatusOK, gin.H{
		"order_number":   order.OrderNumber,
		"status":         order.Status,
		"status_history": order.StatusHistory,
	})
}

func (h *OrderHandler) findByNumber(c *gin.Context, number string) (*domain.Order, error) {
	order, err := h.store.Orders.GetByNumber(c.Request.Context(), number)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("order not found"))
			return nil, err
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get order", err))
		return nil, err
	}
	return order, nil
}

// UpdateStatus handles PATCH /api/orders/:id/status — owner-only, appends
// to status_history and enforces the allowed-transition graph (spec §8).
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid order id"))
		return
	}

	order, err := h.store.Orders.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("order not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get order", err))
		return
	}
	agent, err := h.ownedAgent(c, order.AgentID)
	if err != nil {
		return
	}

	var req domain.OrderStatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if !domain.CanTransition(order.Status, req.Status) {
		apperr.WriteJSON(c, apperr.Conflict("illegal status transition"))
		return
	}

	updated, err := h.store.Orders.UpdateStatus(c.Request.Context(), id, req.Status, req.Note)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("order not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to update order status", err))
		return
	}
	if h.notify != nil {
		h.notify(c.Request.Context(), "order.status_changed", agent.OwnerID, map[string]string{
			"order_id":     updated.ID.String(),
			"order_number": updated.OrderNumber,
			"status":       string(updated.Status),
		})
	}
	apperr.OK(c, http.StatusOK, updated)
}

func (h *OrderHandler) ownedAgent(c *gin.Context, agentID uuid.UUID) (*domain.Agent, error) {
	agent, err := h.store.Agents.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return nil, err
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get agent", err))
		return nil, err
	}
	claims := authn.ClaimsFromContext(c)
	if claims == nil || agent.OwnerID != claims.OwnerUUID() {
		apperr.WriteJSON(c, apperr.Forbidden("not the owner of this agent"))
		return nil, errors.New("forbidden")
	}
	return agent, nil
}
