package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/analytics"
	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
)

// AnalyticsHandler serves /api/analytics. Every query is scoped to the
// caller's owner_id; an optional ?agent_id narrows further to one agent.
type AnalyticsHandler struct {
	svc *analytics.Service
	log *zap.Logger
}

// NewAnalyticsHandler builds an AnalyticsHandler.
func NewAnalyticsHandler(svc *analytics.Service, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, log: log}
}

// Register wires analytics routes onto rg.
func (h *AnalyticsHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	a := rg.Group("/analytics", authn.RequireAuth(v))
	a.GET("/funnel", h.Funnel)
	a.GET("/peak-hours", h.PeakHours)
	a.GET("/daily-trends", h.DailyTrends)
	a.GET("/agent-performance", h.AgentPerformance)
}

func (h *AnalyticsHandler) Funnel(c *gin.Context) {
	ownerID, agentID, window := h.parseQuery(c)
	funnel, err := h.svc.Funnel(c.Request.Context(), ownerID, agentID, window)
	if err != nil {
		h.log.Error("funnel query", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to compute funnel", err))
		return
	}
	apperr.OK(c, http.StatusOK, funnel)
}

func (h *AnalyticsHandler) PeakHours(c *gin.Context) {
	ownerID, agentID, window := h.parseQuery(c)
	buckets, err := h.svc.PeakHours(c.Request.Context(), ownerID, agentID, window)
	if err != nil {
		h.log.Error("peak hours query", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to compute peak hours", err))
		return
	}
	apperr.OK(c, http.StatusOK, gin.H{"buckets": buckets})
}

func (h *AnalyticsHandler) DailyTrends(c *gin.Context) {
	ownerID, agentID, window := h.parseQuery(c)
	trends, err := h.svc.DailyTrends(c.Request.Context(), ownerID, agentID, window)
	if err != nil {
		h.log.Error("daily trends query", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to compute daily trends", err))
		return
	}
	apperr.OK(c, http.StatusOK, gin.H{"trends": trends})
}

func (h *AnalyticsHandler) AgentPerformance(c *gin.Context) {
	ownerID, _, window := h.parseQuery(c)
	results, err := h.svc.AgentPerformance(c.Request.Context(), ownerID, window)
	if err != nil {
		h.log.Error("agent performance query", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to compute agent performance", err))
		return
	}
	apperr.OK(c, http.StatusOK, gin.H{"agents": results})
}

// parseQuery extracts the owner, optional agent_id, and [from,to) window
// shared by every analytics endpoint. ?from/?to are RFC3339; ?from defaults
// to 30 days back, ?to defaults to now.
func (h *AnalyticsHandler) parseQuery(c *gin.Context) (string, *uuid.UUID, analytics.Window) {
	claims := authn.ClaimsFromContext(c)
	ownerID := ""
	if claims != nil {
		ownerID = claims.OwnerUUID()
	}

	var agentID *uuid.UUID
	if raw := c.Query("agent_id"); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			agentID = &parsed
		}
	}

	from := time.Now().UTC().AddDate(0, 0, -30)
	if raw := c.Query("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		}
	}
	var to time.Time
	if raw := c.Query("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		}
	}

	return ownerID, agentID, analytics.Window{From: from, To: to}
}
