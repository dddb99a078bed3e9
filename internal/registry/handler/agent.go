package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/store"
	"github.com/salesagentco/platform/internal/vectorindex"
)

// AgentHandler serves /api/agents. Deleting an agent also purges its
// vector-index namespace, since the store has no knowledge of the index.
type AgentHandler struct {
	store *store.Store
	index vectorindex.Client
	log   *zap.Logger
}

// NewAgentHandler builds an AgentHandler.
func NewAgentHandler(st *store.Store, index vectorindex.Client, log *zap.Logger) *AgentHandler {
	return &AgentHandler{store: st, index: index, log: log}
}

// Register wires agent routes onto rg, guarded by RequireAuth except the
// public GetAgent lookup used by the embeddable chat widget.
func (h *AgentHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	agents := rg.Group("/agents")
	agents.POST("", authn.RequireAuth(v), h.CreateAgent)
	agents.GET("", authn.RequireAuth(v), h.ListAgents)
	agents.GET("/:id", authn.OptionalAuth(v), h.GetAgent)
	agents.PUT("/:id", authn.RequireAuth(v), h.UpdateAgent)
	agents.DELETE("/:id", authn.RequireAuth(v), h.DeleteAgent)
}

// CreateAgent handles POST /api/agents.
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	var req domain.AgentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}

	claims := authn.ClaimsFromContext(c)
	agent := &domain.Agent{
		OwnerID:            claims.OwnerUUID(),
		Name:               req.Name,
		CompanyName:        req.CompanyName,
		CompanyDescription: req.CompanyDescription,
		Tone:               req.Tone,
		Language:           req.Language,
		GreetingMessage:    req.GreetingMessage,
		SalesStrategy:      req.SalesStrategy,
		Products:           req.Products,
		IsActive:           true,
	}
	if agent.Tone == "" {
		agent.Tone = domain.ToneFriendly
	}

	if err := h.store.Agents.Create(c.Request.Context(), agent); err != nil {
		h.log.Error("create agent", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to create agent", err))
		return
	}

	if err := h.index.EnsureCollection(c.Request.Context(), agent.IndexNamespace, 256, vectorindex.MetricCosine); err != nil {
		h.log.Warn("ensure vector collection", zap.String("namespace", agent.IndexNamespace), zap.Error(err))
	}

	h.refreshAgentsGauge(c.Request.Context())
	apperr.OK(c, http.StatusCreated, agent)
}

// ListAgents handles GET /api/agents — the caller's own agents, newest first.
func (h *AgentHandler) ListAgents(c *gin.Context) {
	claims := authn.ClaimsFromContext(c)
	limit, offset := parseLimitOffset(c)

	agents, err := h.store.Agents.ListByOwner(c.Request.Context(), claims.OwnerUUID(), limit, offset)
	if err != nil {
		h.log.Error("list agents", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to list agents", err))
		return
	}
	if agents == nil {
		agents = []*domain.Agent{}
	}
	apperr.OK(c, http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

// GetAgent handles GET /api/agents/:id. Public (no auth required) so the
// embeddable chat widget can fetch an agent's greeting/tone/products.
func (h *AgentHandler) GetAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}

	agent, err := h.store.Agents.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get agent", err))
		return
	}
	apperr.OK(c, http.StatusOK, agent)
}

// UpdateAgent handles PUT /api/agents/:id — owner-only, zero-value fields
// in the request leave the corresponding column unchanged.
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}

	agent, err := h.loadOwned(c, id)
	if err != nil {
		return
	}

	var req domain.AgentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	applyAgentUpdate(agent, &req)

	if err := h.store.Agents.Update(c.Request.Context(), agent); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to update agent", err))
		return
	}
	if req.IsActive != nil {
		h.refreshAgentsGauge(c.Request.Context())
	}
	apperr.OK(c, http.StatusOK, agent)
}

// DeleteAgent handles DELETE /api/agents/:id — owner-only, cascades in the
// store and purges the agent's vector-index namespace.
func (h *AgentHandler) DeleteAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}

	agent, err := h.loadOwned(c, id)
	if err != nil {
		return
	}

	if err := h.store.Agents.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to delete agent", err))
		return
	}

	if err := h.index.DeleteByFilter(c.Request.Context(), agent.IndexNamespace, vectorindex.Filter{AgentID: agent.ID.String()}); err != nil {
		h.log.Warn("purge vectors after agent delete", zap.String("agent_id", agent.ID.String()), zap.Error(err))
	}

	h.refreshAgentsGauge(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// refreshAgentsGauge recomputes and publishes the salesagent_agents_total
// gauge after a create/delete/activation-change. Best-effort: a failed
// count is logged, not surfaced to the caller, since the mutation it
// follows already succeeded.
func (h *AgentHandler) refreshAgentsGauge(ctx context.Context) {
	active, inactive, err := h.store.Agents.CountByStatus(ctx)
	if err != nil {
		h.log.Warn("refresh agents gauge", zap.Error(err))
		return
	}
	SetAgentsGauge("active", float64(active))
	SetAgentsGauge("inactive", float64(inactive))
}

// loadOwned fetches the agent by id and verifies it belongs to the caller,
// writing the appropriate error response and returning a non-nil error if
// the lookup or ownership check fails.
func (h *AgentHandler) loadOwned(c *gin.Context, id uuid.UUID) (*domain.Agent, error) {
	agent, err := h.store.Agents.GetByID(c.Request.Context(), id)
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

func applyAgentUpdate(a *domain.Agent, r *domain.AgentUpdateRequest) {
	if r.Name != nil {
		a.Name = *r.Name
	}
	if r.CompanyName != nil {
		a.CompanyName = *r.CompanyName
	}
	if r.CompanyDescription != nil {
		a.CompanyDescription = *r.CompanyDescription
	}
	if r.Tone != nil {
		a.Tone = *r.Tone
	}
	if r.Language != nil {
		a.Language = *r.Language
	}
	if r.GreetingMessage != nil {
		a.GreetingMessage = *r.GreetingMessage
	}
	if r.SalesStrategy != nil {
		a.SalesStrategy = *r.SalesStrategy
	}
	if r.Products != nil {
		a.Products = r.Products
	}
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
}

// parseLimitOffset reads the ?limit and ?offset query params shared by
// every list endpoint (spec §6: "all list endpoints accept limit and
// opaque cursor" — offset doubles as that cursor here).
func parseLimitOffset(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
