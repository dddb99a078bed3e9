package handler

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/store"
	"github.com/salesagentco/platform/internal/vectorindex"
)

// ingestEnqueuer is the narrow slice of internal/ingest.Pipeline the
// handler needs.
type ingestEnqueuer interface {
	Enqueue(trainingDataID uuid.UUID)
}

// TrainingHandler serves /api/training. Enqueueing runs detached from the
// request; the row is created at TrainingProcessing and the HTTP response
// returns 202 immediately (spec §4.5, §7: ingestion failures never fail the
// originating request, which has already returned).
type TrainingHandler struct {
	store    *store.Store
	ingester ingestEnqueuer
	index    vectorindex.Client
	log      *zap.Logger
}

// NewTrainingHandler builds a TrainingHandler.
func NewTrainingHandler(st *store.Store, ingester ingestEnqueuer, index vectorindex.Client, log *zap.Logger) *TrainingHandler {
	return &TrainingHandler{store: st, ingester: ingester, index: index, log: log}
}

// Register wires training routes onto rg.
func (h *TrainingHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	training := rg.Group("/training", authn.RequireAuth(v))
	training.POST("/pdf", h.CreatePDF)
	training.POST("/url", h.CreateURL)
	training.POST("/faq", h.CreateFAQ)
	training.GET("/:agent_id/data", h.ListData)
	training.DELETE("/:agent_id/data", h.DeleteData)
}

// CreatePDF handles POST /api/training/pdf.
func (h *TrainingHandler) CreatePDF(c *gin.Context) {
	var req domain.TrainingPDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if _, err := h.ownedAgent(c, req.AgentID); err != nil {
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.ContentBase64); err != nil {
		apperr.WriteJSON(c, apperr.Validation("content_base64 is not valid base64"))
		return
	}

	h.enqueue(c, &domain.TrainingData{
		AgentID:  req.AgentID,
		Type:     domain.TrainingPDF,
		Metadata: map[string]any{"content": req.ContentBase64, "filename": req.Filename},
	})
}

// CreateURL handles POST /api/training/url.
func (h *TrainingHandler) CreateURL(c *gin.Context) {
	var req domain.TrainingURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if _, err := h.ownedAgent(c, req.AgentID); err != nil {
		return
	}

	h.enqueue(c, &domain.TrainingData{
		AgentID:  req.AgentID,
		Type:     domain.TrainingURL,
		Metadata: map[string]any{"url": req.URL},
	})
}

// CreateFAQ handles POST /api/training/faq.
func (h *TrainingHandler) CreateFAQ(c *gin.Context) {
	var req domain.TrainingFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if _, err := h.ownedAgent(c, req.AgentID); err != nil {
		return
	}

	faqs := make([]any, 0, len(req.FAQs))
	for _, pair := range req.FAQs {
		faqs = append(faqs, map[string]any{"question": pair.Question, "answer": pair.Answer})
	}

	h.enqueue(c, &domain.TrainingData{
		AgentID:  req.AgentID,
		Type:     domain.TrainingFAQ,
		Metadata: map[string]any{"faqs": faqs},
	})
}

func (h *TrainingHandler) enqueue(c *gin.Context, td *domain.TrainingData) {
	if err := h.store.TrainingData.Create(c.Request.Context(), td); err != nil {
		h.log.Error("create training data", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to create training data", err))
		return
	}
	h.ingester.Enqueue(td.ID)
	apperr.OK(c, http.StatusAccepted, td)
}

// ListData handles GET /api/training/:agent_id/data.
func (h *TrainingHandler) ListData(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("agent_id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}
	if _, err := h.ownedAgent(c, agentID); err != nil {
		return
	}

	limit, offset := parseLimitOffset(c)
	rows, err := h.store.TrainingData.ListByAgent(c.Request.Context(), agentID, limit, offset)
	if err != nil {
		h.log.Error("list training data", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to list training data", err))
		return
	}
	if rows == nil {
		rows = []*domain.TrainingData{}
	}
	apperr.OK(c, http.StatusOK, gin.H{"training_data": rows, "count": len(rows)})
}

// DeleteData handles DELETE /api/training/:agent_id/data?training_data_id=…
// — removes the row and purges its vectors from the index.
func (h *TrainingHandler) DeleteData(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("agent_id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}
	agent, err := h.ownedAgent(c, agentID)
	if err != nil {
		return
	}

	tdID, err := uuid.Parse(c.Query("training_data_id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid training_data_id"))
		return
	}

	if err := h.store.TrainingData.Delete(c.Request.Context(), tdID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("training data not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to delete training data", err))
		return
	}

	if err := h.index.DeleteByFilter(c.Request.Context(), agent.IndexNamespace, vectorindex.Filter{SourceID: tdID.String()}); err != nil {
		h.log.Warn("purge vectors for deleted training data", zap.String("training_data_id", tdID.String()), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

func (h *TrainingHandler) ownedAgent(c *gin.Context, agentID uuid.UUID) (*domain.Agent, error) {
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
