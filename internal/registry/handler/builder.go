package handler

import (
	"encoding/base64"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/builder"
	"github.com/salesagentco/platform/internal/domain"
)

// BuilderHandler serves /api/conversational-builder. In-progress builder
// state has no owning agent row yet (materialize is what creates one), so
// it lives in an in-process session map the same way the teacher's
// ratelimit.go keeps per-IP state — not durable across a restart, which is
// acceptable since an abandoned builder session simply starts over.
type BuilderHandler struct {
	builder *builder.Builder
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*builder.State
}

// NewBuilderHandler builds a BuilderHandler.
func NewBuilderHandler(b *builder.Builder, log *zap.Logger) *BuilderHandler {
	return &BuilderHandler{builder: b, log: log, sessions: make(map[string]*builder.State)}
}

// Register wires conversational-builder routes onto rg.
func (h *BuilderHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	b := rg.Group("/conversational-builder", authn.RequireAuth(v))
	b.POST("/start", h.Start)
	b.POST("/converse", h.Converse)
	b.POST("/upload-document", h.UploadDocument)
}

// Start handles POST /api/conversational-builder/start.
func (h *BuilderHandler) Start(c *gin.Context) {
	sessionID := uuid.New().String()
	state := builder.NewState()

	h.mu.Lock()
	h.sessions[sessionID] = state
	h.mu.Unlock()

	apperr.OK(c, http.StatusOK, gin.H{
		"session_id": sessionID,
		"prompt":     "What would you like to name your sales agent?",
		"phase":      state.Phase,
	})
}

type converseRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"    binding:"required"`
}

// Converse handles POST /api/conversational-builder/converse.
func (h *BuilderHandler) Converse(c *gin.Context) {
	var req converseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}

	state, ok := h.takeSession(req.SessionID)
	if !ok {
		apperr.WriteJSON(c, apperr.NotFound("unknown or expired builder session"))
		return
	}

	result, err := h.builder.Advance(c.Request.Context(), state, req.Message)
	if err != nil {
		h.log.Error("builder advance", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to advance builder", err))
		return
	}
	h.putSession(req.SessionID, result.State)

	resp := gin.H{
		"session_id":  req.SessionID,
		"prompt":      result.Prompt,
		"phase":       result.State.Phase,
		"is_complete": result.IsComplete,
	}
	if result.AgentID != nil {
		resp["agent_id"] = result.AgentID
		h.dropSession(req.SessionID)
	}
	apperr.OK(c, http.StatusOK, resp)
}

type uploadDocumentRequest struct {
	SessionID     string `json:"session_id"     binding:"required"`
	AgentID       string `json:"agent_id"`
	Filename      string `json:"filename"       binding:"required"`
	ContentBase64 string `json:"content_base64" binding:"required"`
}

// UploadDocument handles POST /api/conversational-builder/upload-document —
// attaches a document for ingestion through an open builder session. The
// resulting training_data row needs a real agent_id (the schema requires
// agent_id NOT NULL), so the request must name an existing agent; the agent
// row is only created when the session completes, and the session is then
// closed, so the agent has to come from an earlier materialize.
func (h *BuilderHandler) UploadDocument(c *gin.Context) {
	var req uploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if req.AgentID == "" {
		apperr.WriteJSON(c, apperr.Validation("agent_id is required for document uploads (materialize the agent first)"))
		return
	}
	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent_id"))
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.ContentBase64); err != nil {
		apperr.WriteJSON(c, apperr.Validation("content_base64 is not valid base64"))
		return
	}

	state, ok := h.takeSession(req.SessionID)
	if !ok {
		apperr.WriteJSON(c, apperr.NotFound("unknown or expired builder session"))
		return
	}
	defer h.putSession(req.SessionID, state)

	td := &domain.TrainingData{
		AgentID:  agentID,
		Type:     domain.TrainingPDF,
		Metadata: map[string]any{"content": req.ContentBase64, "filename": req.Filename},
	}
	if err := h.builder.IngestDocument(c.Request.Context(), state, agentID, td); err != nil {
		h.log.Error("ingest document during builder", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to ingest document", err))
		return
	}

	apperr.OK(c, http.StatusAccepted, gin.H{"training_data_id": td.ID})
}

func (h *BuilderHandler) takeSession(id string) (*builder.State, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *BuilderHandler) putSession(id string, state *builder.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = state
}

func (h *BuilderHandler) dropSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}
