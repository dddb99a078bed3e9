package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/orchestrator"
	"github.com/salesagentco/platform/internal/orchestrator/sessionlock"
	"github.com/salesagentco/platform/internal/store"
)

const persistRetryBudget = 3

// ChatNotifyFunc is fired the first turn a conversation's lead info gains
// an email address, the same injected-callback shape ingest.NotifyFunc and
// OrderNotifyFunc use.
type ChatNotifyFunc func(ctx context.Context, eventType, ownerID string, payload map[string]string)

// ChatHandler serves POST /api/chat/:agent_id/message, the one fully public
// endpoint the embeddable widget talks to. A Locker keyed on
// (agent_id, session_id) serializes turns against the same conversation so
// two browser tabs never race the optimistic version check in
// store.ConversationRepository.Update (spec §9).
type ChatHandler struct {
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
	locker       *sessionlock.Locker
	log          *zap.Logger
	notify       ChatNotifyFunc
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(st *store.Store, orch *orchestrator.Orchestrator, locker *sessionlock.Locker, log *zap.Logger) *ChatHandler {
	return &ChatHandler{store: st, orchestrator: orch, locker: locker, log: log}
}

// SetNotify configures the lead-qualified callback.
func (h *ChatHandler) SetNotify(fn ChatNotifyFunc) { h.notify = fn }

// Register wires the chat route onto rg. No auth middleware — public.
func (h *ChatHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	rg.POST("/chat/:agent_id/message", h.Message)
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// Message handles one turn: load the agent, load-or-create the
// conversation, run the orchestrator, and persist both new turns with a
// version-checked compare-and-swap. A session_id is minted when the caller
// doesn't supply one (spec §4.8: first call from a fresh widget embed).
func (h *ChatHandler) Message(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("agent_id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}

	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	agent, err := h.store.Agents.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get agent", err))
		return
	}
	if !agent.IsActive {
		apperr.WriteJSON(c, apperr.Validation("agent is not active"))
		return
	}

	unlock := h.locker.Lock(sessionlock.Key(agentID.String(), req.SessionID))
	defer unlock()

	conv, err := h.store.Conversations.GetOrCreate(c.Request.Context(), agentID, req.SessionID, domain.ChannelEmbed)
	if err != nil {
		h.log.Error("load conversation", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to load conversation", err))
		return
	}

	state := &orchestrator.TurnState{
		Agent:            agent,
		IncomingText:     req.Message,
		History:          conv.Messages,
		ExistingLeadInfo: conv.LeadInfo,
	}
	result, err := h.orchestrator.Run(c.Request.Context(), state)
	if err != nil {
		h.log.Error("orchestrator run", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to generate reply", err))
		return
	}
	for stage, d := range result.Timings {
		RecordTurnStageDuration(stage, d.Seconds())
	}

	now := time.Now().UTC()
	conv.Messages = append(conv.Messages,
		domain.ChatMessage{Role: domain.RoleUser, Content: req.Message, Timestamp: now},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: result.ReplyText, Timestamp: now},
	)
	justQualified := conv.LeadInfo.Email == nil && result.LeadDelta.Email != nil
	conv.LeadInfo = result.LeadDelta

	if justQualified && h.notify != nil {
		h.notify(c.Request.Context(), "lead.qualified", agent.OwnerID, map[string]string{
			"agent_id":   agentID.String(),
			"session_id": req.SessionID,
			"email":      *result.LeadDelta.Email,
		})
	}

	if err := h.persist(c.Request.Context(), agentID, req.SessionID, conv); err != nil {
		h.log.Warn("conversation persist degraded, retrying in background",
			zap.String("agent_id", agentID.String()), zap.String("session_id", req.SessionID), zap.Error(err))
		c.Header("X-Persistence-Degraded", "true")
		go h.retryPersist(agentID, req.SessionID, conv.Messages, conv.LeadInfo)
	}

	apperr.OK(c, http.StatusOK, gin.H{"reply": result.ReplyText, "session_id": req.SessionID})
}

// persist writes conv via the optimistic CAS, retrying once against a fresh
// read if another request updated the row first — the Locker makes that a
// rare case (spec §9), not the common one.
func (h *ChatHandler) persist(ctx context.Context, agentID uuid.UUID, sessionID string, conv *domain.Conversation) error {
	err := h.store.Conversations.Update(ctx, conv)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return err
	}

	fresh, rerr := h.store.Conversations.GetBySession(ctx, agentID, sessionID)
	if rerr != nil {
		return rerr
	}
	fresh.Messages = append(fresh.Messages, conv.Messages[len(conv.Messages)-2:]...)
	fresh.LeadInfo = conv.LeadInfo
	if err := h.store.Conversations.Update(ctx, fresh); err != nil {
		return err
	}
	*conv = *fresh
	return nil
}

// retryPersist runs detached from the request goroutine after the reply has
// already been returned to the caller (spec §7: a degraded store write must
// never turn an already-produced reply into a 5xx). It re-reads the current
// row each attempt so it always appends on top of the latest state rather
// than clobbering turns written by a later, successful request.
func (h *ChatHandler) retryPersist(agentID uuid.UUID, sessionID string, newMessages []domain.ChatMessage, leadInfo domain.LeadInfo) {
	if len(newMessages) < 2 {
		return
	}
	turn := append([]domain.ChatMessage(nil), newMessages[len(newMessages)-2:]...)

	ctx := context.Background()
	backoff := time.Second
	for attempt := 1; attempt <= persistRetryBudget; attempt++ {
		time.Sleep(backoff)
		backoff *= 2

		unlock := h.locker.Lock(sessionlock.Key(agentID.String(), sessionID))
		fresh, err := h.store.Conversations.GetBySession(ctx, agentID, sessionID)
		if err != nil {
			unlock()
			h.log.Error("background persist retry: reload failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		fresh.Messages = append(fresh.Messages, turn...)
		fresh.LeadInfo = leadInfo
		err = h.store.Conversations.Update(ctx, fresh)
		unlock()
		if err == nil {
			h.log.Info("background persist retry succeeded", zap.Int("attempt", attempt))
			return
		}
		h.log.Error("background persist retry failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	h.log.Error("background persist retry exhausted, turn lost",
		zap.String("agent_id", agentID.String()), zap.String("session_id", sessionID))
}
