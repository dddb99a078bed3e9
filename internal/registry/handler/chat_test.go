//go:build integration

package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/llm"
	"github.com/salesagentco/platform/internal/orchestrator"
	"github.com/salesagentco/platform/internal/orchestrator/sessionlock"
	"github.com/salesagentco/platform/internal/registry/handler"
	"github.com/salesagentco/platform/internal/vectorindex/memoryindex"
)

// stubChatLLM always returns a fixed reply, so these tests exercise the
// handler's persistence and session-identity logic, not the model.
type stubChatLLM struct{ reply string }

func (s *stubChatLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	return s.reply, nil
}

func (s *stubChatLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 8), nil
}

func setupChatRouter(t *testing.T, ownerID, reply string) *gin.Engine {
	router, st := setupRouter(t, ownerID)

	index := memoryindex.New()
	hasVectors := func(ctx context.Context, agentID string) (bool, error) { return false, nil }
	orch := orchestrator.New(&stubChatLLM{reply: reply}, index, zap.NewNop(), orchestrator.Config{}, hasVectors)
	locker := sessionlock.New(time.Minute)

	handler.NewChatHandler(st, orch, locker, zap.NewNop()).Register(router.Group("/api"), nil)
	return router
}

func TestChatMessage_mintsSessionIDAndReturnsReply(t *testing.T) {
	router := setupChatRouter(t, "owner-"+t.Name(), "Hi there, happy to help!")
	agentID := createTestAgent(t, router)

	rec := doJSON(router, http.MethodPost, "/api/chat/"+agentID+"/message", map[string]any{
		"message": "Tell me about your product",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Reply     string `json:"reply"`
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Reply != "Hi there, happy to help!" {
		t.Errorf("reply = %q, want stub reply", resp.Data.Reply)
	}
	if resp.Data.SessionID == "" {
		t.Error("expected a minted session id")
	}
}

func TestChatMessage_reusesSuppliedSessionIDAcrossTurns(t *testing.T) {
	router := setupChatRouter(t, "owner-"+t.Name(), "ok")
	agentID := createTestAgent(t, router)
	sessionID := "fixed-session-" + t.Name()

	first := doJSON(router, http.MethodPost, "/api/chat/"+agentID+"/message", map[string]any{
		"session_id": sessionID,
		"message":    "hello",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first turn: status = %d, body: %s", first.Code, first.Body.String())
	}

	second := doJSON(router, http.MethodPost, "/api/chat/"+agentID+"/message", map[string]any{
		"session_id": sessionID,
		"message":    "and again",
	})
	if second.Code != http.StatusOK {
		t.Fatalf("second turn: status = %d, body: %s", second.Code, second.Body.String())
	}

	var resp struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.SessionID != sessionID {
		t.Errorf("session_id = %q, want %q", resp.Data.SessionID, sessionID)
	}
}

func TestChatMessage_unknownAgentReturns404(t *testing.T) {
	router := setupChatRouter(t, "owner-"+t.Name(), "ok")

	rec := doJSON(router, http.MethodPost, "/api/chat/00000000-0000-0000-0000-000000000000/message", map[string]any{
		"message": "hello",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body: %s", rec.Code, rec.Body.String())
	}
}
