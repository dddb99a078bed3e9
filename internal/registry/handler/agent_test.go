//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/registry/handler"
	"github.com/salesagentco/platform/internal/store"
	"github.com/salesagentco/platform/internal/vectorindex/memoryindex"
)

// setupRouter builds a real store against DATABASE_URL and a dev-mode
// verifier that attributes every request to ownerID, the same shape
// cmd/server/main.go wires in production with a real identity provider.
func setupRouter(t *testing.T, ownerID string) (*gin.Engine, *store.Store) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set — skipping integration test")
	}
	st, err := store.New(context.Background(), dsn, "")
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	t.Cleanup(st.Close)

	verifier, err := authn.NewVerifier(authn.Config{DevMode: true, DevCallerID: ownerID})
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	handler.NewAgentHandler(st, memoryindex.New(), zap.NewNop()).Register(api, verifier)

	return router, st
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer x") // dev mode accepts anything
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAgent_validPayloadReturns201(t *testing.T) {
	router, _ := setupRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodPost, "/api/agents", map[string]any{
		"name":         "Closer Bot",
		"company_name": "Acme Co",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			ID       string `json:"id"`
			Tone     string `json:"tone"`
			IsActive bool   `json:"is_active"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success=true")
	}
	if resp.Data.ID == "" {
		t.Error("expected a non-empty agent id")
	}
	if resp.Data.Tone != "friendly" {
		t.Errorf("tone = %q, want default %q", resp.Data.Tone, "friendly")
	}
	if !resp.Data.IsActive {
		t.Error("expected newly created agent to be active")
	}
}

func TestCreateAgent_missingRequiredFieldReturns400(t *testing.T) {
	router, _ := setupRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodPost, "/api/agents", map[string]any{
		"company_name": "Acme Co",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAgent_unknownIDReturns404(t *testing.T) {
	router, _ := setupRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodGet, "/api/agents/00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteAgent_byNonOwnerReturns403(t *testing.T) {
	router, _ := setupRouter(t, "owner-a-"+t.Name())

	createRec := doJSON(router, http.MethodPost, "/api/agents", map[string]any{
		"name":         "Closer Bot",
		"company_name": "Acme Co",
	})
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}

	otherRouter, _ := setupRouter(t, "owner-b-"+t.Name())
	rec := doJSON(otherRouter, http.MethodDelete, "/api/agents/"+created.Data.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body: %s", rec.Code, rec.Body.String())
	}
}
