//go:build integration

package webhooks_test

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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/webhooks"
)

func setupRouter(t *testing.T, ownerID string) *gin.Engine {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set — skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	verifier, err := authn.NewVerifier(authn.Config{DevMode: true, DevCallerID: ownerID})
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}

	repo := webhooks.NewRepository(pool)
	svc := webhooks.NewService(repo, zap.NewNop())
	h := webhooks.NewHandler(svc, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	h.Register(api, verifier)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSubscription_returnsSecretOnce(t *testing.T) {
	router := setupRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodPost, "/api/webhooks", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{webhooks.EventLeadQualified},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Secret       string                        `json:"secret"`
			Subscription *webhooks.WebhookSubscription `json:"subscription"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Secret == "" {
		t.Error("expected a non-empty secret")
	}
	if resp.Data.Subscription.ID.String() == "" {
		t.Error("expected a subscription id")
	}
}

func TestCreateSubscription_invalidURLReturns400(t *testing.T) {
	router := setupRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodPost, "/api/webhooks", map[string]any{
		"url":    "not-a-url",
		"events": []string{webhooks.EventLeadQualified},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestListSubscriptions_onlyReturnsCallersOwn(t *testing.T) {
	routerA := setupRouter(t, "owner-a-"+t.Name())
	routerB := setupRouter(t, "owner-b-"+t.Name())

	doJSON(routerA, http.MethodPost, "/api/webhooks", map[string]any{
		"url":    "https://example.com/a",
		"events": []string{webhooks.EventLeadQualified},
	})
	doJSON(routerB, http.MethodPost, "/api/webhooks", map[string]any{
		"url":    "https://example.com/b",
		"events": []string{webhooks.EventLeadQualified},
	})

	rec := doJSON(routerA, http.MethodGet, "/api/webhooks", nil)
	var resp struct {
		Data struct {
			Subscriptions []*webhooks.WebhookSubscription `json:"subscriptions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, sub := range resp.Data.Subscriptions {
		if sub.URL == "https://example.com/b" {
			t.Error("owner A's subscription list leaked owner B's subscription")
		}
	}
}

func TestDeleteSubscription_byNonOwnerReturns403(t *testing.T) {
	router := setupRouter(t, "owner-a-"+t.Name())

	createRec := doJSON(router, http.MethodPost, "/api/webhooks", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{webhooks.EventLeadQualified},
	})
	var created struct {
		Data struct {
			Subscription *webhooks.WebhookSubscription `json:"subscription"`
		} `json:"data"`
	}
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}

	otherRouter := setupRouter(t, "owner-b-"+t.Name())
	rec := doJSON(otherRouter, http.MethodDelete, "/api/webhooks/"+created.Data.Subscription.ID.String(), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body: %s", rec.Code, rec.Body.String())
	}
}
