//go:build integration

package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/registry/handler"
	"github.com/salesagentco/platform/internal/store"
)

func setupOrderRouter(t *testing.T, ownerID string) (*gin.Engine, *store.Store) {
	router, st := setupRouter(t, ownerID)

	verifier, err := authn.NewVerifier(authn.Config{DevMode: true, DevCallerID: ownerID})
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	handler.NewOrderHandler(st, zap.NewNop()).Register(router.Group("/api"), verifier)
	return router, st
}

func createTestAgent(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rec := doJSON(router, http.MethodPost, "/api/agents", map[string]any{
		"name":         "Closer Bot",
		"company_name": "Acme Co",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create agent: status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal create agent response: %v", err)
	}
	return resp.Data.ID
}

func TestCreateOrder_computesTotalAmount(t *testing.T) {
	router, _ := setupOrderRouter(t, "owner-"+t.Name())
	agentID := createTestAgent(t, router)

	rec := doJSON(router, http.MethodPost, "/api/orders", map[string]any{
		"agent_id":      agentID,
		"customer_name": "Jane Doe",
		"items": []map[string]any{
			{"name": "Widget", "quantity": 2, "unit_price": 9.5},
			{"name": "Gadget", "quantity": 1, "unit_price": 20},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			OrderNumber string  `json:"order_number"`
			TotalAmount float64 `json:"total_amount"`
			Status      string  `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.TotalAmount != 39 {
		t.Errorf("total_amount = %v, want 39", resp.Data.TotalAmount)
	}
	if resp.Data.Status != "pending" {
		t.Errorf("status = %q, want pending", resp.Data.Status)
	}
	if resp.Data.OrderNumber == "" {
		t.Error("expected a non-empty order number")
	}
}

func TestTrackOrder_malformedNumberReturns400(t *testing.T) {
	router, _ := setupOrderRouter(t, "owner-"+t.Name())

	rec := doJSON(router, http.MethodGet, "/api/orders/track/not-a-valid-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStatus_illegalTransitionReturns409(t *testing.T) {
	router, _ := setupOrderRouter(t, "owner-"+t.Name())
	agentID := createTestAgent(t, router)

	createRec := doJSON(router, http.MethodPost, "/api/orders", map[string]any{
		"agent_id":      agentID,
		"customer_name": "Jane Doe",
		"items": []map[string]any{
			{"name": "Widget", "quantity": 1, "unit_price": 5},
		},
	})
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create order response: %v", err)
	}

	rec := doJSON(router, http.MethodPatch, "/api/orders/"+created.Data.ID+"/status", map[string]any{
		"status": "delivered",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body: %s", rec.Code, rec.Body.String())
	}
}
