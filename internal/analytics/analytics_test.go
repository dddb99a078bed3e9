//go:build integration

package analytics_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salesagentco/platform/internal/analytics"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/store"
)

func setupStore(t *testing.T) *store.Store {
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
	return st
}

func seedAgentWithConversations(t *testing.T, st *store.Store, ownerID string, sessions int, messagesPerSession int, withLead bool) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	agent := &domain.Agent{OwnerID: ownerID, Name: "Test Agent", CompanyName: "Test Co", Tone: domain.ToneFriendly, IsActive: true}
	if err := st.Agents.Create(ctx, agent); err != nil {
		t.Fatalf("create agent: %v", err)
	}

	for i := 0; i < sessions; i++ {
		conv, err := st.Conversations.GetOrCreate(ctx, agent.ID, uuid.New().String(), domain.ChannelWeb)
		if err != nil {
			t.Fatalf("get or create conversation: %v", err)
		}
		for m := 0; m < messagesPerSession; m++ {
			conv.Messages = append(conv.Messages, domain.ChatMessage{Role: domain.RoleUser, Content: "hi", Timestamp: time.Now().UTC()})
		}
		if withLead {
			name := "Jane"
			conv.LeadInfo = domain.LeadInfo{Name: &name}
		}
		if err := st.Conversations.Update(ctx, conv); err != nil {
			t.Fatalf("update conversation: %v", err)
		}
	}
	return agent.ID
}

func TestFunnel_CountsStages(t *testing.T) {
	st := setupStore(t)
	ownerID := "owner-" + uuid.New().String()
	seedAgentWithConversations(t, st, ownerID, 5, 4, true)

	svc := analytics.New(st.Pool)
	window := analytics.Window{From: time.Now().UTC().Add(-time.Hour)}
	funnel, err := svc.Funnel(context.Background(), ownerID, nil, window)
	if err != nil {
		t.Fatalf("Funnel: %v", err)
	}
	if funnel.Visitors != 5 {
		t.Errorf("visitors = %d, want 5", funnel.Visitors)
	}
	if funnel.Engaged != 5 {
		t.Errorf("engaged = %d, want 5 (4 messages each)", funnel.Engaged)
	}
	if funnel.Qualified != 5 {
		t.Errorf("qualified = %d, want 5 (lead info set)", funnel.Qualified)
	}
}

func TestAgentPerformance_SortedByConversionRateDesc(t *testing.T) {
	st := setupStore(t)
	ownerID := "owner-" + uuid.New().String()
	seedAgentWithConversations(t, st, ownerID, 2, 1, false)
	seedAgentWithConversations(t, st, ownerID, 2, 1, false)

	svc := analytics.New(st.Pool)
	window := analytics.Window{From: time.Now().UTC().Add(-time.Hour)}
	results, err := svc.AgentPerformance(context.Background(), ownerID, window)
	if err != nil {
		t.Fatalf("AgentPerformance: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].ConversionRate < results[i].ConversionRate {
			t.Errorf("results not sorted by conversion rate desc at index %d", i)
		}
	}
}
