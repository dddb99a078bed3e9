package orchestrator

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/llm"
	"github.com/salesagentco/platform/internal/vectorindex"
)

type stubLLM struct {
	chatReply string
	chatErr   error
	embedVec  []float32
	embedErr  error
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	return s.chatReply, s.chatErr
}

func (s *stubLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedVec, s.embedErr
}

type stubIndex struct {
	results []vectorindex.SearchResult
	err     error
}

func (s *stubIndex) EnsureCollection(ctx context.Context, namespace string, dim int, metric vectorindex.Metric) error {
	return nil
}
func (s *stubIndex) Upsert(ctx context.Context, namespace string, entries []domain.VectorEntry) error {
	return nil
}
func (s *stubIndex) Search(ctx context.Context, namespace string, query []float32, topK int, filter vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	return s.results, s.err
}
func (s *stubIndex) DeleteByFilter(ctx context.Context, namespace string, filter vectorindex.Filter) error {
	return nil
}
func (s *stubIndex) HealthCheck(ctx context.Context) error { return nil }

func testAgent() *domain.Agent {
	return &domain.Agent{
		ID:              uuid.New(),
		CompanyName:     "Acme Corp",
		Tone:            domain.ToneFriendly,
		GreetingMessage: "Welcome to Acme!",
	}
}

func TestRun_GreetingShortCircuits(t *testing.T) {
	o := New(&stubLLM{}, &stubIndex{}, zap.NewNop(), Config{}, func(ctx context.Context, agentID string) (bool, error) {
		return false, nil
	})

	state := &TurnState{Agent: testAgent(), IncomingText: "hello"}
	result, err := o.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ReplyText != "Welcome to Acme!" {
		t.Errorf("reply = %q, want greeting", result.ReplyText)
	}
	if _, ok := result.Timings["classify_intent"]; ok {
		t.Error("classify_intent stage should not have run on greeting short-circuit")
	}
}

func TestRun_FullPipelineFallsBackOnLLMFailure(t *testing.T) {
	o := New(&stubLLM{chatErr: llm.ErrServer}, &stubIndex{}, zap.NewNop(), Config{}, func(ctx context.Context, agentID string) (bool, error) {
		return false, nil
	})

	state := &TurnState{
		Agent:        testAgent(),
		IncomingText: "tell me about your product",
		History:      []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
	}
	result, err := o.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ReplyText != fallbackReply {
		t.Errorf("reply = %q, want fallback", result.ReplyText)
	}
	if _, ok := result.Timings["generate"]; !ok {
		t.Error("generate stage should have run")
	}
}

func TestRun_SkipsRetrievalWhenNoVectors(t *testing.T) {
	index := &stubIndex{results: []vectorindex.SearchResult{
		{Entry: domain.VectorEntry{Payload: domain.VectorPayload{Text: "should not be used"}}, Score: 0.9},
	}}
	o := New(&stubLLM{chatReply: "a reply"}, index, zap.NewNop(), Config{}, func(ctx context.Context, agentID string) (bool, error) {
		return false, nil
	})

	state := &TurnState{
		Agent:        testAgent(),
		IncomingText: "what do you sell?",
		History:      []domain.ChatMessage{{Role: domain.RoleUser, Content: "hi"}},
	}
	if _, err := o.Run(context.Background(), state); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.RetrievedContext != "" {
		t.Errorf("retrieved context = %q, want empty when agent has no vectors", state.RetrievedContext)
	}
}

func TestRun_QualifiesLeadAfterThreshold(t *testing.T) {
	llmClient := &stubLLM{
		chatReply: `{"name":"Jane","email":"jane@example.com","phone":null,"company":null,"interest_level":"high"}`,
		embedVec:  []float32{0.1, 0.2},
	}
	o := New(llmClient, &stubIndex{}, zap.NewNop(), Config{}, func(ctx context.Context, agentID string) (bool, error) {
		return false, nil
	})

	history := make([]domain.ChatMessage, Config{}.withDefaults().LeadQualifyThreshold)
	for i := range history {
		history[i] = domain.ChatMessage{Role: domain.RoleUser, Content: "hi"}
	}
	state := &TurnState{Agent: testAgent(), IncomingText: "I'm Jane, interested", History: history}

	result, err := o.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.LeadDelta.Name == nil || *result.LeadDelta.Name != "Jane" {
		t.Errorf("lead name = %v, want Jane", result.LeadDelta.Name)
	}
}
