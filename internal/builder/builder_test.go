package builder_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/builder"
	"github.com/salesagentco/platform/internal/domain"
)

type stubAgents struct {
	created []*domain.Agent
}

func (s *stubAgents) Create(ctx context.Context, a *domain.Agent) error {
	a.ID = uuid.New()
	s.created = append(s.created, a)
	return nil
}

type stubProducts struct {
	created []*domain.Product
}

func (s *stubProducts) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New()
	s.created = append(s.created, p)
	return nil
}

type stubTraining struct {
	created []*domain.TrainingData
}

func (s *stubTraining) Create(ctx context.Context, t *domain.TrainingData) error {
	t.ID = uuid.New()
	s.created = append(s.created, t)
	return nil
}

type stubIngester struct {
	enqueued []uuid.UUID
}

func (s *stubIngester) Enqueue(id uuid.UUID) { s.enqueued = append(s.enqueued, id) }

func TestBuilder_FullFlowToComplete(t *testing.T) {
	agents := &stubAgents{}
	products := &stubProducts{}
	training := &stubTraining{}
	ingester := &stubIngester{}
	b := builder.New(agents, products, training, ingester, zap.NewNop())

	state := builder.NewState()
	ctx := context.Background()

	steps := []string{
		"Aria",
		"Acme Robotics",
		"We build friendly home robots.",
		"friendly",
		"Robo Helper $199",
		"skip",
		"https://acme.example.com/faq",
		"done",
	}

	var result *builder.StepResult
	var err error
	for _, msg := range steps {
		result, err = b.Advance(ctx, state, msg)
		if err != nil {
			t.Fatalf("Advance(%q): %v", msg, err)
		}
		state = result.State
	}

	if !result.IsComplete {
		t.Fatal("expected builder to report complete after the final step")
	}
	if result.AgentID == nil {
		t.Fatal("expected an agent id on completion")
	}
	if len(agents.created) != 1 {
		t.Fatalf("expected exactly one agent created, got %d", len(agents.created))
	}
	if agents.created[0].CompanyName != "Acme Robotics" {
		t.Errorf("company name = %q, want Acme Robotics", agents.created[0].CompanyName)
	}
	if len(products.created) != 1 {
		t.Fatalf("expected one product created, got %d", len(products.created))
	}
	if len(training.created) != 1 {
		t.Fatalf("expected one training row (the URL) created, got %d", len(training.created))
	}
	if len(ingester.enqueued) != 1 {
		t.Fatalf("expected one ingestion job enqueued, got %d", len(ingester.enqueued))
	}
}

func TestBuilder_SkipsProductsAndTraining(t *testing.T) {
	agents := &stubAgents{}
	products := &stubProducts{}
	training := &stubTraining{}
	ingester := &stubIngester{}
	b := builder.New(agents, products, training, ingester, zap.NewNop())

	state := builder.NewState()
	ctx := context.Background()

	steps := []string{"Aria", "Acme Robotics", "We sell robots.", "professional", "skip", "skip"}
	var result *builder.StepResult
	var err error
	for _, msg := range steps {
		result, err = b.Advance(ctx, state, msg)
		if err != nil {
			t.Fatalf("Advance(%q): %v", msg, err)
		}
		state = result.State
	}

	if !result.IsComplete {
		t.Fatal("expected completion after skipping products and training")
	}
	if len(products.created) != 0 {
		t.Errorf("expected no products, got %d", len(products.created))
	}
	if len(training.created) != 0 {
		t.Errorf("expected no training rows, got %d", len(training.created))
	}
}

func TestBuilder_IngestDocumentMidBuilder(t *testing.T) {
	agents := &stubAgents{}
	products := &stubProducts{}
	training := &stubTraining{}
	ingester := &stubIngester{}
	b := builder.New(agents, products, training, ingester, zap.NewNop())

	state := builder.NewState()
	td := &domain.TrainingData{Type: domain.TrainingPDF, Metadata: map[string]any{"content": "pdf bytes"}}

	if err := b.IngestDocument(context.Background(), state, uuid.New(), td); err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if len(training.created) != 1 {
		t.Fatalf("expected training row created immediately, got %d", len(training.created))
	}
	if len(ingester.enqueued) != 1 {
		t.Fatalf("expected ingestion enqueued immediately, got %d", len(ingester.enqueued))
	}
	if len(state.Accumulator.Training.Files) != 1 {
		t.Errorf("expected pending file reference recorded on accumulator")
	}
}
