package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
)

// Ingester is the narrow slice of internal/ingest.Pipeline the builder
// needs: enqueue a training-data row for background processing. Kept as an
// interface so builder tests don't need a real worker pool.
type Ingester interface {
	Enqueue(trainingDataID uuid.UUID)
}

// agentCreator, productCreator, and trainingCreator are the narrow slices
// of internal/store's repositories the builder needs, following the
// teacher's per-service repository-interface convention (see
// internal/registry/service's agentRepo) so tests can stub them without a
// database.
type agentCreator interface {
	Create(ctx context.Context, a *domain.Agent) error
}

type productCreator interface {
	Create(ctx context.Context, p *domain.Product) error
}

type trainingCreator interface {
	Create(ctx context.Context, t *domain.TrainingData) error
}

// Builder runs the phase machine described in spec §4.7. It holds no
// per-session state itself; every call takes and returns a *State, which the
// caller (the conversational-builder handler) keeps in an in-process session
// map.
type Builder struct {
	agents   agentCreator
	products productCreator
	training trainingCreator
	ingester Ingester
	log      *zap.Logger
}

// New builds a Builder. agents, products, and training are typically
// *store.Store's Agents, Products, and TrainingData repositories.
func New(agents agentCreator, products productCreator, training trainingCreator, ingester Ingester, log *zap.Logger) *Builder {
	return &Builder{agents: agents, products: products, training: training, ingester: ingester, log: log}
}

// Advance consumes one user message against state and returns the next
// assistant prompt plus the (possibly advanced) state. Documents uploaded
// mid-builder are handled separately via IngestDocument, not through
// Advance's free-text path.
func (b *Builder) Advance(ctx context.Context, state *State, userMessage string) (*StepResult, error) {
	if state == nil {
		state = NewState()
	}
	captureContactEmail(state, userMessage)

	switch state.Phase {
	case PhaseAgentInfo:
		return b.stepAgentInfo(state, userMessage)
	case PhaseProducts:
		return b.stepProducts(state, userMessage)
	case PhaseTraining:
		return b.stepTraining(ctx, state, userMessage)
	case PhaseComplete:
		return &StepResult{Prompt: "Your agent is already set up.", State: state, IsComplete: true}, nil
	default:
		return nil, fmt.Errorf("builder: unknown phase %q", state.Phase)
	}
}

// IngestDocument accepts a training artifact uploaded at any phase,
// enqueuing ingestion immediately rather than waiting for materialize, and
// records the pending reference on the accumulator (spec §4.7: "document
// uploads during the builder are accepted at any phase").
func (b *Builder) IngestDocument(ctx context.Context, state *State, agentID uuid.UUID, td *domain.TrainingData) error {
	if err := b.training.Create(ctx, td); err != nil {
		return fmt.Errorf("create training data: %w", err)
	}
	b.ingester.Enqueue(td.ID)
	state.Accumulator.Training.Files = append(state.Accumulator.Training.Files, td.ID)
	return nil
}

// captureContactEmail records the first email address seen across any
// builder turn, regardless of phase — useful for notifying whoever is
// setting up the agent once materialize finishes, without making email
// capture a blocking question of its own.
func captureContactEmail(state *State, reply string) {
	if state.Accumulator.Agent.ContactEmail != nil {
		return
	}
	emails := extractEmails(reply)
	if len(emails) > 0 {
		state.Accumulator.Agent.ContactEmail = &emails[0]
	}
}

func (b *Builder) stepAgentInfo(state *State, reply string) (*StepResult, error) {
	acc := &state.Accumulator.Agent

	if acc.AgentName == nil {
		name := extractCompanyName(reply)
		if name != "" {
			acc.AgentName = &name
		}
	} else if acc.CompanyName == nil {
		name := extractCompanyName(reply)
		if name != "" {
			acc.CompanyName = &name
		}
	} else if acc.CompanyDescription == nil {
		desc := strings.TrimSpace(reply)
		if desc != "" {
			acc.CompanyDescription = &desc
		}
	} else if acc.Tone == nil {
		if tone, ok := extractTone(reply); ok {
			acc.Tone = &tone
		} else {
			tone := domain.ToneFriendly
			acc.Tone = &tone
		}
	}

	if acc.AgentName == nil {
		return &StepResult{Prompt: "What would you like to name your sales agent?", State: state}, nil
	}
	if acc.CompanyName == nil {
		return &StepResult{Prompt: "What's your company called?", State: state}, nil
	}
	if acc.CompanyDescription == nil {
		return &StepResult{Prompt: "In a sentence or two, what does your company sell?", State: state}, nil
	}
	if acc.Tone == nil {
		return &StepResult{Prompt: "What tone should your agent use — friendly, professional, casual, or formal?", State: state}, nil
	}

	state.Phase = PhaseProducts
	return &StepResult{Prompt: "Great. Want to add any products now? Tell me a name and price, or say \"skip\".", State: state}, nil
}

func (b *Builder) stepProducts(state *State, reply string) (*StepResult, error) {
	if isNegative(reply) {
		state.Phase = PhaseTraining
		return &StepResult{Prompt: "Got it, no products for now. Do you have any URLs, FAQs, or documents to train your agent on? Say \"skip\" if not.", State: state}, nil
	}

	price, _ := extractPrice(reply)
	name := strings.TrimSpace(priceRe.ReplaceAllString(extractCompanyName(reply), ""))
	if name != "" {
		state.Accumulator.Products = append(state.Accumulator.Products, ProductDraft{
			Name:  name,
			Price: price,
		})
	}

	return &StepResult{Prompt: "Added. Another product? Say \"skip\" when you're done.", State: state}, nil
}

func (b *Builder) stepTraining(ctx context.Context, state *State, reply string) (*StepResult, error) {
	if isFinishSignal(reply) {
		return b.transitionToComplete(ctx, state)
	}

	urls := extractURLs(reply)
	state.Accumulator.Training.URLs = append(state.Accumulator.Training.URLs, urls...)

	if len(urls) == 0 {
		// Not a URL and not a negative reply: treat it as a free-text FAQ
		// answer to whatever question was most recently implied isn't
		// tracked here, so fold it in as a standalone FAQ note instead.
		trimmed := strings.TrimSpace(reply)
		if trimmed != "" {
			state.Accumulator.Training.FAQs = append(state.Accumulator.Training.FAQs, domain.FAQPair{
				Question: "General info",
				Answer:   trimmed,
			})
		}
	}

	return &StepResult{Prompt: "Noted. Anything else to train on, or shall I finish setting up your agent? Say \"done\" to finish.", State: state}, nil
}

func (b *Builder) transitionToComplete(ctx context.Context, state *State) (*StepResult, error) {
	agentID, err := b.materialize(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("materialize agent: %w", err)
	}
	state.Phase = PhaseComplete
	return &StepResult{
		Prompt:     "Your agent is live! You can start chatting with it right away.",
		State:      state,
		IsComplete: true,
		AgentID:    &agentID,
	}, nil
}

// materialize creates the Agent and Product rows from the accumulated
// state and enqueues one ingestion job per URL/FAQ training artifact.
// Documents uploaded mid-builder were already enqueued by IngestDocument.
func (b *Builder) materialize(ctx context.Context, state *State) (uuid.UUID, error) {
	acc := state.Accumulator

	agent := &domain.Agent{
		Name:               valueOr(acc.Agent.AgentName, "New Agent"),
		CompanyName:        valueOr(acc.Agent.CompanyName, ""),
		CompanyDescription: valueOr(acc.Agent.CompanyDescription, ""),
		Tone:               toneOr(acc.Agent.Tone, domain.ToneFriendly),
		IsActive:           true,
	}
	if err := b.agents.Create(ctx, agent); err != nil {
		return uuid.Nil, fmt.Errorf("create agent: %w", err)
	}
	if acc.Agent.ContactEmail != nil {
		b.log.Info("agent builder completed", zap.String("agent_id", agent.ID.String()), zap.String("contact_email", *acc.Agent.ContactEmail))
	}

	for _, draft := range acc.Products {
		product := &domain.Product{
			AgentID: agent.ID,
			Name:    draft.Name,
			Price:   draft.Price,
		}
		if err := b.products.Create(ctx, product); err != nil {
			b.log.Warn("create product during materialize", zap.String("agent_id", agent.ID.String()), zap.Error(err))
			continue
		}
	}

	for _, url := range acc.Training.URLs {
		td := &domain.TrainingData{
			AgentID:  agent.ID,
			Type:     domain.TrainingURL,
			Metadata: map[string]any{"url": url},
		}
		b.enqueueTraining(ctx, td)
	}

	if len(acc.Training.FAQs) > 0 {
		faqs := make([]any, 0, len(acc.Training.FAQs))
		for _, pair := range acc.Training.FAQs {
			faqs = append(faqs, map[string]any{"question": pair.Question, "answer": pair.Answer})
		}
		td := &domain.TrainingData{
			AgentID:  agent.ID,
			Type:     domain.TrainingFAQ,
			Metadata: map[string]any{"faqs": faqs},
		}
		b.enqueueTraining(ctx, td)
	}

	return agent.ID, nil
}

func (b *Builder) enqueueTraining(ctx context.Context, td *domain.TrainingData) {
	if err := b.training.Create(ctx, td); err != nil {
		b.log.Warn("create training data during materialize", zap.String("agent_id", td.AgentID.String()), zap.Error(err))
		return
	}
	b.ingester.Enqueue(td.ID)
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func toneOr(t *domain.Tone, fallback domain.Tone) domain.Tone {
	if t == nil {
		return fallback
	}
	return *t
}
