// Package builder runs the structured, multi-phase dialogue that
// incrementally fills out an agent specification and then materializes it:
// an Agent row, its Products, and one ingestion job per training artifact.
// Grounded on the orchestrator's deterministic-parsing style (regex-based
// extraction rather than an LLM call per field) — the builder asks one
// well-scoped question per turn and never needs the model to understand
// free-form structure, only to read it.
package builder

import (
	"github.com/google/uuid"

	"github.com/salesagentco/platform/internal/domain"
)

// Phase is a step in the builder's fixed phase machine.
type Phase string

const (
	PhaseAgentInfo Phase = "agent_info"
	PhaseProducts  Phase = "products"
	PhaseTraining  Phase = "training"
	PhaseComplete  Phase = "complete"
)

// AgentAccumulator holds the agent_info phase's collected fields. Pointers
// distinguish "not yet provided" from "explicitly empty".
type AgentAccumulator struct {
	AgentName          *string
	CompanyName        *string
	CompanyDescription *string
	Tone               *domain.Tone
	ContactEmail       *string // opportunistically captured from any reply, any phase
}

// ProductDraft is one product entry accumulated during the products phase.
type ProductDraft struct {
	Name        string
	Description string
	Price       float64
}

// TrainingAccumulator holds the training phase's collected artifacts.
// Documents uploaded mid-builder land directly in Files as pending
// references (their ingestion is enqueued immediately, not deferred to
// materialize).
type TrainingAccumulator struct {
	URLs  []string
	FAQs  []domain.FAQPair
	Files []uuid.UUID // training_data rows already created and enqueued
}

// Accumulator is the full in-progress agent specification.
type Accumulator struct {
	Agent    AgentAccumulator
	Products []ProductDraft
	Training TrainingAccumulator
}

// State is the builder's persisted per-session progress.
type State struct {
	Phase       Phase
	Accumulator Accumulator
}

// NewState starts a fresh builder session at the first phase.
func NewState() *State {
	return &State{Phase: PhaseAgentInfo}
}

// StepResult is what Advance returns each turn.
type StepResult struct {
	Prompt     string
	State      *State
	IsComplete bool
	AgentID    *uuid.UUID // set only on the turn that transitions into complete
}
