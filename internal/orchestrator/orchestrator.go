// Package orchestrator runs the staged reply pipeline: classify intent,
// retrieve grounding context, generate a reply, and extract lead data. Each
// stage is a plain method on Orchestrator rather than a graph library —
// the DAG here is five nodes in a fixed order with two early-exit branches,
// which doesn't earn its own dependency.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/llm"
	"github.com/salesagentco/platform/internal/vectorindex"
)

const (
	turnBudget       = 15 * time.Second
	retrievalCharCap = 1500
	fallbackReply    = "I'm having trouble right now, please try again shortly."
)

// Config tunes the pipeline's tunable stage parameters (spec §6). Zero
// values fall back to the same defaults the pipeline used before these were
// made configurable.
type Config struct {
	HistoryWindow        int
	LeadQualifyThreshold int
	RetrievalTopK        int
	RetrievalScoreFloor  float64
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 4
	}
	if c.LeadQualifyThreshold <= 0 {
		c.LeadQualifyThreshold = 5
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 3
	}
	if c.RetrievalScoreFloor <= 0 {
		c.RetrievalScoreFloor = 0.5
	}
	return c
}

// Intent is the closed set a turn's incoming text classifies into.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentProductInquiry Intent = "product_inquiry"
	IntentPricing        Intent = "pricing"
	IntentAvailability   Intent = "availability"
	IntentSupport        Intent = "support"
	IntentObjection      Intent = "objection"
	IntentPurchaseIntent Intent = "purchase_intent"
	IntentLeadCapture    Intent = "lead_capture"
	IntentSmalltalk      Intent = "smalltalk"
	IntentOther          Intent = "other"
)

// TurnState is the mutable context threaded through every stage.
type TurnState struct {
	Agent            *domain.Agent
	IncomingText     string
	History          []domain.ChatMessage
	ExistingLeadInfo domain.LeadInfo // lead data already on record for this conversation
	ClassifiedIntent Intent
	RetrievedContext string // empty means "none"
	ReplyText        string
	LeadDelta        domain.LeadInfo // ExistingLeadInfo merged with anything newly extracted this turn
	PerStageTimings  map[string]time.Duration
}

// TurnResult is what Run returns: the generated reply and the lead data,
// already merged with the existing lead info, ready for the caller to persist.
type TurnResult struct {
	ReplyText string
	LeadDelta domain.LeadInfo
	Timings   map[string]time.Duration
}

// Orchestrator executes the five-stage pipeline against an LLM and a vector
// index. It holds no per-conversation state; TurnState carries everything.
type Orchestrator struct {
	llm   llm.Client
	index vectorindex.Client
	log   *zap.Logger
	cfg   Config

	// hasVectors reports whether the given agent has any indexed training
	// data, used by stage 3's skip condition. Injected so the store package
	// is not a direct dependency of orchestrator.
	hasVectors func(ctx context.Context, agentID string) (bool, error)
}

// New builds an Orchestrator. cfg's zero value is a valid, fully-defaulted
// configuration.
func New(llmClient llm.Client, index vectorindex.Client, log *zap.Logger, cfg Config, hasVectors func(ctx context.Context, agentID string) (bool, error)) *Orchestrator {
	return &Orchestrator{llm: llmClient, index: index, log: log, cfg: cfg.withDefaults(), hasVectors: hasVectors}
}

// Run executes all stages against state and returns the resulting reply and
// lead delta. Exactly one assistant turn is produced regardless of failures
// encountered along the way.
func (o *Orchestrator) Run(ctx context.Context, state *TurnState) (*TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, turnBudget)
	defer cancel()

	state.PerStageTimings = make(map[string]time.Duration)

	if o.stageGreeting(state) {
		o.logTimings(state)
		return &TurnResult{ReplyText: state.ReplyText, LeadDelta: state.LeadDelta, Timings: state.PerStageTimings}, nil
	}

	o.stageClassifyIntent(state)
	o.stageRetrieve(ctx, state)
	o.stageGenerate(ctx, state)
	o.stageQualifyLead(ctx, state)

	o.logTimings(state)
	return &TurnResult{ReplyText: state.ReplyText, LeadDelta: state.LeadDelta, Timings: state.PerStageTimings}, nil
}

func (o *Orchestrator) trackStage(name string, start time.Time, state *TurnState) {
	state.PerStageTimings[name] = time.Since(start)
}

// stageGreeting short-circuits the pipeline when this is the first turn of
// the conversation and the agent has a configured greeting. Returns true
// when it short-circuited (stages 2-5 must then be skipped).
func (o *Orchestrator) stageGreeting(state *TurnState) bool {
	start := time.Now()
	defer o.trackStage("greeting", start, state)

	if len(state.History) == 0 && state.Agent.GreetingMessage != "" {
		state.ReplyText = state.Agent.GreetingMessage
		return true
	}
	return false
}

// stageQualifyLead scans the transcript for lead data once it is long
// enough to be worth the extra LLM call; see intent.go for classification
// and lead.go for the merge/extraction helpers.
func (o *Orchestrator) stageQualifyLead(ctx context.Context, state *TurnState) {
	start := time.Now()
	defer o.trackStage("qualify_lead", start, state)

	state.LeadDelta = state.ExistingLeadInfo
	if len(state.History) < o.cfg.LeadQualifyThreshold {
		return
	}

	transcript := renderTranscript(state.History, state.IncomingText, state.ReplyText)
	prompt := fmt.Sprintf(
		"Extract lead details from this sales conversation as strict JSON with keys "+
			"name, email, phone, company, interest_level (any may be null if unknown). "+
			"Respond with JSON only, no prose.\n\n%s", transcript)

	reply, err := o.llm.Chat(ctx, []llm.Message{llm.Plain(prompt)}, llm.ChatOptions{MaxTokens: 200, Timeout: 5 * time.Second})
	if err != nil {
		o.log.Warn("lead qualification LLM call failed", zap.Error(err))
		return
	}

	extracted, err := parseLeadJSON(reply)
	if err != nil {
		o.log.Warn("lead qualification response unparsable", zap.Error(err))
		return
	}
	state.LeadDelta = MergeLeadInfo(state.ExistingLeadInfo, extracted)
}

func renderTranscript(history []domain.ChatMessage, incoming, reply string) string {
	var sb strings.Builder
	for _, m := range history {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("user: ")
	sb.WriteString(incoming)
	sb.WriteString("\n")
	if reply != "" {
		sb.WriteString("assistant: ")
		sb.WriteString(reply)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (o *Orchestrator) logTimings(state *TurnState) {
	millis := make(map[string]float64, len(state.PerStageTimings))
	for name, d := range state.PerStageTimings {
		millis[name] = float64(d.Microseconds()) / 1000
	}
	o.log.Info("turn complete",
		zap.String("intent", string(state.ClassifiedIntent)),
		zap.Any("per_stage_timings_ms", millis),
	)
}
