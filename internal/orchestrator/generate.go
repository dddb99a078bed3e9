package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/llm"
)

// stageGenerate builds a bounded system prompt from the agent's profile and
// any retrieved context, then asks the LLM for a reply. Any failure falls
// back to fallbackReply rather than surfacing an error to the end user.
func (o *Orchestrator) stageGenerate(ctx context.Context, state *TurnState) {
	start := time.Now()
	defer o.trackStage("generate", start, state)

	system := buildSystemPrompt(state.Agent, state.RetrievedContext)

	messages := make([]llm.Message, 0, o.cfg.HistoryWindow+2)
	messages = append(messages, llm.Structured(llm.RoleSystem, system))

	history := state.History
	if len(history) > o.cfg.HistoryWindow {
		history = history[len(history)-o.cfg.HistoryWindow:]
	}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Structured(role, m.Content))
	}
	messages = append(messages, llm.Structured(llm.RoleUser, state.IncomingText))

	reply, err := o.llm.Chat(ctx, messages, llm.ChatOptions{})
	if err != nil {
		o.log.Warn("generation failed, using fallback reply", zap.Error(err))
		state.ReplyText = fallbackReply
		return
	}
	state.ReplyText = reply
}

// buildSystemPrompt renders tone, company description, product catalog, and
// retrieved context into a compact system prompt. Structured product
// references are rendered by ID since resolving them to full records would
// require a store dependency this package deliberately doesn't have.
func buildSystemPrompt(agent *domain.Agent, retrieved string) string {
	var sb strings.Builder

	sb.WriteString("You are a ")
	if agent.Tone != "" {
		sb.WriteString(string(agent.Tone))
		sb.WriteString(" ")
	}
	sb.WriteString("sales assistant for ")
	sb.WriteString(agent.CompanyName)
	sb.WriteString(". ")
	if agent.CompanyDescription != "" {
		sb.WriteString(agent.CompanyDescription)
		sb.WriteString(" ")
	}
	if agent.SalesStrategy != "" {
		sb.WriteString("Sales approach: ")
		sb.WriteString(agent.SalesStrategy)
		sb.WriteString(". ")
	}

	if len(agent.Products) > 0 {
		sb.WriteString("Products: ")
		for i, p := range agent.Products {
			if i > 0 {
				sb.WriteString(", ")
			}
			switch p.Kind {
			case domain.ProductRefString:
				sb.WriteString(p.Text)
			case domain.ProductRefStructured:
				sb.WriteString(p.ProductID.String())
			}
		}
		sb.WriteString(". ")
	}

	if retrieved != "" {
		sb.WriteString("Relevant context:\n")
		sb.WriteString(retrieved)
	}

	prompt := sb.String()
	if len(prompt) > systemPromptCharCap {
		prompt = prompt[:systemPromptCharCap]
	}
	return prompt
}

const systemPromptCharCap = 800 // ~200 tokens at a conservative 4 chars/token
