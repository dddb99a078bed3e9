// Package llm defines the narrow chat/embedding contract the platform needs
// from a language-model provider and ships one concrete implementation
// wrapping github.com/anthropics/anthropic-sdk-go, grounded on picoclaw's
// pkg/providers.ClaudeProvider.
package llm

import (
	"context"
	"errors"
	"time"
)

// Role mirrors the provider-agnostic speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind distinguishes the two shapes a Message may take, per the
// tagged-union design for conversational content.
type MessageKind int

const (
	// MessageKindPlain carries only Content, with RoleUser implied.
	MessageKindPlain MessageKind = iota
	// MessageKindStructured carries an explicit Role and Content.
	MessageKindStructured
)

// Message is a tagged union: Plain(text) | Structured{Role, Content}.
// Construct with Plain or Structured rather than the struct literal.
type Message struct {
	Kind    MessageKind
	Role    Role
	Content string
}

// Plain builds an unstructured user message.
func Plain(text string) Message { return Message{Kind: MessageKindPlain, Role: RoleUser, Content: text} }

// Structured builds a message with an explicit role.
func Structured(role Role, text string) Message {
	return Message{Kind: MessageKindStructured, Role: role, Content: text}
}

// NormalizeMessages resolves every Message to its effective Role, defaulting
// plain messages to RoleUser. Callers downstream only ever see the
// normalized (Role, Content) pairs.
func NormalizeMessages(msgs []Message) []NormalizedMessage {
	out := make([]NormalizedMessage, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if m.Kind == MessageKindPlain {
			role = RoleUser
		}
		out = append(out, NormalizedMessage{Role: role, Content: m.Content})
	}
	return out
}

// NormalizedMessage is the resolved (Role, Content) pair NormalizeMessages
// produces.
type NormalizedMessage struct {
	Role    Role
	Content string
}

// ChatOptions tunes a single Chat call. Zero values fall back to the
// client's configured defaults.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Typed error kinds returned by Client implementations so callers can
// distinguish retryable failures from permanent ones without string
// matching, mirroring the teacher's Kind-based error taxonomy.
var (
	ErrTransient      = errors.New("llm: transient failure, retry")
	ErrRateLimited    = errors.New("llm: rate limited")
	ErrInvalidRequest = errors.New("llm: invalid request")
	ErrAuth           = errors.New("llm: authentication failed")
	ErrServer         = errors.New("llm: provider server error")
)

// Client is the contract every LLM provider implements.
type Client interface {
	// Chat sends messages and returns the assistant's reply text.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)

	// Embed returns a dense vector representation of text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
