package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel        = "claude-sonnet-4-5-20250929"
	defaultMaxTokens    = 1024
	defaultChatTimeout  = 15 * time.Second
	defaultEmbedTimeout = 10 * time.Second
	// embedDimensions is the fixed width of the stand-in embedding below.
	embedDimensions = 256
)

// AnthropicClient implements Client against the Claude API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropicClient builds a Client authenticated with an Anthropic API key.
// model and maxTokens default (when empty/zero) to defaultModel and
// defaultMaxTokens; callers normally pass the values resolved from
// config.Config's LLM_CHAT_MODEL/LLM_MAX_TOKENS/LLM_TEMPERATURE.
func NewAnthropicClient(apiKey, model string, maxTokens int, temperature float64) *AnthropicClient {
	c := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL("https://api.anthropic.com"),
	)
	if model == "" {
		model = defaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicClient{client: &c, model: model, maxTokens: maxTokens, temperature: temperature}
}

var _ Client = (*AnthropicClient)(nil)

func (a *AnthropicClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultChatTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = a.model
	}
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(a.maxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = a.temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	var system []anthropic.TextBlockParam
	for _, m := range NormalizeMessages(messages) {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(system) > 0 {
		params.System = system
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.AsText().Text
		}
	}
	return content, nil
}

// Embed produces a deterministic pseudo-embedding for text. The Anthropic
// Messages API has no embeddings endpoint, and none of the example
// repositories bundle an embeddings-capable client, so this falls back to a
// hashed bag-of-shingles projection: stable across calls (required for
// reproducible retrieval in tests), cheap, and good enough for the
// brute-force memoryindex backend. Swapping in a real embeddings provider
// only requires a second Client implementation.
func (a *AnthropicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	_, cancel := context.WithTimeout(ctx, defaultEmbedTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, embedDimensions)
	shingles := shingle(text, 3)
	if len(shingles) == 0 {
		return vec, nil
	}
	for _, s := range shingles {
		sum := sha256.Sum256([]byte(s))
		idx := binary.BigEndian.Uint32(sum[0:4]) % embedDimensions
		sign := float32(1)
		if sum[4]%2 == 0 {
			sign = -1
		}
		vec[idx] += sign
	}
	normalize(vec)
	return vec, nil
}

func shingle(text string, n int) []string {
	runes := []rune(text)
	if len(runes) < n {
		if len(runes) == 0 {
			return nil
		}
		return []string{string(runes)}
	}
	out := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		out = append(out, string(runes[i:i+n]))
	}
	return out
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sumSq))
	for i := range vec {
		vec[i] *= norm
	}
}

// classifyError maps an anthropic-sdk-go error into one of this package's
// typed Kind sentinels so callers can branch without string matching.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error())
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.Error())
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", ErrInvalidRequest, apiErr.Error())
		}
		if apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %s", ErrServer, apiErr.Error())
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
