// Package httpindex implements vectorindex.Client against an external
// Pinecone-style ANN service over plain HTTP/JSON. Request shaping, the
// functional-options constructor, and the do() status-code mapping are
// carried over from the teacher's pkg/client HTTP-wrapper conventions.
package httpindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/vectorindex"
)

// Client talks to an external vector index over HTTP. Collection
// provisioning is deduplicated per-namespace by vectorindex.WithEnsureOnce,
// which cmd/server wraps around the index client, not inside this type.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (e.g. to tune timeouts).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client against baseURL, authenticating with apiKey via the
// Authorization header.
func New(baseURL, apiKey string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ vectorindex.Client = (*Client)(nil)

func (c *Client) EnsureCollection(ctx context.Context, namespace string, dim int, metric vectorindex.Metric) error {
	payload := map[string]any{
		"name":      namespace,
		"dimension": dim,
		"metric":    string(metric),
	}
	_, err := c.do(ctx, http.MethodPost, "/collections", payload)
	if err != nil {
		return fmt.Errorf("%w: ensure collection %s: %v", vectorindex.ErrRetrievalUnavailable, namespace, err)
	}
	return nil
}

func (c *Client) Upsert(ctx context.Context, namespace string, entries []domain.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	vectors := make([]wireVector, 0, len(entries))
	for _, e := range entries {
		vectors = append(vectors, wireVector{
			ID:       e.ID,
			Values:   e.Vector,
			Metadata: payloadToMetadata(e.Payload),
		})
	}
	payload := map[string]any{"namespace": namespace, "vectors": vectors}
	_, err := c.do(ctx, http.MethodPost, "/vectors/upsert", payload)
	if err != nil {
		return fmt.Errorf("%w: upsert into %s: %v", vectorindex.ErrRetrievalUnavailable, namespace, err)
	}
	return nil
}

func (c *Client) Search(ctx context.Context, namespace string, query []float32, topK int, filter vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	payload := map[string]any{
		"namespace": namespace,
		"vector":    query,
		"topK":      topK,
		"filter":    filterToMetadata(filter),
	}
	body, err := c.do(ctx, http.MethodPost, "/query", payload)
	if err != nil {
		c.log.Warn("vector search unavailable", zap.String("namespace", namespace), zap.Error(err))
		return nil, fmt.Errorf("%w: search %s: %v", vectorindex.ErrRetrievalUnavailable, namespace, err)
	}

	var resp struct {
		Matches []struct {
			ID       string            `json:"id"`
			Score    float32           `json:"score"`
			Values   []float32         `json:"values"`
			Metadata map[string]string `json:"metadata"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	out := make([]vectorindex.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		out = append(out, vectorindex.SearchResult{
			Score: m.Score,
			Entry: domain.VectorEntry{
				ID:      m.ID,
				Vector:  m.Values,
				Payload: metadataToPayload(m.Metadata),
			},
		})
	}
	return out, nil
}

func (c *Client) DeleteByFilter(ctx context.Context, namespace string, filter vectorindex.Filter) error {
	payload := map[string]any{"namespace": namespace, "filter": filterToMetadata(filter)}
	_, err := c.do(ctx, http.MethodPost, "/vectors/delete", payload)
	if err != nil {
		return fmt.Errorf("%w: delete from %s: %v", vectorindex.ErrRetrievalUnavailable, namespace, err)
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", vectorindex.ErrRetrievalUnavailable, err)
	}
	return nil
}

type wireVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

func payloadToMetadata(p domain.VectorPayload) map[string]string {
	return map[string]string{
		"agent_id":    p.AgentID,
		"type":        string(p.Type),
		"source_id":   p.SourceID,
		"chunk_index": fmt.Sprintf("%d", p.ChunkIndex),
		"text":        p.Text,
	}
}

func metadataToPayload(m map[string]string) domain.VectorPayload {
	var chunkIndex int
	fmt.Sscanf(m["chunk_index"], "%d", &chunkIndex)
	return domain.VectorPayload{
		AgentID:    m["agent_id"],
		Type:       domain.TrainingType(m["type"]),
		SourceID:   m["source_id"],
		ChunkIndex: chunkIndex,
		Text:       m["text"],
	}
}

func filterToMetadata(f vectorindex.Filter) map[string]string {
	out := map[string]string{"agent_id": f.AgentID}
	if f.Type != "" {
		out["type"] = string(f.Type)
	}
	if f.SourceID != "" {
		out["source_id"] = f.SourceID
	}
	return out
}

// do executes an HTTP JSON request against the index service and returns the
// raw response body, mapping transport failures and non-2xx responses to a
// single error so callers don't need per-status branching.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("index service returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
