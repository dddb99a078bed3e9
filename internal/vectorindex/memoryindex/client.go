// Package memoryindex is an in-process, brute-force vectorindex.Client used
// in local/dev mode and by tests. It is grounded on picoclaw's pkg/memory
// VectorStore — a collection abstraction with metadata-filtered query and
// score-descending sort — reimplemented over plain cosine similarity instead
// of an embedded vector database, since the platform always treats the
// index as an external, swappable service.
package memoryindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/vectorindex"
)

type collection struct {
	mu      sync.RWMutex
	entries map[string]domain.VectorEntry
}

// Client holds one collection per namespace, each guarded independently.
type Client struct {
	mu          sync.Mutex
	collections map[string]*collection
}

// New returns an empty memoryindex Client.
func New() *Client {
	return &Client{collections: make(map[string]*collection)}
}

var _ vectorindex.Client = (*Client)(nil)

func (c *Client) EnsureCollection(ctx context.Context, namespace string, dim int, metric vectorindex.Metric) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[namespace]; !ok {
		c.collections[namespace] = &collection{entries: make(map[string]domain.VectorEntry)}
	}
	return nil
}

func (c *Client) collectionFor(namespace string) *collection {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.collections[namespace]
	if !ok {
		col = &collection{entries: make(map[string]domain.VectorEntry)}
		c.collections[namespace] = col
	}
	return col
}

func (c *Client) Upsert(ctx context.Context, namespace string, entries []domain.VectorEntry) error {
	col := c.collectionFor(namespace)
	col.mu.Lock()
	defer col.mu.Unlock()
	for _, e := range entries {
		col.entries[e.ID] = e
	}
	return nil
}

func (c *Client) Search(ctx context.Context, namespace string, query []float32, topK int, filter vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	col := c.collectionFor(namespace)
	col.mu.RLock()
	defer col.mu.RUnlock()

	var scored []vectorindex.SearchResult
	for _, e := range col.entries {
		if !matches(e.Payload, filter) {
			continue
		}
		scored = append(scored, vectorindex.SearchResult{
			Entry: e,
			Score: cosineSimilarity(query, e.Vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (c *Client) DeleteByFilter(ctx context.Context, namespace string, filter vectorindex.Filter) error {
	col := c.collectionFor(namespace)
	col.mu.Lock()
	defer col.mu.Unlock()
	for id, e := range col.entries {
		if matches(e.Payload, filter) {
			delete(col.entries, id)
		}
	}
	return nil
}

func (c *Client) HealthCheck(ctx context.Context) error { return nil }

func matches(p domain.VectorPayload, f vectorindex.Filter) bool {
	if f.AgentID != "" && p.AgentID != f.AgentID {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.SourceID != "" && p.SourceID != f.SourceID {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
