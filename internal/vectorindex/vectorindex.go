// Package vectorindex defines the narrow contract the platform needs from a
// vector similarity index and ships two implementations: httpindex, a REST
// client against an external ANN service, and memoryindex, a brute-force
// in-process index useful for local development and tests. The interface
// shape and the driver-registry idea are grounded on agentoven's
// internal/vectorstore (contracts.VectorStoreDriver / pgvector.go); the
// brute-force query semantics follow picoclaw's pkg/memory VectorStore.
package vectorindex

import (
	"context"
	"errors"

	"github.com/salesagentco/platform/internal/domain"
)

// ErrRetrievalUnavailable is returned in place of any transport or 4xx/5xx
// failure from a backend. Orchestrator stage 3 treats it as "skip
// retrieval, continue the turn" rather than a fatal error (spec §4.2, §9).
var ErrRetrievalUnavailable = errors.New("vectorindex: retrieval unavailable")

// Metric identifies the distance function a collection is built for.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Filter narrows a Search to entries whose payload matches every set field.
// AgentID is mandatory in all call sites — it is the tenant-isolation
// boundary described in spec §8.
type Filter struct {
	AgentID  string
	Type     domain.TrainingType
	SourceID string
}

// SearchResult is one scored hit returned from Search.
type SearchResult struct {
	Entry domain.VectorEntry
	Score float32
}

// Client is the contract every vector-index backend implements. Collections
// are namespaced per agent (domain.IndexNamespaceFor) so EnsureCollection is
// idempotent and can be called on every agent mutation without cost beyond
// the first call (see onceflag.go).
type Client interface {
	// EnsureCollection provisions the given namespace (dimension and metric
	// fixed at creation) if it does not already exist. Safe to call
	// repeatedly; callers are expected to pair it with an onceFlag so the
	// common case never issues a network round trip.
	EnsureCollection(ctx context.Context, namespace string, dim int, metric Metric) error

	// Upsert inserts or replaces entries by ID within namespace.
	Upsert(ctx context.Context, namespace string, entries []domain.VectorEntry) error

	// Search returns the topK entries in namespace nearest to query, after
	// applying filter.
	Search(ctx context.Context, namespace string, query []float32, topK int, filter Filter) ([]SearchResult, error)

	// DeleteByFilter removes every entry in namespace matching filter. Used
	// to clean up partially-ingested training data on pipeline failure and
	// to purge an agent's vectors entirely when a training source or the
	// agent itself is deleted.
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error

	// HealthCheck reports whether the backend is reachable.
	HealthCheck(ctx context.Context) error
}
