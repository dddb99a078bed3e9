// Package ingest turns a submitted training-data record into embedded
// vectors in the index. Jobs run detached from the HTTP request that
// created them: Enqueue returns immediately and a bounded worker pool does
// the actual chunk/embed/upsert work.
package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/ingest/docproc"
	"github.com/salesagentco/platform/internal/llm"
	"github.com/salesagentco/platform/internal/store"
	"github.com/salesagentco/platform/internal/vectorindex"
)

const upsertBatchSize = 64

// NotifyFunc is an optional callback for ingestion lifecycle events,
// dispatched the same way health.Checker's webhook callback is injected
// rather than importing internal/webhooks directly.
type NotifyFunc func(ctx context.Context, eventType, ownerID string, payload map[string]string)

// Pipeline wires the worker pool to the store, embedding client, and vector
// index, and enforces one in-flight job per training-data ID.
type Pipeline struct {
	pool     *Pool
	store    *store.Store
	llm      llm.Client
	index    vectorindex.Client
	log      *zap.Logger
	inflight sync.Map // training_data id -> struct{}
	notify   NotifyFunc
}

// New constructs a Pipeline and starts its worker pool.
func New(st *store.Store, llmClient llm.Client, index vectorindex.Client, log *zap.Logger, workers int) *Pipeline {
	p := &Pipeline{store: st, llm: llmClient, index: index, log: log}
	p.pool = NewPool(workers, 256, log, p.process)
	return p
}

// SetNotify configures the ingestion lifecycle callback fired after a job
// completes or fails (spec §4.5/§9: ingestion outcomes surface to the owner
// out-of-band since the originating request already returned 202).
func (p *Pipeline) SetNotify(fn NotifyFunc) { p.notify = fn }

// Enqueue submits a training-data ID for background processing. It is a
// no-op if that ID is already in flight.
func (p *Pipeline) Enqueue(trainingDataID uuid.UUID) {
	key := trainingDataID.String()
	if _, loaded := p.inflight.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	select {
	case p.pool.jobs <- Job{TrainingDataID: key}:
	default:
		// Queue full: release the in-flight mark so a later resubmit is accepted.
		p.inflight.Delete(key)
		p.log.Warn("ingestion queue full, dropping job", zap.String("training_data_id", key))
	}
}

// Shutdown drains the worker pool, waiting for in-flight jobs to finish.
func (p *Pipeline) Shutdown() { p.pool.Shutdown() }

func (p *Pipeline) process(ctx context.Context, job Job) {
	defer p.inflight.Delete(job.TrainingDataID)

	id, err := uuid.Parse(job.TrainingDataID)
	if err != nil {
		p.log.Error("invalid training data id in job", zap.String("id", job.TrainingDataID))
		return
	}

	td, err := p.store.TrainingData.GetByID(ctx, id)
	if err != nil {
		p.log.Error("load training data", zap.String("id", job.TrainingDataID), zap.Error(err))
		return
	}

	agent, err := p.store.Agents.GetByID(ctx, td.AgentID)
	if err != nil {
		p.log.Error("load agent for training data", zap.String("id", job.TrainingDataID), zap.Error(err))
		p.fail(ctx, td, "", "agent not found")
		return
	}

	chunks, err := p.chunksFor(ctx, td)
	if err != nil {
		p.log.Warn("document processing failed", zap.String("id", job.TrainingDataID), zap.Error(err))
		p.fail(ctx, td, agent.OwnerID, err.Error())
		return
	}

	if err := p.index.EnsureCollection(ctx, agent.IndexNamespace, 256, vectorindex.MetricCosine); err != nil {
		p.log.Warn("ensure collection failed", zap.String("namespace", agent.IndexNamespace), zap.Error(err))
		p.fail(ctx, td, agent.OwnerID, "vector index unavailable")
		return
	}

	entries := make([]domain.VectorEntry, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := p.llm.Embed(ctx, chunk.Text)
		if err != nil {
			p.log.Warn("embedding failed, cleaning up partial vectors", zap.String("id", job.TrainingDataID), zap.Error(err))
			p.cleanup(ctx, agent.IndexNamespace, td.ID.String())
			p.fail(ctx, td, agent.OwnerID, "embedding failed")
			return
		}
		entries = append(entries, domain.VectorEntry{
			ID:     fmt.Sprintf("%s:%d", td.ID, i),
			Vector: vec,
			Payload: domain.VectorPayload{
				AgentID:    agent.ID.String(),
				Type:       td.Type,
				SourceID:   td.ID.String(),
				ChunkIndex: i,
				Text:       chunk.Text,
			},
		})
	}

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := p.index.Upsert(ctx, agent.IndexNamespace, entries[start:end]); err != nil {
			p.log.Warn("upsert failed, cleaning up partial vectors", zap.String("id", job.TrainingDataID), zap.Error(err))
			p.cleanup(ctx, agent.IndexNamespace, td.ID.String())
			p.fail(ctx, td, agent.OwnerID, "vector upsert failed")
			return
		}
	}

	if err := p.store.TrainingData.UpdateStatus(ctx, td.ID, domain.TrainingCompleted, map[string]any{
		"chunk_count": len(entries),
	}); err != nil {
		p.log.Error("mark training completed", zap.String("id", job.TrainingDataID), zap.Error(err))
	}
	if p.notify != nil {
		p.notify(ctx, "training.completed", agent.OwnerID, map[string]string{
			"agent_id":         agent.ID.String(),
			"training_data_id": td.ID.String(),
			"chunk_count":      fmt.Sprintf("%d", len(entries)),
		})
	}
}

func (p *Pipeline) chunksFor(ctx context.Context, td *domain.TrainingData) ([]docproc.Chunk, error) {
	switch td.Type {
	case domain.TrainingPDF:
		raw, _ := td.Metadata["content"].(string)
		if raw == "" {
			return nil, fmt.Errorf("pdf training data missing content")
		}
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("pdf content is not valid base64: %w", err)
		}
		return docproc.ProcessPDF(bytes.NewReader(data), int64(len(data)))
	case domain.TrainingURL:
		url, _ := td.Metadata["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("url training data missing url")
		}
		return docproc.ProcessURL(ctx, url)
	case domain.TrainingFAQ:
		raw, _ := td.Metadata["faqs"].([]any)
		pairs := make([]domain.FAQPair, 0, len(raw))
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			q, _ := m["question"].(string)
			a, _ := m["answer"].(string)
			pairs = append(pairs, domain.FAQPair{Question: q, Answer: a})
		}
		if len(pairs) == 0 {
			return nil, fmt.Errorf("faq training data has no pairs")
		}
		return docproc.ProcessFAQ(pairs), nil
	case domain.TrainingText:
		text, _ := td.Metadata["text"].(string)
		if text == "" {
			return nil, fmt.Errorf("text training data is empty")
		}
		return docproc.ProcessText(text), nil
	default:
		return nil, fmt.Errorf("unknown training type %q", td.Type)
	}
}

func (p *Pipeline) cleanup(ctx context.Context, namespace, sourceID string) {
	if err := p.index.DeleteByFilter(ctx, namespace, vectorindex.Filter{SourceID: sourceID}); err != nil {
		p.log.Warn("partial-vector cleanup failed", zap.String("namespace", namespace), zap.Error(err))
	}
}

func (p *Pipeline) fail(ctx context.Context, td *domain.TrainingData, ownerID, reason string) {
	if err := p.store.TrainingData.UpdateStatus(ctx, td.ID, domain.TrainingFailed, map[string]any{"error": reason}); err != nil {
		p.log.Error("mark training failed", zap.String("id", td.ID.String()), zap.Error(err))
	}
	if p.notify != nil && ownerID != "" {
		p.notify(ctx, "training.failed", ownerID, map[string]string{
			"agent_id":         td.AgentID.String(),
			"training_data_id": td.ID.String(),
			"reason":           reason,
		})
	}
}
