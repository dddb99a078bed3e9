package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/vectorindex"
)

// stageRetrieve embeds the incoming text and searches the agent's vector
// namespace for grounding context. Any failure — including "no vectors
// indexed yet" — degrades to no context rather than failing the turn.
func (o *Orchestrator) stageRetrieve(ctx context.Context, state *TurnState) {
	start := time.Now()
	defer o.trackStage("retrieve", start, state)

	has, err := o.hasVectors(ctx, state.Agent.ID.String())
	if err != nil || !has {
		return
	}

	query, err := o.llm.Embed(ctx, state.IncomingText)
	if err != nil {
		o.log.Warn("retrieval embed failed, continuing without context", zap.Error(err))
		return
	}

	hits, err := o.index.Search(ctx, state.Agent.IndexNamespace, query, o.cfg.RetrievalTopK, vectorindex.Filter{AgentID: state.Agent.ID.String()})
	if err != nil {
		o.log.Warn("retrieval search failed, continuing without context", zap.Error(err))
		return
	}

	var sb strings.Builder
	for _, hit := range hits {
		if hit.Score < float32(o.cfg.RetrievalScoreFloor) {
			continue
		}
		if sb.Len() >= retrievalCharCap {
			break
		}
		remaining := retrievalCharCap - sb.Len()
		text := hit.Entry.Payload.Text
		if len(text) > remaining {
			text = text[:remaining]
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	state.RetrievedContext = sb.String()
}
