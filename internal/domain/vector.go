package domain

// VectorEntry is one row of the external vector index. Payload's AgentID
// is the filter key that guarantees per-tenant isolation (spec §3, §8).
type VectorEntry struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload VectorPayload `json:"payload"`
}

// VectorPayload is the metadata attached to a VectorEntry.
type VectorPayload struct {
	AgentID    string       `json:"agent_id"`
	Type       TrainingType `json:"type"`
	SourceID   string       `json:"source_id"`
	ChunkIndex int          `json:"chunk_index"`
	Text       string       `json:"text"`
}
