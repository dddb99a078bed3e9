package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salesagentco/platform/internal/domain"
)

type TrainingDataRepository struct {
	db *pgxpool.Pool
}

func NewTrainingDataRepository(db *pgxpool.Pool) *TrainingDataRepository {
	return &TrainingDataRepository{db: db}
}

// Create persists a training request at TrainingProcessing status. The
// ingestion pipeline updates status to completed/failed once chunking and
// embedding have run (spec §4.5).
func (r *TrainingDataRepository) Create(ctx context.Context, t *domain.TrainingData) error {
	t.ID = uuid.New()
	t.Status = domain.TrainingProcessing
	t.CreatedAt = time.Now().UTC()

	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO training_data (id, agent_id, type, status, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.AgentID, t.Type, t.Status, metadata, t.CreatedAt,
	)
	return err
}

func (r *TrainingDataRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.TrainingData, error) {
	rows, err := r.db.Query(ctx, selectTrainingCols+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanTraining(rows)
}

func (r *TrainingDataRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*domain.TrainingData, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, selectTrainingCols+`
		WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TrainingData
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a training record to completed or failed,
// recording any pipeline-supplied metadata (chunk count, error message).
func (r *TrainingDataRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TrainingStatus, metadata map[string]any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE training_data SET status = $2, metadata = $3 WHERE id = $1`, id, status, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TrainingDataRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM training_data WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectTrainingCols = `
	SELECT id, agent_id, type, status, metadata, created_at
	FROM training_data`

func scanTraining(rows pgx.Rows) (*domain.TrainingData, error) {
	var t domain.TrainingData
	var metadataRaw []byte
	if err := rows.Scan(&t.ID, &t.AgentID, &t.Type, &t.Status, &metadataRaw, &t.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}
