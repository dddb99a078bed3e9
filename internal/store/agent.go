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

// AgentRepository provides CRUD and filtered list operations for agents.
type AgentRepository struct {
	db *pgxpool.Pool
}

func NewAgentRepository(db *pgxpool.Pool) *AgentRepository { return &AgentRepository{db: db} }

// Create inserts a new agent, assigning its ID, index namespace, and
// timestamps. The index namespace is derived once here and never reused.
func (r *AgentRepository) Create(ctx context.Context, a *domain.Agent) error {
	a.ID = uuid.New()
	a.IndexNamespace = domain.IndexNamespaceFor(a.ID)
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	products, err := json.Marshal(a.Products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO agents (
			id, owner_id, name, index_namespace, company_name, company_description,
			tone, language, greeting_message, sales_strategy, products_config,
			is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.OwnerID, a.Name, a.IndexNamespace, a.CompanyName, a.CompanyDescription,
		a.Tone, a.Language, a.GreetingMessage, a.SalesStrategy, products,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	rows, err := r.db.Query(ctx, selectAgentCols+` WHERE id = $1`, id)
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
	return scanAgent(rows)
}

// ListByOwner returns an owner's agents, newest first.
func (r *AgentRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Agent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, selectAgentCols+`
		WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update persists mutable configuration fields. Owner, ID, and index
// namespace are immutable post-creation.
func (r *AgentRepository) Update(ctx context.Context, a *domain.Agent) error {
	products, err := json.Marshal(a.Products)
	if err != nil {
		return fmt.Errorf("marshal products: %w", err)
	}
	a.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE agents SET
			name = $2, company_name = $3, company_description = $4, tone = $5,
			language = $6, greeting_message = $7, sales_strategy = $8,
			products_config = $9, is_active = $10, updated_at = $11
		WHERE id = $1`,
		a.ID, a.Name, a.CompanyName, a.CompanyDescription, a.Tone,
		a.Language, a.GreetingMessage, a.SalesStrategy, products, a.IsActive, a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete permanently removes an agent; cascades to products, conversations,
// and training rows via FK ON DELETE CASCADE. Vector-index cleanup is the
// caller's responsibility (the store has no knowledge of the vector index).
func (r *AgentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// HasVectors reports whether this agent has any completed training data —
// the cheap "zero vectors" check used by the orchestrator's retrieval skip
// condition (spec §4.6 stage 3). It is an optimization, not a correctness
// guarantee: spec §9 leaves staleness tolerances to the implementer.
func (r *AgentRepository) HasVectors(ctx context.Context, agentID uuid.UUID) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM training_data WHERE agent_id = $1 AND status = 'completed'`, agentID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByStatus returns the total agent count across all tenants, split by
// active/inactive, for the salesagent_agents_total gauge.
func (r *AgentRepository) CountByStatus(ctx context.Context) (active, inactive int, err error) {
	rows, err := r.db.Query(ctx, `SELECT is_active, count(*) FROM agents GROUP BY is_active`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var isActive bool
		var count int
		if err := rows.Scan(&isActive, &count); err != nil {
			return 0, 0, err
		}
		if isActive {
			active = count
		} else {
			inactive = count
		}
	}
	return active, inactive, rows.Err()
}

const selectAgentCols = `
	SELECT id, owner_id, name, index_namespace, company_name, company_description,
	       tone, language, greeting_message, sales_strategy, products_config,
	       is_active, created_at, updated_at
	FROM agents`

func scanAgent(rows pgx.Rows) (*domain.Agent, error) {
	var a domain.Agent
	var productsRaw []byte
	if err := rows.Scan(
		&a.ID, &a.OwnerID, &a.Name, &a.IndexNamespace, &a.CompanyName, &a.CompanyDescription,
		&a.Tone, &a.Language, &a.GreetingMessage, &a.SalesStrategy, &productsRaw,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(productsRaw) > 0 {
		if err := json.Unmarshal(productsRaw, &a.Products); err != nil {
			return nil, fmt.Errorf("unmarshal products_config: %w", err)
		}
	}
	return &a, nil
}
