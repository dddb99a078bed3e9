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

type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository { return &ProductRepository{db: db} }

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if p.StockStatus == "" {
		p.StockStatus = domain.StockInStock
	}
	specs, err := json.Marshal(p.Specifications)
	if err != nil {
		return fmt.Errorf("marshal specifications: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO products (
			id, agent_id, name, description, detailed_description, price, currency,
			image_url, category, features, specifications, stock_status, sku,
			is_featured, is_active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		p.ID, p.AgentID, p.Name, p.Description, p.DetailedDescription, p.Price, p.Currency,
		p.ImageURL, p.Category, p.Features, specs, p.StockStatus, p.SKU,
		p.IsFeatured, true, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	rows, err := r.db.Query(ctx, selectProductCols+` WHERE id = $1`, id)
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
	return scanProduct(rows)
}

// ListByAgent returns a agent's products. spec §4.1 requires this query to
// use an index on agent_id — see migrations/0001_init.sql's products_agent_id_idx.
func (r *ProductRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*domain.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := r.db.Query(ctx, selectProductCols+`
		WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	specs, err := json.Marshal(p.Specifications)
	if err != nil {
		return fmt.Errorf("marshal specifications: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE products SET
			name=$2, description=$3, detailed_description=$4, price=$5, currency=$6,
			image_url=$7, category=$8, features=$9, specifications=$10, stock_status=$11,
			sku=$12, is_featured=$13, is_active=$14, updated_at=$15
		WHERE id = $1`,
		p.ID, p.Name, p.Description, p.DetailedDescription, p.Price, p.Currency,
		p.ImageURL, p.Category, p.Features, specs, p.StockStatus,
		p.SKU, p.IsFeatured, p.IsActive, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const selectProductCols = `
	SELECT id, agent_id, name, description, detailed_description, price, currency,
	       image_url, category, features, specifications, stock_status, sku,
	       is_featured, is_active, created_at, updated_at
	FROM products`

func scanProduct(rows pgx.Rows) (*domain.Product, error) {
	var p domain.Product
	var specsRaw []byte
	if err := rows.Scan(
		&p.ID, &p.AgentID, &p.Name, &p.Description, &p.DetailedDescription, &p.Price, &p.Currency,
		&p.ImageURL, &p.Category, &p.Features, &specsRaw, &p.StockStatus, &p.SKU,
		&p.IsFeatured, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(specsRaw) > 0 {
		if err := json.Unmarshal(specsRaw, &p.Specifications); err != nil {
			return nil, fmt.Errorf("unmarshal specifications: %w", err)
		}
	}
	return &p, nil
}
