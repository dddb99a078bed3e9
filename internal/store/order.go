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

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository { return &OrderRepository{db: db} }

// Create assigns a globally-unique order number from order_number_seq and
// inserts the order at OrderPending with a one-entry status history (spec
// §8's testable property: status_history always starts non-empty).
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	o.ID = uuid.New()
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	o.Status = domain.OrderPending
	o.StatusHistory = []domain.OrderStatusEvent{{Status: domain.OrderPending, Timestamp: now}}

	var seq int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("allocate order number: %w", err)
	}
	o.OrderNumber = domain.FormatOrderNumber(now.Year(), seq)

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status_history: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, agent_id, customer_name, customer_email, customer_phone,
			items, total_amount, status, status_history, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.OrderNumber, o.AgentID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		items, o.TotalAmount, o.Status, history, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	rows, err := r.db.Query(ctx, selectOrderCols+` WHERE id = $1`, id)
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
	return scanOrder(rows)
}

// GetByNumber looks up an order by its globally-unique order_number, used by
// the public tracking endpoint which has no agent_id to scope by.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	rows, err := r.db.Query(ctx, selectOrderCols+` WHERE order_number = $1`, orderNumber)
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
	return scanOrder(rows)
}

func (r *OrderRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, selectOrderCols+`
		WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus appends a new event to status_history and sets status. The
// caller (the order handler) is responsible for checking domain.CanTransition
// before calling this — the repository enforces persistence, not the state
// machine.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus, note string) (*domain.Order, error) {
	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	o.Status = next
	o.StatusHistory = append(o.StatusHistory, domain.OrderStatusEvent{Status: next, Timestamp: now, Note: note})
	o.UpdatedAt = now

	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return nil, fmt.Errorf("marshal status_history: %w", err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE orders SET status = $2, status_history = $3, updated_at = $4 WHERE id = $1`,
		o.ID, o.Status, history, o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return o, nil
}

const selectOrderCols = `
	SELECT id, order_number, agent_id, customer_name, customer_email, customer_phone,
	       items, total_amount, status, status_history, created_at, updated_at
	FROM orders`

func scanOrder(rows pgx.Rows) (*domain.Order, error) {
	var o domain.Order
	var itemsRaw, historyRaw []byte
	if err := rows.Scan(
		&o.ID, &o.OrderNumber, &o.AgentID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&itemsRaw, &o.TotalAmount, &o.Status, &historyRaw, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if len(historyRaw) > 0 {
		if err := json.Unmarshal(historyRaw, &o.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status_history: %w", err)
		}
	}
	return &o, nil
}
