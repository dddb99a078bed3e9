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

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation for (agentID, sessionID), creating an
// empty one at version 0 if this is the first turn of the session.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, agentID uuid.UUID, sessionID string, channel domain.Channel) (*domain.Conversation, error) {
	conv, err := r.GetBySession(ctx, agentID, sessionID)
	if err == nil {
		return conv, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	conv = &domain.Conversation{
		ID:        uuid.New(),
		AgentID:   agentID,
		SessionID: sessionID,
		Messages:  []domain.ChatMessage{},
		Channel:   channel,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	messages, _ := json.Marshal(conv.Messages)
	leadInfo, _ := json.Marshal(conv.LeadInfo)

	_, err = r.db.Exec(ctx, `
		INSERT INTO conversations (id, agent_id, session_id, messages, lead_info, channel, order_id, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (agent_id, session_id) DO NOTHING`,
		conv.ID, conv.AgentID, conv.SessionID, messages, leadInfo, conv.Channel, conv.OrderID, conv.Version, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Another concurrent request may have won the insert race; re-read to
	// get the authoritative row either way.
	return r.GetBySession(ctx, agentID, sessionID)
}

func (r *ConversationRepository) GetBySession(ctx context.Context, agentID uuid.UUID, sessionID string) (*domain.Conversation, error) {
	rows, err := r.db.Query(ctx, selectConversationCols+` WHERE agent_id = $1 AND session_id = $2`, agentID, sessionID)
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
	return scanConversation(rows)
}

func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	rows, err := r.db.Query(ctx, selectConversationCols+` WHERE id = $1`, id)
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
	return scanConversation(rows)
}

func (r *ConversationRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]*domain.Conversation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, selectConversationCols+`
		WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, agentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update performs an optimistic compare-and-swap against conv.Version: the
// write only lands if the stored version still matches what was read. On a
// stale version the caller receives ErrConflict and must re-read and retry —
// the chat handler pairs this with a per-(agent_id,session_id) mutex from
// orchestrator/sessionlock so contention is rare, not eliminated (spec §9).
func (r *ConversationRepository) Update(ctx context.Context, conv *domain.Conversation) error {
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	leadInfo, err := json.Marshal(conv.LeadInfo)
	if err != nil {
		return fmt.Errorf("marshal lead_info: %w", err)
	}

	prevVersion := conv.Version
	conv.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE conversations SET
			messages = $3, lead_info = $4, channel = $5, order_id = $6,
			version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $2`,
		conv.ID, prevVersion, messages, leadInfo, conv.Channel, conv.OrderID, conv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	conv.Version = prevVersion + 1
	return nil
}

const selectConversationCols = `
	SELECT id, agent_id, session_id, messages, lead_info, channel, order_id, version, created_at, updated_at
	FROM conversations`

func scanConversation(rows pgx.Rows) (*domain.Conversation, error) {
	var c domain.Conversation
	var messagesRaw, leadInfoRaw []byte
	if err := rows.Scan(
		&c.ID, &c.AgentID, &c.SessionID, &messagesRaw, &leadInfoRaw, &c.Channel, &c.OrderID, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(messagesRaw) > 0 {
		if err := json.Unmarshal(messagesRaw, &c.Messages); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
	}
	if len(leadInfoRaw) > 0 {
		if err := json.Unmarshal(leadInfoRaw, &c.LeadInfo); err != nil {
			return nil, fmt.Errorf("unmarshal lead_info: %w", err)
		}
	}
	return &c, nil
}
