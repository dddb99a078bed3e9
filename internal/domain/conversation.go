package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the speaker of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a Conversation's transcript.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadInfo is structured customer data extracted post-hoc from a
// transcript. Fields are pointers so that an absent field can be
// distinguished from an explicitly-empty one during the monotonic merge
// in orchestrator.MergeLeadInfo.
type LeadInfo struct {
	Name          *string `json:"name,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Company       *string `json:"company,omitempty"`
	Budget        *string `json:"budget,omitempty"`
	Timeline      *string `json:"timeline,omitempty"`
	InterestLevel *string `json:"interest_level,omitempty"`
}

// IsEmpty reports whether no lead field has been populated yet.
func (l *LeadInfo) IsEmpty() bool {
	if l == nil {
		return true
	}
	return l.Name == nil && l.Email == nil && l.Phone == nil &&
		l.Company == nil && l.Budget == nil && l.Timeline == nil && l.InterestLevel == nil
}

// Channel identifies the surface a Conversation is happening over.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelTelegram Channel = "telegram"
	ChannelEmbed    Channel = "embed"
)

// Conversation accumulates all turns of one end-user session against one
// Agent. The (AgentID, SessionID) pair is unique; Messages is append-only.
type Conversation struct {
	ID        uuid.UUID     `json:"id"         db:"id"`
	AgentID   uuid.UUID     `json:"agent_id"   db:"agent_id"`
	SessionID string        `json:"session_id" db:"session_id"`
	Messages  []ChatMessage `json:"messages"   db:"messages"`
	LeadInfo  LeadInfo      `json:"lead_info"  db:"lead_info"`
	Channel   Channel       `json:"channel"    db:"channel"`
	OrderID   *uuid.UUID    `json:"order_id,omitempty" db:"order_id"`
	Version   int           `json:"-"          db:"version"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
