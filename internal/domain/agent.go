// Package domain holds the core entity types shared by the store,
// orchestrator, builder, and HTTP layers. It is grounded on the shape of
// the teacher's internal/registry/model package: plain structs with db/json
// tags, small derived-field methods, and request DTOs colocated with their
// entity.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tone is the enumerated conversational tone an Agent is configured with.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneFormal       Tone = "formal"
)

// Agent is a configured conversational assistant owned by a tenant.
type Agent struct {
	ID                 uuid.UUID `json:"id"                   db:"id"`
	OwnerID             string    `json:"owner_id"             db:"owner_id"`
	Name                string    `json:"name"                 db:"name"`
	IndexNamespace      string    `json:"index_namespace"      db:"index_namespace"`
	CompanyName         string    `json:"company_name"         db:"company_name"`
	CompanyDescription  string    `json:"company_description"  db:"company_description"`
	Tone                Tone      `json:"tone"                 db:"tone"`
	Language            string    `json:"language"             db:"language"`
	GreetingMessage     string    `json:"greeting_message"     db:"greeting_message"`
	SalesStrategy       string    `json:"sales_strategy"       db:"sales_strategy"`
	Products            []ProductRef `json:"products"          db:"-"`
	IsActive            bool      `json:"is_active"            db:"is_active"`
	CreatedAt           time.Time `json:"created_at"           db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"           db:"updated_at"`
}

// ProductRef is an element of Agent.Products — either a bare product name
// (string form) or a structured reference to a catalog Product. Both forms
// are valid per spec §9's dynamic-product-entries design note; the system
// prompt renderer dispatches on Kind.
type ProductRef struct {
	Kind      ProductRefKind `json:"kind"`
	Text      string         `json:"text,omitempty"`       // Kind == ProductRefString
	ProductID uuid.UUID      `json:"product_id,omitempty"` // Kind == ProductRefStructured
}

type ProductRefKind string

const (
	ProductRefString     ProductRefKind = "string"
	ProductRefStructured ProductRefKind = "structured"
)

// IndexNamespaceFor derives the stable vector-index namespace for a newly
// created agent. Never reused after the agent that owns it is deleted.
func IndexNamespaceFor(agentID uuid.UUID) string {
	return "agent_" + agentID.String()
}

// AgentCreateRequest is the payload for POST /api/agents.
type AgentCreateRequest struct {
	Name               string       `json:"name"                binding:"required"`
	CompanyName        string       `json:"company_name"        binding:"required"`
	CompanyDescription string       `json:"company_description"`
	Tone               Tone         `json:"tone"`
	Language           string       `json:"language"`
	GreetingMessage    string       `json:"greeting_message"`
	SalesStrategy      string       `json:"sales_strategy"`
	Products           []ProductRef `json:"products"`
}

// AgentUpdateRequest is the payload for PUT /api/agents/:id. Omitted (nil)
// fields are left unchanged by the agent handler's applyAgentUpdate;
// IsActive is applied only when present, like every other field.
type AgentUpdateRequest struct {
	Name               *string      `json:"name,omitempty"`
	CompanyName        *string      `json:"company_name,omitempty"`
	CompanyDescription *string      `json:"company_description,omitempty"`
	Tone               *Tone        `json:"tone,omitempty"`
	Language           *string      `json:"language,omitempty"`
	GreetingMessage    *string      `json:"greeting_message,omitempty"`
	SalesStrategy      *string      `json:"sales_strategy,omitempty"`
	Products           []ProductRef `json:"products,omitempty"`
	IsActive           *bool        `json:"is_active,omitempty"`
}

func validTone(t Tone) bool {
	switch t {
	case ToneFriendly, ToneProfessional, ToneCasual, ToneFormal, "":
		return true
	}
	return false
}

// Validate checks the required-field and enum invariants from spec §3.
func (r *AgentCreateRequest) Validate() error {
	if r.Name == "" {
		return errRequired("name")
	}
	if r.CompanyName == "" {
		return errRequired("company_name")
	}
	if !validTone(r.Tone) {
		return errInvalidEnum("tone", string(r.Tone))
	}
	return nil
}
