package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrainingType is the kind of material an ingestion request was for.
type TrainingType string

const (
	TrainingPDF  TrainingType = "pdf"
	TrainingURL  TrainingType = "url"
	TrainingFAQ  TrainingType = "faq"
	TrainingText TrainingType = "text"
)

// TrainingStatus tracks the lifecycle of one ingestion request. It
// transitions only Processing -> Completed or Processing -> Failed.
type TrainingStatus string

const (
	TrainingProcessing TrainingStatus = "processing"
	TrainingCompleted  TrainingStatus = "completed"
	TrainingFailed     TrainingStatus = "failed"
)

// TrainingData is the persisted record of one ingestion request.
type TrainingData struct {
	ID        uuid.UUID      `json:"id"         db:"id"`
	AgentID   uuid.UUID      `json:"agent_id"   db:"agent_id"`
	Type      TrainingType   `json:"type"       db:"type"`
	Status    TrainingStatus `json:"status"     db:"status"`
	Metadata  map[string]any `json:"metadata"   db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// FAQPair is one question/answer entry submitted via POST /api/training/faq.
type FAQPair struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer"   binding:"required"`
}

// TrainingPDFRequest is the payload for POST /api/training/pdf.
type TrainingPDFRequest struct {
	AgentID  uuid.UUID `json:"agent_id" binding:"required"`
	Filename string    `json:"filename" binding:"required"`
	// ContentBase64 carries the PDF file as standard base64 text in the JSON
	// body; handlers check that it decodes and the pipeline decodes it before
	// parsing.
	ContentBase64 string `json:"content_base64" binding:"required"`
}

// TrainingURLRequest is the payload for POST /api/training/url.
type TrainingURLRequest struct {
	AgentID uuid.UUID `json:"agent_id" binding:"required"`
	URL     string    `json:"url"      binding:"required"`
}

// TrainingFAQRequest is the payload for POST /api/training/faq.
type TrainingFAQRequest struct {
	AgentID uuid.UUID `json:"agent_id" binding:"required"`
	FAQs    []FAQPair `json:"faqs"     binding:"required,min=1"`
}
