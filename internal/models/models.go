package models

import (
	"time"
)

// Document statuses. A document is created in "processing", moved to
// "indexed" or "failed" by the ingestion worker, reset to "processing" by an
// explicit reindex, and parked in "archived" by an admin action.
const (
	DocStatusProcessing = "processing"
	DocStatusIndexed    = "indexed"
	DocStatusFailed     = "failed"
	DocStatusArchived   = "archived"
)

// Visibility tiers. Each document carries the minimum role allowed to see it.
const (
	VisibilityEmployee = "employee"
	VisibilityManager  = "manager"
	VisibilityAdmin    = "admin"
)

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Feedback ratings.
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	CompanyID    string    `db:"company_id" json:"company_id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"` // employee | manager | admin
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents an uploaded company document.
type Document struct {
	ID         string    `db:"id" json:"id"`
	CompanyID  string    `db:"company_id" json:"company_id"`
	Title      string    `db:"title" json:"title"`
	FilePath   string    `db:"file_path" json:"file_path"` // {companyId}/{docId}/{sanitizedFilename}
	Visibility string    `db:"visibility" json:"visibility"`
	Status     string    `db:"status" json:"status"`
	CreatedBy  string    `db:"created_by" json:"created_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one persisted text chunk with its embedding.
// An ingestion run fully replaces the chunk set for its document; chunk_index
// values are 0-based and contiguous.
type DocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	CompanyID  string    `db:"company_id" json:"company_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Content    string    `db:"content" json:"content"`
	TokenCount int       `db:"token_count" json:"token_count"`
	Embedding  []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Conversation groups assistant messages for one user.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"company_id"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	Title     *string   `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is one turn of a conversation. Confidence is reserved and always
// persisted as NULL; NeedsAdminReview is reserved and always false.
type Message struct {
	ID                  string    `db:"id" json:"id"`
	CompanyID           string    `db:"company_id" json:"company_id"`
	ConversationID      string    `db:"conversation_id" json:"conversation_id"`
	Sender              string    `db:"sender" json:"sender"` // user | assistant
	Content             string    `db:"content" json:"content"`
	Confidence          *float64  `db:"confidence" json:"confidence"`
	NoSufficientSources bool      `db:"no_sufficient_sources" json:"no_sufficient_sources"`
	NeedsAdminReview    bool      `db:"needs_admin_review" json:"needs_admin_review"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// AssistantFeedback is a thumbs up/down on one assistant message.
type AssistantFeedback struct {
	ID        string    `db:"id" json:"id"`
	CompanyID string    `db:"company_id" json:"company_id"`
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Rating    string    `db:"rating" json:"rating"` // up | down
	Comment   *string   `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChunkMatch is one retrieval hit from the nearest-neighbour query.
type ChunkMatch struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// VisibleTiers maps a caller role to the visibility tiers it may read.
func VisibleTiers(role string) []string {
	switch role {
	case VisibilityAdmin:
		return []string{VisibilityEmployee, VisibilityManager, VisibilityAdmin}
	case VisibilityManager:
		return []string{VisibilityEmployee, VisibilityManager}
	default:
		return []string{VisibilityEmployee}
	}
}
