package core

import (
	"context"

	"github.com/insightfulops/opskb/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
// Every query is scoped by the caller's company id; the store is the tenant
// isolation boundary.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, companyID, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, companyID string, visibilities []string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error

	DeleteChunksByDocument(ctx context.Context, documentID string) error
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	CountChunksByDocument(ctx context.Context, documentID string) (int, error)

	// MatchChunks is the retrieval call: nearest chunks to the query embedding,
	// restricted to indexed documents the caller may see.
	MatchChunks(ctx context.Context, companyID string, visibilities []string, embedding []float32, matchCount int) ([]models.ChunkMatch, error)

	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, companyID, id string) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, companyID, userID string) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, companyID, id string) (*models.Message, error)
	ListMessagesByConversation(ctx context.Context, companyID, conversationID string) ([]models.Message, error)

	CreateFeedback(ctx context.Context, fb *models.AssistantFeedback) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be replaced with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}

// EmbeddingProvider turns a batch of texts into one vector per input, in
// input order regardless of how the provider orders its response.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Source is one grounding snippet handed to the completion provider.
type Source struct {
	Title   string
	Content string
}

// LLMProvider synthesizes an answer to a question from the supplied sources
// and nothing else.
type LLMProvider interface {
	AnswerWithSources(ctx context.Context, question string, sources []Source) (string, error)
}
