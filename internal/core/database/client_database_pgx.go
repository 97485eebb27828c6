package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/insightfulops/opskb/internal/config"
	"github.com/insightfulops/opskb/internal/core"
	"github.com/insightfulops/opskb/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, company_id, first_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.CompanyID, user.FirstName, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, company_id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.CompanyID, &u.FirstName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const q = `
		SELECT id, company_id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.CompanyID, &u.FirstName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, company_id, title, file_path, visibility, status, created_by, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.CompanyID, doc.Title, doc.FilePath, doc.Visibility, doc.Status, doc.CreatedBy, doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, companyID, id string) (*models.Document, error) {
	const q = `
		SELECT id, company_id, title, file_path, visibility, status, created_by, created_at, updated_at
		FROM documents
		WHERE company_id = $1 AND id = $2
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, companyID, id).Scan(
		&d.ID, &d.CompanyID, &d.Title, &d.FilePath, &d.Visibility, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocuments(ctx context.Context, companyID string, visibilities []string) ([]models.Document, error) {
	const q = `
		SELECT id, company_id, title, file_path, visibility, status, created_by, created_at, updated_at
		FROM documents
		WHERE company_id = $1 AND visibility = ANY($2)
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, companyID, visibilities)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.CompanyID, &d.Title, &d.FilePath, &d.Visibility, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Document chunks

func (c *DatabaseClient) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	const q = `DELETE FROM document_chunks WHERE document_id = $1`
	_, err := c.db.ExecContext(ctx, q, documentID)
	return err
}

// InsertDocumentChunks inserts the batch in a single transaction so a
// document can never be observed with a partial chunk set.
func (c *DatabaseClient) InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO document_chunks
			(id, document_id, company_id, chunk_index, content, token_count, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		vec := pgvector.NewVector(ch.Embedding)
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.CompanyID, ch.ChunkIndex, ch.Content, ch.TokenCount, vec, ch.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) CountChunksByDocument(ctx context.Context, documentID string) (int, error) {
	const q = `SELECT count(*) FROM document_chunks WHERE document_id = $1`
	var n int
	if err := c.db.QueryRowContext(ctx, q, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MatchChunks finds the nearest chunks to the query embedding among indexed
// documents the caller is allowed to see. Similarity is 1 - cosine distance.
func (c *DatabaseClient) MatchChunks(ctx context.Context, companyID string, visibilities []string, embedding []float32, matchCount int) ([]models.ChunkMatch, error) {
	const q = `
		SELECT c.id, c.document_id, d.title, c.content, 1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.company_id = $2
		  AND d.status = 'indexed'
		  AND d.visibility = ANY($3)
		ORDER BY c.embedding <=> $1
		LIMIT $4
	`
	vec := pgvector.NewVector(embedding)
	rows, err := c.db.QueryContext(ctx, q, vec, companyID, visibilities, matchCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Title, &m.Content, &m.Similarity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Conversations and messages

func (c *DatabaseClient) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv == nil {
		return errors.New("nil conversation")
	}
	const q = `
		INSERT INTO conversations (id, company_id, created_by, title, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q, conv.ID, conv.CompanyID, conv.CreatedBy, conv.Title, conv.CreatedAt)
	return err
}

func (c *DatabaseClient) GetConversationByID(ctx context.Context, companyID, id string) (*models.Conversation, error) {
	const q = `
		SELECT id, company_id, created_by, title, created_at
		FROM conversations
		WHERE company_id = $1 AND id = $2
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, companyID, id).Scan(
		&conv.ID, &conv.CompanyID, &conv.CreatedBy, &conv.Title, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *DatabaseClient) ListConversationsByUser(ctx context.Context, companyID, userID string) ([]models.Conversation, error) {
	const q = `
		SELECT id, company_id, created_by, title, created_at
		FROM conversations
		WHERE company_id = $1 AND created_by = $2
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, companyID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.CompanyID, &conv.CreatedBy, &conv.Title, &conv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	const q = `
		INSERT INTO messages
			(id, company_id, conversation_id, sender, content, confidence, no_sufficient_sources, needs_admin_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		msg.ID, msg.CompanyID, msg.ConversationID, msg.Sender, msg.Content,
		msg.Confidence, msg.NoSufficientSources, msg.NeedsAdminReview, msg.CreatedAt)
	return err
}

func (c *DatabaseClient) GetMessageByID(ctx context.Context, companyID, id string) (*models.Message, error) {
	const q = `
		SELECT id, company_id, conversation_id, sender, content, confidence, no_sufficient_sources, needs_admin_review, created_at
		FROM messages
		WHERE company_id = $1 AND id = $2
	`
	var m models.Message
	err := c.db.QueryRowContext(ctx, q, companyID, id).Scan(
		&m.ID, &m.CompanyID, &m.ConversationID, &m.Sender, &m.Content,
		&m.Confidence, &m.NoSufficientSources, &m.NeedsAdminReview, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *DatabaseClient) ListMessagesByConversation(ctx context.Context, companyID, conversationID string) ([]models.Message, error) {
	const q = `
		SELECT id, company_id, conversation_id, sender, content, confidence, no_sufficient_sources, needs_admin_review, created_at
		FROM messages
		WHERE company_id = $1 AND conversation_id = $2
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, companyID, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID, &m.CompanyID, &m.ConversationID, &m.Sender, &m.Content,
			&m.Confidence, &m.NoSufficientSources, &m.NeedsAdminReview, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Feedback

func (c *DatabaseClient) CreateFeedback(ctx context.Context, fb *models.AssistantFeedback) error {
	if fb == nil {
		return errors.New("nil feedback")
	}
	const q = `
		INSERT INTO assistant_feedback (id, company_id, message_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q, fb.ID, fb.CompanyID, fb.MessageID, fb.UserID, fb.Rating, fb.Comment, fb.CreatedAt)
	return err
}
