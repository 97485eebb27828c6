// Package assistant implements one turn of the retrieval-augmented chat
// protocol: conversation persistence, retrieval, synthesis, citation building
// and flagging.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insightfulops/opskb/internal/core"
	"github.com/insightfulops/opskb/internal/models"
)

const (
	// MatchCount is the retrieval top-K.
	MatchCount = 6

	// ExcerptLength is the fixed citation excerpt prefix, in characters.
	ExcerptLength = 240

	MaxMessageLength = 10_000
	MaxCommentLength = 2_000
)

// DegradedAnswer is returned when no completion/embedding credentials are
// configured. This is a documented operating mode, not an error.
const DegradedAnswer = "Assistant retrieval is available, but this server has no completion credentials configured. " +
	"Set OPENAI_API_KEY to enable answers with citations."

// InsufficientAnswer is returned when retrieval finds nothing; no completion
// call is made in that case.
const InsufficientAnswer = "I don't have sufficient sources in your company docs to answer that."

var (
	ErrEmptyMessage         = errors.New("message must not be empty")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRating        = errors.New("rating must be \"up\" or \"down\"")
	ErrCommentTooLong       = errors.New("comment exceeds maximum length")
	ErrMessageNotFound      = errors.New("message not found")
)

// Store is the slice of persistence the assistant needs.
// *database.DatabaseClient satisfies it.
type Store interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, companyID, id string) (*models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, companyID, id string) (*models.Message, error)
	MatchChunks(ctx context.Context, companyID string, visibilities []string, embedding []float32, matchCount int) ([]models.ChunkMatch, error)
	CreateFeedback(ctx context.Context, fb *models.AssistantFeedback) error
}

// Identity is the authenticated caller, used for tenant and visibility scope.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID *string
	Message        string
}

// Citation is one retrieval hit surfaced alongside the answer.
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

// AssistantMessage is the synthesized reply.
type AssistantMessage struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Confidence *float64   `json:"confidence"`
	Citations  []Citation `json:"citations"`
}

// Flags mirrors the persisted message flags.
type Flags struct {
	NoSufficientSources bool `json:"no_sufficient_sources"`
	NeedsAdminReview    bool `json:"needs_admin_review"`
}

// ChatResult is the full outcome of one assistant turn.
type ChatResult struct {
	ConversationID   string           `json:"conversation_id"`
	AssistantMessage AssistantMessage `json:"assistant_message"`
	Flags            Flags            `json:"flags"`
}

// FeedbackRequest rates one assistant message.
type FeedbackRequest struct {
	MessageID string
	Rating    string
	Comment   *string
}

// Service runs assistant turns. embedder and llm may be nil, which puts the
// service in degraded mode: turns are still persisted, but answers are a
// fixed notice instead of a synthesis.
type Service struct {
	store    Store
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
}

func NewService(store Store, embedder core.EmbeddingProvider, llm core.LLMProvider) *Service {
	return &Service{store: store, embedder: embedder, llm: llm}
}

// Degraded reports whether the service lacks provider credentials.
func (s *Service) Degraded() bool {
	return s.embedder == nil || s.llm == nil
}

// Chat executes one assistant turn for the caller.
func (s *Service) Chat(ctx context.Context, ident Identity, req ChatRequest) (*ChatResult, error) {
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(req.Message)) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	conversationID, err := s.resolveConversation(ctx, ident, req.ConversationID)
	if err != nil {
		return nil, err
	}

	// The user turn is persisted verbatim before anything can fail downstream.
	userMsg := &models.Message{
		ID:             uuid.NewString(),
		CompanyID:      ident.CompanyID,
		ConversationID: conversationID,
		Sender:         models.SenderUser,
		Content:        req.Message,
		CreatedAt:      time.Now(),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	if s.Degraded() {
		return s.reply(ctx, ident, conversationID, DegradedAnswer, true, nil)
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{req.Message})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors for 1 input", len(vecs))
	}

	matches, err := s.store.MatchChunks(ctx, ident.CompanyID, models.VisibleTiers(ident.Role), vecs[0], MatchCount)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}

	if len(matches) == 0 {
		return s.reply(ctx, ident, conversationID, InsufficientAnswer, true, nil)
	}

	sources := make([]core.Source, len(matches))
	citations := make([]Citation, len(matches))
	for i, m := range matches {
		sources[i] = core.Source{Title: m.Title, Content: m.Content}
		citations[i] = Citation{
			DocumentID: m.DocumentID,
			ChunkID:    m.ChunkID,
			Title:      m.Title,
			Similarity: m.Similarity,
			Excerpt:    excerpt(m.Content),
		}
	}

	answer, err := s.llm.AnswerWithSources(ctx, req.Message, sources)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	return s.reply(ctx, ident, conversationID, answer, false, citations)
}

// Feedback validates and persists a rating on one assistant message.
func (s *Service) Feedback(ctx context.Context, ident Identity, req FeedbackRequest) (*models.AssistantFeedback, error) {
	if req.Rating != models.RatingUp && req.Rating != models.RatingDown {
		return nil, ErrInvalidRating
	}
	if req.MessageID == "" {
		return nil, ErrMessageNotFound
	}
	if req.Comment != nil && len([]rune(*req.Comment)) > MaxCommentLength {
		return nil, ErrCommentTooLong
	}

	msg, err := s.store.GetMessageByID(ctx, ident.CompanyID, req.MessageID)
	if err != nil {
		return nil, fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	fb := &models.AssistantFeedback{
		ID:        uuid.NewString(),
		CompanyID: ident.CompanyID,
		MessageID: req.MessageID,
		UserID:    ident.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("persist feedback: %w", err)
	}
	return fb, nil
}

func (s *Service) resolveConversation(ctx context.Context, ident Identity, id *string) (string, error) {
	if id != nil && *id != "" {
		conv, err := s.store.GetConversationByID(ctx, ident.CompanyID, *id)
		if err != nil {
			return "", fmt.Errorf("load conversation: %w", err)
		}
		if conv == nil {
			return "", ErrConversationNotFound
		}
		return conv.ID, nil
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		CompanyID: ident.CompanyID,
		CreatedBy: ident.UserID,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return conv.ID, nil
}

// reply persists the assistant turn and assembles the result. Confidence is
// always NULL and needs_admin_review always false; both are reserved.
func (s *Service) reply(ctx context.Context, ident Identity, conversationID, text string, noSources bool, citations []Citation) (*ChatResult, error) {
	msg := &models.Message{
		ID:                  uuid.NewString(),
		CompanyID:           ident.CompanyID,
		ConversationID:      conversationID,
		Sender:              models.SenderAssistant,
		Content:             text,
		NoSufficientSources: noSources,
		CreatedAt:           time.Now(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	if citations == nil {
		citations = []Citation{}
	}
	return &ChatResult{
		ConversationID: conversationID,
		AssistantMessage: AssistantMessage{
			ID:        msg.ID,
			Text:      msg.Content,
			Citations: citations,
		},
		Flags: Flags{NoSufficientSources: noSources},
	}, nil
}

// excerpt returns a fixed-length content prefix; truncation is positional,
// not sentence-aware.
func excerpt(content string) string {
	r := []rune(content)
	if len(r) <= ExcerptLength {
		return content
	}
	return string(r[:ExcerptLength])
}
