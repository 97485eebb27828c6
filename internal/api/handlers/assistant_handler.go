package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	middleware "github.com/insightfulops/opskb/internal/api/middlewares"
	"github.com/insightfulops/opskb/internal/assistant"
)

type AssistantHandler struct {
	svc *assistant.Service
}

func NewAssistantHandler(svc *assistant.Service) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

type chatRequest struct {
	ConversationID *string `json:"conversation_id"`
	Message        string  `json:"message"`
}

type feedbackRequest struct {
	MessageID string  `json:"message_id"`
	Rating    string  `json:"rating"`
	Comment   *string `json:"comment"`
}

// Chat runs one assistant turn: persist the question, retrieve, synthesize,
// persist and return the answer with citations.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}

	result, err := h.svc.Chat(r.Context(), assistant.Identity{
		UserID:    ident.UserID,
		CompanyID: ident.CompanyID,
		Role:      ident.Role,
	}, assistant.ChatRequest{
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		writeAssistantErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, result)
}

// Feedback records a thumbs up/down rating on an assistant message.
func (h *AssistantHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}

	fb, err := h.svc.Feedback(r.Context(), assistant.Identity{
		UserID:    ident.UserID,
		CompanyID: ident.CompanyID,
		Role:      ident.Role,
	}, assistant.FeedbackRequest{
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeAssistantErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"feedback": fb})
}

func writeAssistantErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage),
		errors.Is(err, assistant.ErrMessageTooLong),
		errors.Is(err, assistant.ErrInvalidRating),
		errors.Is(err, assistant.ErrCommentTooLong):
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case errors.Is(err, assistant.ErrConversationNotFound),
		errors.Is(err, assistant.ErrMessageNotFound):
		writeErr(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
