package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/insightfulops/opskb/internal/api/middlewares"
	"github.com/insightfulops/opskb/internal/core"
	"github.com/insightfulops/opskb/internal/models"
)

type ConversationHandler struct {
	dbclient core.DbClient
}

func NewConversationHandler(dbclient core.DbClient) *ConversationHandler {
	return &ConversationHandler{dbclient: dbclient}
}

// ListConversations returns the caller's own conversations, newest first.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	convs, err := h.dbclient.ListConversationsByUser(r.Context(), ident.CompanyID, ident.UserID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	writeOK(w, http.StatusOK, map[string]any{"conversations": convs})
}

// ListMessages returns a conversation transcript in chronological order.
// Only the conversation owner may read it.
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	conv, err := h.dbclient.GetConversationByID(r.Context(), ident.CompanyID, conversationID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if conv == nil || conv.CreatedBy != ident.UserID {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "conversation not found")
		return
	}

	msgs, err := h.dbclient.ListMessagesByConversation(r.Context(), ident.CompanyID, conversationID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeOK(w, http.StatusOK, map[string]any{"conversation": conv, "messages": msgs})
}
