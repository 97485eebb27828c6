package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/insightfulops/opskb/internal/api/middlewares"
	"github.com/insightfulops/opskb/internal/config"
	"github.com/insightfulops/opskb/internal/core"
	"github.com/insightfulops/opskb/internal/models"
	"github.com/insightfulops/opskb/internal/queue"
)

// maxUploadBytes caps document uploads at 25MB.
const maxUploadBytes = 25 << 20

var unsafeFilenameChars = regexp.MustCompile(`[^\w.-]+`)

type DocumentHandler struct {
	dbclient     core.DbClient
	objectclient core.ObjectClient
	enqueuer     queue.Enqueuer
	cfg          *config.Config
}

func NewDocumentHandler(dbclient core.DbClient, objectclient core.ObjectClient, enqueuer queue.Enqueuer, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, objectclient: objectclient, enqueuer: enqueuer, cfg: cfg}
}

// sanitizeFilename strips path components and anything outside [\w.-].
func sanitizeFilename(filename string) string {
	return unsafeFilenameChars.ReplaceAllString(filepath.Base(filename), "_")
}

// UploadDocument stores the file, creates the document row in "processing",
// and enqueues ingestion. The response returns immediately; indexing happens
// on a worker.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "missing multipart file field: file")
		return
	}
	defer file.Close()

	visibility := r.FormValue("visibility")
	if visibility != models.VisibilityEmployee && visibility != models.VisibilityManager && visibility != models.VisibilityAdmin {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "invalid visibility")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "could not read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := uuid.NewString()
	filePath := fmt.Sprintf("%s/%s/%s", ident.CompanyID, docID, sanitizeFilename(header.Filename))

	if err := h.objectclient.UploadFile(r.Context(), h.cfg.BucketName, filePath, data, contentType); err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("upload failed: %v", err))
		return
	}

	doc := &models.Document{
		ID:         docID,
		CompanyID:  ident.CompanyID,
		Title:      title,
		FilePath:   filePath,
		Visibility: visibility,
		Status:     models.DocStatusProcessing,
		CreatedBy:  ident.UserID,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := h.dbclient.CreateDocument(r.Context(), doc); err != nil {
		log.Printf("DB insert failed for doc %s: %v", docID, err)
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "failed to store document metadata")
		return
	}

	h.enqueueIngestion(r, doc)

	writeOK(w, http.StatusCreated, map[string]any{"doc": doc})
}

// GetDocuments lists the documents the caller's role may see.
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return
	}

	docs, err := h.dbclient.ListDocuments(r.Context(), ident.CompanyID, models.VisibleTiers(ident.Role))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeOK(w, http.StatusOK, map[string]any{"docs": docs})
}

// GetDocument returns one document plus its indexed chunk count.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	_, doc, ok := h.loadVisibleDocument(w, r)
	if !ok {
		return
	}

	chunkCount, err := h.dbclient.CountChunksByDocument(r.Context(), doc.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"doc": doc, "chunk_count": chunkCount})
}

// ReindexDocument resets a non-archived document to "processing" and enqueues
// a full delete+insert ingestion run.
func (h *DocumentHandler) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	_, doc, ok := h.loadVisibleDocument(w, r)
	if !ok {
		return
	}
	if doc.Status == models.DocStatusArchived {
		writeErr(w, http.StatusConflict, "CONFLICT", "archived documents cannot be reindexed")
		return
	}

	if err := h.dbclient.UpdateDocumentStatus(r.Context(), doc.ID, models.DocStatusProcessing); err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	doc.Status = models.DocStatusProcessing

	h.enqueueIngestion(r, doc)

	writeOK(w, http.StatusAccepted, map[string]any{"doc": doc})
}

// ArchiveDocument is a terminal admin action. Previously indexed chunks stay
// in place; retrieval excludes them because the document is no longer
// "indexed".
func (h *DocumentHandler) ArchiveDocument(w http.ResponseWriter, r *http.Request) {
	_, doc, ok := h.loadVisibleDocument(w, r)
	if !ok {
		return
	}

	if err := h.dbclient.UpdateDocumentStatus(r.Context(), doc.ID, models.DocStatusArchived); err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	doc.Status = models.DocStatusArchived
	writeOK(w, http.StatusOK, map[string]any{"doc": doc})
}

func (h *DocumentHandler) enqueueIngestion(r *http.Request, doc *models.Document) {
	payload := queue.IngestJobPayload{
		DocID:            doc.ID,
		CompanyID:        doc.CompanyID,
		FilePath:         doc.FilePath,
		Visibility:       doc.Visibility,
		UploadedByUserID: doc.CreatedBy,
		Title:            doc.Title,
	}
	// Enqueue failure is not fatal to the request: the document stays in
	// "processing" and an operator can reindex once the broker is back.
	if err := h.enqueuer.Enqueue(r.Context(), payload); err != nil {
		log.Printf("enqueue ingestion for doc %s failed: %v", doc.ID, err)
	}
}

func (h *DocumentHandler) loadVisibleDocument(w http.ResponseWriter, r *http.Request) (middleware.Identity, *models.Document, bool) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity")
		return middleware.Identity{}, nil, false
	}

	docID := chi.URLParam(r, "docID")
	doc, err := h.dbclient.GetDocumentByID(r.Context(), ident.CompanyID, docID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return ident, nil, false
	}
	if doc == nil || !visibleTo(ident.Role, doc.Visibility) {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "document not found")
		return ident, nil, false
	}
	return ident, doc, true
}

func visibleTo(role, visibility string) bool {
	for _, tier := range models.VisibleTiers(role) {
		if tier == visibility {
			return true
		}
	}
	return false
}
