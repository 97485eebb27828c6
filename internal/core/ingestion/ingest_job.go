package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insightfulops/opskb/internal/models"
	"github.com/insightfulops/opskb/internal/queue"
)

// Process-level chunking constants. Not per-call tunable: every document in
// the corpus must be segmented the same way or retrieval quality drifts.
const (
	MaxTokensPerChunk = 400
	OverlapTokens     = 50
)

// ChunkStore is the slice of persistence the ingestion job needs.
// *database.DatabaseClient satisfies it.
type ChunkStore interface {
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	InsertDocumentChunks(ctx context.Context, chunks []models.DocumentChunk) error
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
}

// ObjectFetcher reads raw document bytes from object storage.
type ObjectFetcher interface {
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// Embedder is the batch embedding contract: one vector per input, in input
// order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingestor runs the ingestion job for one document: fetch, extract, chunk,
// embed, replace the persisted chunk set, and mark the document indexed.
type Ingestor struct {
	store    ChunkStore
	obj      ObjectFetcher
	embedder Embedder
	bucket   string
}

func NewIngestor(store ChunkStore, obj ObjectFetcher, embedder Embedder, bucket string) *Ingestor {
	return &Ingestor{store: store, obj: obj, embedder: embedder, bucket: bucket}
}

// Run executes the job and returns the number of chunks written.
//
// Any failure propagates without status side effects: this routine never
// marks the document "failed"; that belongs to the worker, which owns the
// retry decision. Re-running the job for the same document is safe because the
// prior chunk set is deleted before the new one is inserted.
func (i *Ingestor) Run(ctx context.Context, job queue.IngestJobPayload) (int, error) {
	data, err := i.obj.GetFile(ctx, i.bucket, job.FilePath)
	if err != nil {
		return 0, fmt.Errorf("fetch object %q: %w", job.FilePath, err)
	}

	text, err := ExtractText(job.FilePath, data)
	if err != nil {
		return 0, err
	}

	chunks, err := ChunkText(text, MaxTokensPerChunk, OverlapTokens)
	if err != nil {
		return 0, err
	}

	var embeddings [][]float32
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for idx, c := range chunks {
			texts[idx] = c.Content
		}
		embeddings, err = i.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
		}
		if len(embeddings) != len(chunks) {
			return 0, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(embeddings), len(chunks))
		}
	}

	// Idempotent overwrite: the new chunk set fully replaces the old one.
	if err := i.store.DeleteChunksByDocument(ctx, job.DocID); err != nil {
		return 0, fmt.Errorf("delete existing chunks: %w", err)
	}

	now := time.Now()
	rows := make([]models.DocumentChunk, len(chunks))
	for idx, c := range chunks {
		rows[idx] = models.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: job.DocID,
			CompanyID:  job.CompanyID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			TokenCount: c.TokenCount,
			Embedding:  embeddings[idx],
			CreatedAt:  now,
		}
	}
	if err := i.store.InsertDocumentChunks(ctx, rows); err != nil {
		return 0, fmt.Errorf("insert %d chunks: %w", len(rows), err)
	}

	if err := i.store.UpdateDocumentStatus(ctx, job.DocID, models.DocStatusIndexed); err != nil {
		return 0, fmt.Errorf("mark document indexed: %w", err)
	}
	return len(chunks), nil
}
