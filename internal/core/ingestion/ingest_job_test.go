package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightfulops/opskb/internal/models"
	"github.com/insightfulops/opskb/internal/queue"
)

type fakeStore struct {
	deletes  []string
	inserted [][]models.DocumentChunk
	statuses []string
	calls    []string

	insertErr error
}

func (s *fakeStore) DeleteChunksByDocument(_ context.Context, documentID string) error {
	s.calls = append(s.calls, "delete")
	s.deletes = append(s.deletes, documentID)
	return nil
}

func (s *fakeStore) InsertDocumentChunks(_ context.Context, chunks []models.DocumentChunk) error {
	s.calls = append(s.calls, "insert")
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, chunks)
	return nil
}

func (s *fakeStore) UpdateDocumentStatus(_ context.Context, _ string, status string) error {
	s.calls = append(s.calls, "status:"+status)
	s.statuses = append(s.statuses, status)
	return nil
}

type fakeFetcher struct {
	data map[string][]byte
	err  error
}

func (f *fakeFetcher) GetFile(_ context.Context, _, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return data, nil
}

type fakeEmbedder struct {
	err   error
	short bool
	calls int
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func testJob() queue.IngestJobPayload {
	return queue.IngestJobPayload{
		DocID:     "doc-1",
		CompanyID: "co-1",
		FilePath:  "co-1/doc-1/handbook.txt",
	}
}

func TestIngestorRunSuccess(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("first paragraph here\n\nsecond paragraph here"),
	}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{}, "bucket")

	n, err := ing.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, store.inserted, 1)
	rows := store.inserted[0]
	require.Len(t, rows, 1)
	assert.Equal(t, "doc-1", rows[0].DocumentID)
	assert.Equal(t, "co-1", rows[0].CompanyID)
	assert.Equal(t, 0, rows[0].ChunkIndex)
	assert.NotEmpty(t, rows[0].ID)
	assert.NotEmpty(t, rows[0].Embedding)

	assert.Equal(t, []string{"delete", "insert", "status:" + models.DocStatusIndexed}, store.calls)
}

func TestIngestorRunReplacesPriorChunks(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("some words in a doc"),
	}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{}, "bucket")

	_, err := ing.Run(context.Background(), testJob())
	require.NoError(t, err)
	_, err = ing.Run(context.Background(), testJob())
	require.NoError(t, err)

	// Each run deletes before inserting, so re-runs replace instead of append.
	assert.Equal(t, []string{"doc-1", "doc-1"}, store.deletes)
	require.Len(t, store.inserted, 2)
	assert.Len(t, store.inserted[0], 1)
	assert.Len(t, store.inserted[1], 1)
}

func TestIngestorRunEmptyDocument(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("   \n\n  "),
	}}
	emb := &fakeEmbedder{}
	ing := NewIngestor(store, fetcher, emb, "bucket")

	n, err := ing.Run(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, emb.calls)
	assert.Equal(t, []string{models.DocStatusIndexed}, store.statuses)
}

func TestIngestorRunUnsupportedFileType(t *testing.T) {
	store := &fakeStore{}
	job := testJob()
	job.FilePath = "co-1/doc-1/report.pdf"
	fetcher := &fakeFetcher{data: map[string][]byte{job.FilePath: []byte("%PDF")}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{}, "bucket")

	_, err := ing.Run(context.Background(), job)
	var ufe *UnsupportedFileTypeError
	require.True(t, errors.As(err, &ufe))
	assert.Empty(t, store.calls, "nothing should be persisted")
}

func TestIngestorRunEmbedFailureLeavesStoreUntouched(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("some words"),
	}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{err: errors.New("quota exceeded")}, "bucket")

	_, err := ing.Run(context.Background(), testJob())
	require.ErrorContains(t, err, "quota exceeded")
	assert.Empty(t, store.calls)
}

func TestIngestorRunEmbeddingCountMismatch(t *testing.T) {
	store := &fakeStore{}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("some words"),
	}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{short: true}, "bucket")

	_, err := ing.Run(context.Background(), testJob())
	require.ErrorContains(t, err, "embedding count mismatch")
	assert.Empty(t, store.calls)
}

func TestIngestorRunFetchFailure(t *testing.T) {
	store := &fakeStore{}
	ing := NewIngestor(store, &fakeFetcher{err: errors.New("s3 down")}, &fakeEmbedder{}, "bucket")

	_, err := ing.Run(context.Background(), testJob())
	require.ErrorContains(t, err, "s3 down")
	assert.Empty(t, store.calls)
}

func TestIngestorRunInsertFailureSkipsStatus(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("db down")}
	fetcher := &fakeFetcher{data: map[string][]byte{
		"co-1/doc-1/handbook.txt": []byte("some words"),
	}}
	ing := NewIngestor(store, fetcher, &fakeEmbedder{}, "bucket")

	_, err := ing.Run(context.Background(), testJob())
	require.ErrorContains(t, err, "db down")
	assert.Empty(t, store.statuses, "status must not move to indexed")
}
