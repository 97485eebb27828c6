// Package queue implements the durable document-ingestion queue on Redis:
// at-least-once delivery, stable job identity (job id = document id),
// bounded retries with exponential backoff, and pruned completion records.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Wire contract shared by producer and worker processes.
const (
	DocIngestQueueName = "doc_ingest"
	DocIngestJobName   = "ingest"
)

// Retry policy and record retention, matching the broker defaults the system
// was operated with.
const (
	MaxAttempts  = 5
	BackoffBase  = 5 * time.Second
	RetainedJobs = 1000
)

var ErrInvalidJobPayload = errors.New("invalid ingest job payload")

// IngestJobPayload is the message body for one ingestion job. The job id is
// the document id, so re-enqueuing an unprocessed document collapses into a
// single logical job.
type IngestJobPayload struct {
	DocID            string `json:"docId"`
	CompanyID        string `json:"companyId"`
	FilePath         string `json:"filePath"`
	Visibility       string `json:"visibility"`
	UploadedByUserID string `json:"uploadedByUserId"`
	Title            string `json:"title"`
}

// Validate rejects malformed payloads before they reach the broker or a
// worker. Payloads come back off the wire, so workers re-validate too.
func (p IngestJobPayload) Validate() error {
	if p.DocID == "" {
		return fmt.Errorf("%w: missing docId", ErrInvalidJobPayload)
	}
	if p.CompanyID == "" {
		return fmt.Errorf("%w: missing companyId", ErrInvalidJobPayload)
	}
	if p.FilePath == "" {
		return fmt.Errorf("%w: missing filePath", ErrInvalidJobPayload)
	}
	return nil
}

// Enqueuer submits ingestion jobs. Producers treat it as fire-and-forget.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload IngestJobPayload) error
}

// NoopEnqueuer is used when no queue backend is configured. Enqueue succeeds
// without doing anything; the document stays in "processing" and an operator
// can trigger a reindex once a broker is available.
type NoopEnqueuer struct{}

func (NoopEnqueuer) Enqueue(context.Context, IngestJobPayload) error { return nil }

// RetryBackoff returns the delay before the given retry. attempt is 1-based:
// the delay after the first failed attempt is BackoffBase, then it doubles.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return BackoffBase << (attempt - 1)
}
