package queue

import (
	"context"
	"log"
	"time"

	"github.com/panjf2000/ants/v2"
)

const fetchTimeout = 2 * time.Second

// Handler executes one ingestion job. A returned error feeds the queue's
// retry/backoff accounting; any best-effort status mutation (marking the
// document failed) happens inside the handler before it returns.
type Handler func(ctx context.Context, payload IngestJobPayload) error

// Worker consumes jobs from the queue. Several worker processes may run
// against the same broker; the pending→active list move gives per-delivery
// mutual exclusion.
type Worker struct {
	queue   *RedisQueue
	handler Handler
	pool    *ants.Pool
}

func NewWorker(q *RedisQueue, handler Handler, concurrency int) (*Worker, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	return &Worker{queue: q, handler: handler, pool: pool}, nil
}

// Run blocks until ctx is cancelled. Jobs execute on a bounded pool; Submit
// blocks when all executors are busy, so fetching applies backpressure.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		if err := w.pool.ReleaseTimeout(30 * time.Second); err != nil {
			log.Printf("worker: pool shutdown: %v", err)
		}
	}()

	if n, err := w.queue.reclaimActive(ctx); err != nil {
		log.Printf("worker: reclaim: %v", err)
	} else if n > 0 {
		log.Printf("worker: reclaimed %d orphaned job(s)", n)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.queue.promoteDue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("worker: promote delayed: %v", err)
		}

		id, err := w.queue.fetch(ctx, fetchTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("worker: fetch: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if id == "" {
			continue
		}

		jobID := id
		if err := w.pool.Submit(func() { w.process(ctx, jobID) }); err != nil {
			log.Printf("worker: submit job %s: %v", jobID, err)
			if rerr := w.queue.retryLater(ctx, jobID, 0); rerr != nil {
				log.Printf("worker: requeue job %s: %v", jobID, rerr)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, id string) {
	payload, err := w.queue.payload(ctx, id)
	if err != nil {
		// A malformed or missing payload can never succeed; drop it.
		log.Printf("worker: job %s unusable: %v", id, err)
		if ferr := w.queue.finalize(ctx, id, false); ferr != nil {
			log.Printf("worker: %v", ferr)
		}
		return
	}

	attempt, err := w.queue.bumpAttempts(ctx, id)
	if err != nil {
		log.Printf("worker: %v", err)
		if rerr := w.queue.retryLater(ctx, id, BackoffBase); rerr != nil {
			log.Printf("worker: %v", rerr)
		}
		return
	}

	log.Printf("worker: %s job %s started (attempt %d/%d, doc %s)",
		DocIngestJobName, id, attempt, MaxAttempts, payload.DocID)

	if err := w.handler(ctx, payload); err != nil {
		log.Printf("worker: job %s failed: %v", id, err)
		if attempt >= MaxAttempts {
			if ferr := w.queue.finalize(ctx, id, false); ferr != nil {
				log.Printf("worker: %v", ferr)
			}
			return
		}
		if rerr := w.queue.retryLater(ctx, id, RetryBackoff(attempt)); rerr != nil {
			log.Printf("worker: %v", rerr)
		}
		return
	}

	log.Printf("worker: job %s completed", id)
	if err := w.queue.finalize(ctx, id, true); err != nil {
		log.Printf("worker: %v", err)
	}
}
