package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is the broker-backed queue. State is held in Redis only:
//
//	{prefix}:pending   list of job ids awaiting delivery
//	{prefix}:active    list of job ids currently held by a worker
//	{prefix}:delayed   zset of job ids scheduled for retry (score = ready-at ms)
//	{prefix}:job:{id}  hash with the payload and the attempt counter
//	{prefix}:completed / {prefix}:failed  trimmed record lists
//
// The job hash doubles as the dedupe guard: HSETNX on its payload field makes
// enqueue a no-op while the same document is pending, delayed, or active.
type RedisQueue struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient connects to the broker and verifies it is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, prefix: "opskb:" + DocIngestQueueName}
}

func (q *RedisQueue) pendingKey() string   { return q.prefix + ":pending" }
func (q *RedisQueue) activeKey() string    { return q.prefix + ":active" }
func (q *RedisQueue) delayedKey() string   { return q.prefix + ":delayed" }
func (q *RedisQueue) completedKey() string { return q.prefix + ":completed" }
func (q *RedisQueue) failedKey() string    { return q.prefix + ":failed" }
func (q *RedisQueue) jobKey(id string) string {
	return q.prefix + ":job:" + id
}

var _ Enqueuer = (*RedisQueue)(nil)

// Enqueue submits a job keyed by document id. If a job for the same document
// already exists anywhere in the queue, the call is a no-op.
func (q *RedisQueue) Enqueue(ctx context.Context, payload IngestJobPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	created, err := q.rdb.HSetNX(ctx, q.jobKey(payload.DocID), "payload", body).Result()
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", payload.DocID, err)
	}
	if !created {
		// Job already queued, delayed, or in flight; it will run with the
		// payload it was first enqueued with.
		return nil
	}
	if err := q.rdb.LPush(ctx, q.pendingKey(), payload.DocID).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", payload.DocID, err)
	}
	return nil
}

// fetch blocks until a job id moves from pending to active, or the timeout
// elapses. Returns "" on timeout.
func (q *RedisQueue) fetch(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.rdb.BLMove(ctx, q.pendingKey(), q.activeKey(), "RIGHT", "LEFT", timeout).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// payload loads and validates the stored payload for a job id.
func (q *RedisQueue) payload(ctx context.Context, id string) (IngestJobPayload, error) {
	var p IngestJobPayload
	body, err := q.rdb.HGet(ctx, q.jobKey(id), "payload").Result()
	if err == redis.Nil {
		return p, fmt.Errorf("%w: job %s has no stored payload", ErrInvalidJobPayload, id)
	}
	if err != nil {
		return p, fmt.Errorf("load job %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return p, fmt.Errorf("%w: job %s: %v", ErrInvalidJobPayload, id, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// bumpAttempts increments and returns the 1-based attempt counter.
func (q *RedisQueue) bumpAttempts(ctx context.Context, id string) (int, error) {
	n, err := q.rdb.HIncrBy(ctx, q.jobKey(id), "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempt for job %s: %w", id, err)
	}
	return int(n), nil
}

// retryLater releases the active hold and schedules the job for another
// delivery after the given backoff.
func (q *RedisQueue) retryLater(ctx context.Context, id string, backoff time.Duration) error {
	readyAt := time.Now().Add(backoff).UnixMilli()
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, id)
	pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(readyAt), Member: id})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("schedule retry for job %s: %w", id, err)
	}
	return nil
}

// finalize removes every trace of the job except a trimmed completion record.
func (q *RedisQueue) finalize(ctx context.Context, id string, succeeded bool) error {
	record := q.failedKey()
	if succeeded {
		record = q.completedKey()
	}
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, id)
	pipe.Del(ctx, q.jobKey(id))
	pipe.LPush(ctx, record, id)
	pipe.LTrim(ctx, record, 0, RetainedJobs-1)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize job %s: %w", id, err)
	}
	return nil
}

// promoteDue moves delayed jobs whose backoff has elapsed back to pending.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed jobs: %w", err)
	}
	for _, id := range ids {
		// ZRem guards against another worker promoting the same id.
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return fmt.Errorf("promote job %s: %w", id, err)
		}
		if removed > 0 {
			if err := q.rdb.LPush(ctx, q.pendingKey(), id).Err(); err != nil {
				return fmt.Errorf("promote job %s: %w", id, err)
			}
		}
	}
	return nil
}

// reclaimActive requeues job ids left on the active list by a crashed worker.
// Delivery is at-least-once: a job reclaimed from a live worker simply runs
// again, and ingestion is idempotent by design.
func (q *RedisQueue) reclaimActive(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.rdb.LMove(ctx, q.activeKey(), q.pendingKey(), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("reclaim active jobs: %w", err)
		}
		n++
	}
}
