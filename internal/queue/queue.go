// Package queue implements the durable main/processing queue pair from
// spec §4.10, backed by Redis lists using the classic reliable-queue
// pattern (RPOPLPUSH from main to processing, LREM to acknowledge).
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	mainKey       = "llmgateway:log:main"
	processingKey = "llmgateway:log:processing"
)

// Queue is the durable queue described by spec §4.10 and §3 QueueMessage.
type Queue struct {
	rdb *redis.Client
}

// New builds a Queue backed by rdb.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

// Enqueue appends a serialized Log (spec §3 QueueMessage) to the main queue.
func (q *Queue) Enqueue(ctx context.Context, message []byte) error {
	return q.rdb.LPush(ctx, mainKey, message).Err()
}

// ClaimBatch atomically moves up to n messages from main to processing and
// returns them, oldest first.
func (q *Queue) ClaimBatch(ctx context.Context, n int) ([][]byte, error) {
	var batch [][]byte
	for i := 0; i < n; i++ {
		v, err := q.rdb.RPopLPush(ctx, mainKey, processingKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, []byte(v))
	}
	return batch, nil
}

// Acknowledge removes up to len(batch) messages from the processing queue
// now that they have been durably persisted.
func (q *Queue) Acknowledge(ctx context.Context, batch [][]byte) error {
	for _, msg := range batch {
		if err := q.rdb.LRem(ctx, processingKey, 1, msg).Err(); err != nil {
			return err
		}
	}
	return nil
}

// RecoverToMain moves the given batch's messages from the processing queue
// back to main, used after a persist error to recover the batch for retry.
// Crash recovery at worker startup uses RecoverAll.
func (q *Queue) RecoverToMain(ctx context.Context, batch [][]byte) error {
	for _, msg := range batch {
		if err := q.rdb.LPush(ctx, mainKey, msg).Err(); err != nil {
			return err
		}
		if err := q.rdb.LRem(ctx, processingKey, 1, msg).Err(); err != nil {
			return err
		}
	}
	return nil
}

// RecoverAll drains the entire processing queue back to main, used once at
// worker startup per spec §4.10's crash recovery rule.
func (q *Queue) RecoverAll(ctx context.Context) (int, error) {
	n := 0
	for {
		v, err := q.rdb.RPopLPush(ctx, processingKey, mainKey).Result()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		_ = v
	}
}

// MainDepth and ProcessingDepth back the queue-depth metrics/logging the
// worker loop emits every N iterations.
func (q *Queue) MainDepth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, mainKey).Result()
}

func (q *Queue) ProcessingDepth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, processingKey).Result()
}

// Lock implements the table-backed (here: Redis-key-backed) distributed
// advisory lock from Design Notes: acquired by conditional insert (SET NX),
// released by delete, with stale-lock preemption after leaseTTL.
type Lock struct {
	rdb *redis.Client
}

// NewLock builds a Lock helper over rdb.
func NewLock(rdb *redis.Client) *Lock {
	return &Lock{rdb: rdb}
}

// Acquire attempts to take the named lock for leaseTTL. It succeeds either
// when the key doesn't exist (conditional insert) or when the existing
// lock is stale (its TTL already expired — Redis's own expiry handles the
// "updatedAt < now - lease" preemption rule automatically, since the key
// disappears on its own once the lease elapses).
func (l *Lock) Acquire(ctx context.Context, name string, leaseTTL time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, lockKey(name), time.Now().UTC().Format(time.RFC3339), leaseTTL).Result()
}

// Release deletes the named lock.
func (l *Lock) Release(ctx context.Context, name string) error {
	return l.rdb.Del(ctx, lockKey(name)).Err()
}

func lockKey(name string) string { return "llmgateway:lock:" + name }
