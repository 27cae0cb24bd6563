// Package queue hands lab job ids from submitters to workers through a Redis
// list. Delivery is at least once; executing a job twice is harmless because
// claiming it is conditional.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list holding pending job ids.
const DefaultKey = "litlab:lab_jobs"

// Queue is a Redis-backed FIFO of job ids.
type Queue struct {
	rdb *redis.Client
	key string
}

// Dial connects to Redis at addr and verifies the connection.
func Dial(ctx context.Context, addr, key string) (*Queue, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, key), nil
}

// New wraps an existing client. An empty key uses DefaultKey.
func New(rdb *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key}
}

// Enqueue appends a job id.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest job id. It returns "" and no
// error when the timeout passes with an empty queue.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("dequeue: unexpected reply %v", res)
	}
	return res[1], nil
}

// Len returns the number of pending ids.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Close closes the Redis client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}
