package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/automaton-hq/automaton/internal/domain/model"
)

// DefaultPollQueueKey is the Redis list agent workers consume poll requests from.
const DefaultPollQueueKey = "automaton:poll_queue"

// RedisPollQueue implements the PollQueue interface on top of a Redis list.
// Poll requests are pushed with LPUSH; workers consume with BRPOP, giving
// FIFO delivery across any number of consumers.
type RedisPollQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisPollQueue creates a RedisPollQueue on the given Redis client.
// An empty key selects DefaultPollQueueKey.
func NewRedisPollQueue(client redis.UniversalClient, key string) *RedisPollQueue {
	if key == "" {
		key = DefaultPollQueueKey
	}
	return &RedisPollQueue{client: client, key: key}
}

// Enqueue pushes a poll request onto the queue.
func (q *RedisPollQueue) Enqueue(ctx context.Context, req model.PollRequest) error {
	if req.JobID == "" {
		return errors.New("job_id is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode poll request: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Len returns the number of poll requests waiting in the queue.
func (q *RedisPollQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// Dequeue blocks until a poll request is available or the timeout elapses.
// Returns nil when the timeout elapses without a request.
func (q *RedisPollQueue) Dequeue(ctx context.Context, timeout time.Duration) (*model.PollRequest, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis brpop: %w", err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected brpop reply length %d", len(res))
	}

	var req model.PollRequest
	if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
		return nil, fmt.Errorf("decode poll request: %w", err)
	}
	return &req, nil
}

// Health checks the health of the Redis connection.
func (q *RedisPollQueue) Health(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
