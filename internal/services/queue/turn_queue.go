package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/courtvoice/courtvoice/pkg/queue"
)

const turnsKey = "turns"

// TurnQueue is the global FIFO of turn evaluations. A single worker
// drains it, so one character acts at a time.
type TurnQueue struct {
	client *Client
}

func NewTurnQueue(client *Client) *TurnQueue {
	return &TurnQueue{
		client: client,
	}
}

// Enqueue adds a turn request to the end of the global queue
func (q *TurnQueue) Enqueue(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, turnsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue turn request: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next turn request.
// Returns nil if queue is empty.
func (q *TurnQueue) Dequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, turnsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue turn request: %w", err)
	}

	req, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse turn request: %w", err)
	}
	return req, nil
}

// BlockingDequeue blocks until a turn request is available, then returns it
func (q *TurnQueue) BlockingDequeue(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, 0, turnsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue turn request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	req, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse turn request: %w", err)
	}
	return req, nil
}

// Depth returns the number of requests in the global queue
func (q *TurnQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, turnsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get turn queue depth: %w", err)
	}
	return int(count), nil
}

// Clear drops all queued turn requests
func (q *TurnQueue) Clear(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, turnsKey).Err(); err != nil {
		return fmt.Errorf("failed to clear turn queue: %w", err)
	}
	return nil
}
