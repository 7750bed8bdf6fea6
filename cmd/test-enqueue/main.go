package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/courtvoice/courtvoice/pkg/queue"
)

// test-enqueue pushes a single turn request onto the queue so the worker
// can be exercised without the API.
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <session-uuid> <source-character-id>\n", os.Args[0])
		os.Exit(1)
	}

	sessionID, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal("Invalid session UUID:", err)
	}
	sourceID, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		log.Fatal("Invalid source character id:", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: redisURL})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	req := queue.NewRequest(sessionID, sourceID)
	data, err := req.ToJSON()
	if err != nil {
		log.Fatal("Failed to marshal request:", err)
	}

	if err := client.RPush(ctx, "turns", data).Err(); err != nil {
		log.Fatal("Failed to enqueue request:", err)
	}
	fmt.Printf("Enqueued turn request %s for character %d\n", req.RequestID, sourceID)

	depth, err := client.LLen(ctx, "turns").Result()
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}
	fmt.Printf("Queue depth: %d requests\n", depth)
}
