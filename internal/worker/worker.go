package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/internal/services/queue"
)

// Worker drains the turn queue sequentially. One request is fully
// resolved, including any human approvals, before the next is dequeued,
// so actions from different characters never interleave.
type Worker struct {
	id        string
	queue     *queue.TurnQueue
	processor *TurnProcessor
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new worker instance
func New(turnQueue *queue.TurnQueue, processor *TurnProcessor, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:        workerID,
		queue:     turnQueue,
		processor: processor,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	// Block waiting for the next request, with a timeout so shutdown is
	// noticed between requests.
	ctx, cancel := context.WithTimeout(w.ctx, 5*time.Second)
	defer cancel()

	req, err := w.queue.BlockingDequeue(ctx)
	if err != nil {
		if w.ctx.Err() != nil || ctx.Err() != nil {
			// Shutdown or poll timeout, not a failure.
			return nil
		}
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	w.log.Info("Received turn request",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"session_id", req.SessionID.String(),
		"source", req.SourceCharacterID,
	)

	start := time.Now()
	if err := w.processor.ProcessTurn(w.ctx, req); err != nil {
		return fmt.Errorf("failed to process turn: %w", err)
	}

	w.log.Info("Turn processed",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
