package services

import (
	"context"

	"github.com/courtvoice/courtvoice/pkg/chat"
)

// LLMService defines the interface for interacting with an LLM provider.
type LLMService interface {
	// InitModel initializes the model on startup. Providers that need no
	// warmup return nil immediately.
	InitModel(ctx context.Context, modelName string) error

	// ChatCompletion sends a non-streaming completion request. The
	// response format is advisory; callers validate the reply themselves.
	ChatCompletion(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error)

	// ModelName returns the configured model identifier.
	ModelName() string
}
