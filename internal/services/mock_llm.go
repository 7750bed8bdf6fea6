package services

import (
	"context"
	"sync"

	"github.com/courtvoice/courtvoice/pkg/chat"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc      func(ctx context.Context, modelName string) error
	ChatCompletionFunc func(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error)
	Model              string

	// Track calls for testing
	InitModelCalls      []string
	ChatCompletionCalls []ChatCompletionCall

	mu sync.Mutex // protects all fields above
}

type ChatCompletionCall struct {
	Messages []chat.Message
	Format   *chat.ResponseFormat
}

var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		Model:               "mock-model",
		InitModelCalls:      make([]string, 0),
		ChatCompletionCalls: make([]ChatCompletionCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

func (m *MockLLMAPI) ModelName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// ChatCompletion mocks a completion request
func (m *MockLLMAPI) ChatCompletion(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error) {
	m.mu.Lock()
	fn := m.ChatCompletionFunc
	m.ChatCompletionCalls = append(m.ChatCompletionCalls, ChatCompletionCall{
		Messages: messages,
		Format:   format,
	})
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messages, format)
	}
	return `{"actions": []}`, nil
}

// SetResponse sets up the mock to return a fixed completion
func (m *MockLLMAPI) SetResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCompletionFunc = func(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error) {
		return response, nil
	}
}

// SetError sets up the mock to fail completion requests
func (m *MockLLMAPI) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCompletionFunc = func(ctx context.Context, messages []chat.Message, format *chat.ResponseFormat) (string, error) {
		return "", err
	}
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.ChatCompletionCalls = make([]ChatCompletionCall, 0)
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []ChatCompletionCall) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	respCalls := make([]ChatCompletionCall, len(m.ChatCompletionCalls))
	copy(respCalls, m.ChatCompletionCalls)

	return initCalls, respCalls
}
