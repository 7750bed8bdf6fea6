package services

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.Mutex
	games     map[uuid.UUID]*court.GameData
	settings  *action.Settings
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		games: make(map[uuid.UUID]*court.GameData),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on saves
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveGameData mocks saving a session snapshot
func (m *MockStorage) SaveGameData(ctx context.Context, sessionID uuid.UUID, game *court.GameData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	if game == nil {
		return errors.New("game data cannot be nil")
	}
	m.games[sessionID] = game
	return nil
}

// LoadGameData mocks loading a session snapshot
func (m *MockStorage) LoadGameData(ctx context.Context, sessionID uuid.UUID) (*court.GameData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	game, exists := m.games[sessionID]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return game, nil
}

// DeleteGameData mocks deleting a session snapshot
func (m *MockStorage) DeleteGameData(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, sessionID)
	return nil
}

// LoadActionSettings mocks loading the registry settings
func (m *MockStorage) LoadActionSettings(ctx context.Context) (*action.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

// SaveActionSettings mocks saving the registry settings
func (m *MockStorage) SaveActionSettings(ctx context.Context, settings *action.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.settings = settings
	return nil
}
