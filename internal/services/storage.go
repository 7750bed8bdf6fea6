package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the service connection
	Close() error
}

// Storage defines the interface for session and settings persistence.
type Storage interface {
	HealthChecker
	Closer

	// SaveGameData saves a session's court snapshot
	SaveGameData(ctx context.Context, sessionID uuid.UUID, game *court.GameData) error

	// LoadGameData retrieves a session's court snapshot.
	// Returns nil if the session doesn't exist.
	LoadGameData(ctx context.Context, sessionID uuid.UUID) (*court.GameData, error)

	// DeleteGameData removes a session
	DeleteGameData(ctx context.Context, sessionID uuid.UUID) error

	// LoadActionSettings retrieves the action registry settings.
	// Returns nil when none have been saved yet.
	LoadActionSettings(ctx context.Context) (*action.Settings, error)

	// SaveActionSettings replaces the action registry settings
	SaveActionSettings(ctx context.Context, settings *action.Settings) error
}
