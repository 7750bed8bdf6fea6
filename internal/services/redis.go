package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/court"
)

const (
	gameKeyPrefix     = "courtvoice:game:"
	actionSettingsKey = "courtvoice:action_settings"

	// Sessions expire after a week of inactivity.
	gameDataTTL = 7 * 24 * time.Hour
)

// RedisStorage implements the Storage interface using Redis.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(redisURL string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	return &RedisStorage{
		client: rdb,
		logger: logger,
	}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// GetClient exposes the underlying client for queue consumers.
func (r *RedisStorage) GetClient() *redis.Client {
	return r.client
}

func (r *RedisStorage) SaveGameData(ctx context.Context, sessionID uuid.UUID, game *court.GameData) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game data: %w", err)
	}

	key := gameKeyPrefix + sessionID.String()
	if err := r.client.Set(ctx, key, data, gameDataTTL).Err(); err != nil {
		return fmt.Errorf("failed to save game data: %w", err)
	}

	r.logger.Debug("Game data saved", "session_id", sessionID, "bytes", len(data))
	return nil
}

func (r *RedisStorage) LoadGameData(ctx context.Context, sessionID uuid.UUID) (*court.GameData, error) {
	key := gameKeyPrefix + sessionID.String()
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load game data: %w", err)
	}

	var game court.GameData
	if err := json.Unmarshal([]byte(data), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game data: %w", err)
	}
	return &game, nil
}

func (r *RedisStorage) DeleteGameData(ctx context.Context, sessionID uuid.UUID) error {
	key := gameKeyPrefix + sessionID.String()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete game data: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadActionSettings(ctx context.Context) (*action.Settings, error) {
	data, err := r.client.Get(ctx, actionSettingsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load action settings: %w", err)
	}

	var settings action.Settings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action settings: %w", err)
	}
	return &settings, nil
}

func (r *RedisStorage) SaveActionSettings(ctx context.Context, settings *action.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal action settings: %w", err)
	}

	if err := r.client.Set(ctx, actionSettingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save action settings: %w", err)
	}
	return nil
}
