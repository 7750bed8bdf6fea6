package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/courtvoice/courtvoice/pkg/action/schema"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string

	LLMProvider     string
	ModelName       string
	AnthropicAPIKey string
	VeniceAPIKey    string
	OllamaURL       string

	ActionsDir  string
	RunFilePath string

	ApprovalPolicy turn.ApprovalPolicy
	SchemaShape    schema.Shape
	Language       string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		LLMProvider:     getEnv("LLM_PROVIDER", "ollama"),
		ModelName:       getEnv("MODEL_NAME", "llama3.2"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		VeniceAPIKey:    os.Getenv("VENICE_API_KEY"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),

		ActionsDir:  getEnv("ACTIONS_DIR", "./data/actions"),
		RunFilePath: getEnv("RUN_FILE_PATH", "./run/effects.txt"),

		Language: getEnv("LANGUAGE", "en"),
	}

	policy, err := turn.ParsePolicy(getEnv("APPROVAL_POLICY", string(turn.PolicyNonDestructive)))
	if err != nil {
		return nil, err
	}
	cfg.ApprovalPolicy = policy

	shape := schema.Shape(getEnv("SCHEMA_SHAPE", string(schema.ShapeAuto)))
	switch shape {
	case schema.ShapeAuto, schema.ShapeFull, schema.ShapeMinimal:
		cfg.SchemaShape = shape
	default:
		return nil, fmt.Errorf("invalid schema shape %q", shape)
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
