package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/courtvoice/courtvoice/internal/config"
	"github.com/courtvoice/courtvoice/internal/handlers"
	"github.com/courtvoice/courtvoice/internal/logger"
	"github.com/courtvoice/courtvoice/internal/middleware"
	"github.com/courtvoice/courtvoice/internal/services"
	queueSvc "github.com/courtvoice/courtvoice/internal/services/queue"
	"github.com/courtvoice/courtvoice/internal/worker"
	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/action/loader"
	"github.com/courtvoice/courtvoice/pkg/effect"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting CourtVoice Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"approval_policy", string(cfg.ApprovalPolicy))

	storage := services.NewRedisStorage(cfg.RedisURL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storage.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	// Initialize LLM service
	var llmService services.LLMService
	switch strings.ToLower(cfg.LLMProvider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		log.Info("Using Anthropic LLM provider")
	case "venice":
		if cfg.VeniceAPIKey == "" {
			log.Error("Venice API key is required when using venice provider")
			os.Exit(1)
		}
		llmService = services.NewVeniceService(cfg.VeniceAPIKey, cfg.ModelName)
		log.Info("Using Venice LLM provider")
	case "ollama":
		llmService = services.NewOllamaService(cfg.OllamaURL, cfg.ModelName, log)
		log.Info("Using Ollama LLM provider")
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"anthropic", "venice", "ollama"})
		os.Exit(1)
	}

	// Initialize the model
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "model", cfg.ModelName)

	// Action catalog
	catalog := loader.New(cfg.ActionsDir, log)
	registry := action.NewRegistry(catalog, storage, log)
	if err := registry.Reload(context.Background()); err != nil {
		log.Error("Failed to load actions", "error", err)
		os.Exit(1)
	}

	writer := effect.NewWriter(cfg.RunFilePath, log)
	orch := turn.NewOrchestrator(registry, llmService, writer, turn.Config{
		Policy:   cfg.ApprovalPolicy,
		Shape:    cfg.SchemaShape,
		Language: cfg.Language,
	}, log)
	approvals := turn.NewApprovals(orch, log)

	queueClient := queueSvc.NewClientFromRedis(storage.GetClient(), log)
	turnQueue := queueSvc.NewTurnQueue(queueClient)

	processor := worker.NewTurnProcessor(storage, orch, approvals, log)
	w := worker.New(turnQueue, processor, log, os.Getenv("WORKER_ID"))

	// The approvals surface lives in this process: the pending set is in
	// worker memory, so the console connects here.
	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(storage, log))
	approvalsHandler := handlers.NewApprovalsHandler(log, approvals)
	mux.Handle("/v1/approvals", approvalsHandler)
	mux.Handle("/v1/approvals/", approvalsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Logger(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Approvals server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Approvals server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start worker in goroutine
	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for turn requests...")

	// Wait for shutdown signal
	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Approvals server forced to shutdown", "error", err)
	}

	// Give worker time to finish current request
	time.Sleep(2 * time.Second)

	if err := storage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Worker exited")
}
