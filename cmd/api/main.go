package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtvoice/courtvoice/internal/config"
	"github.com/courtvoice/courtvoice/internal/handlers"
	"github.com/courtvoice/courtvoice/internal/logger"
	"github.com/courtvoice/courtvoice/internal/middleware"
	"github.com/courtvoice/courtvoice/internal/services"
	queueSvc "github.com/courtvoice/courtvoice/internal/services/queue"
	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/action/loader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting CourtVoice API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"actions_dir", cfg.ActionsDir)

	storage := services.NewRedisStorage(cfg.RedisURL, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storage.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	// Action catalog, shared with the worker through the settings store.
	catalog := loader.New(cfg.ActionsDir, log)
	registry := action.NewRegistry(catalog, storage, log)
	if err := registry.Reload(context.Background()); err != nil {
		log.Error("Failed to load actions", "error", err)
		os.Exit(1)
	}

	queueClient := queueSvc.NewClientFromRedis(storage.GetClient(), log)
	turnQueue := queueSvc.NewTurnQueue(queueClient)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(storage, log)
	mux.Handle("/health", healthHandler)

	sessionsHandler := handlers.NewSessionsHandler(log, storage)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	actionsHandler := handlers.NewActionsHandler(log, registry)
	mux.Handle("/v1/actions", actionsHandler)
	mux.Handle("/v1/actions/", actionsHandler)

	turnHandler := handlers.NewTurnHandler(log, storage, turnQueue)
	mux.Handle("/v1/turn", turnHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := storage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
