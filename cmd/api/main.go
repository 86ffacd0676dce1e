package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colborne/fable-engine/internal/combat"
	"github.com/colborne/fable-engine/internal/config"
	"github.com/colborne/fable-engine/internal/handlers"
	"github.com/colborne/fable-engine/internal/logger"
	"github.com/colborne/fable-engine/internal/middleware"
	"github.com/colborne/fable-engine/internal/services"
	"github.com/colborne/fable-engine/internal/services/events"
	storysvc "github.com/colborne/fable-engine/internal/story"
	"github.com/colborne/fable-engine/internal/vitality"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting Fable Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment)

	redisStorage := services.NewRedisStorage(cfg.RedisURL, log)
	var storage services.Storage = redisStorage

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := redisStorage.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	broadcaster := events.NewBroadcaster(redisStorage.GetClient(), log)

	// The combat lock table is shared between the tracker and the vitality
	// service; story appends and compactions serialize on their own table.
	combatLocks := services.NewOwnerLocks()
	storyLocks := services.NewOwnerLocks()

	vitalityService := vitality.NewService(storage, combatLocks, broadcaster, log)
	storyService := storysvc.NewService(storage, storyLocks, broadcaster, log)
	tracker := combat.NewTracker(storage, combatLocks, vitalityService, storyService, broadcaster, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(storage, log)
	mux.Handle("/health", healthHandler)

	actorsHandler := handlers.NewActorsHandler(storage, vitalityService, log)
	mux.Handle("/v1/actors", actorsHandler)
	mux.Handle("/v1/actors/", actorsHandler)

	encounterHandler := handlers.NewEncounterHandler(tracker, log)
	mux.Handle("/v1/encounters", encounterHandler)
	mux.Handle("/v1/encounters/", encounterHandler)

	storyHandler := handlers.NewStoryHandler(storyService, cfg.StoryWindowLimit, log)
	mux.Handle("/v1/story/", storyHandler)

	eventsHandler := handlers.NewEventsHandler(redisStorage.GetClient(), log)
	mux.Handle("/v1/events/", eventsHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout omitted so SSE streams are not cut off
		IdleTimeout: 60 * time.Second,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := storage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
