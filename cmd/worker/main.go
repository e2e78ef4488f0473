package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
	"poslink/internal/orders"
	"poslink/internal/services/catalog"
	"poslink/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}

	// Initialize worker
	cacheStore := cache.New(db.DB)
	client := catalog.NewClient(cfg, cacheStore, logger)
	processor := orders.NewProcessor(db.DB, client, logger)
	w := worker.New(cfg, logger, processor)

	// Start worker
	logger.Info("Starting worker...")
	go w.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	w.Stop()
}
