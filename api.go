// Package handler is the serverless entrypoint. Each invocation is a fresh
// short-lived process with an execution-time ceiling, which is exactly the
// model the resumable synchronizers are built for: the polling client keeps
// invoking with the last next_offset until the sweep completes.
package handler

import (
	"net/http"
	"sync"

	"poslink/internal/api"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
)

var (
	initOnce sync.Once
	server   *api.Server
	initErr  error
)

func initServer() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}

	log := logger.New(cfg.LogLevel)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		initErr = err
		return
	}

	server = api.New(cfg, log, db)
}

// Handler serves one invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(initServer)
	if initErr != nil {
		http.Error(w, "service initialization failed: "+initErr.Error(), http.StatusInternalServerError)
		return
	}
	server.GetRouter().ServeHTTP(w, r)
}
