// Package sync contains the resumable synchronizers that move the remote
// POS catalog into the local store, batch by batch, across many
// time-budgeted invocations.
package sync

import (
	"fmt"
	"time"

	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/logger"
	"poslink/internal/mapping"
	"poslink/internal/media"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

// Engine bundles the synchronizers and their shared state.
type Engine struct {
	Categories *Categories
	Products   *Products
	Stock      *Stock

	client   *catalog.Client
	mappings mapping.Store
	cache    *cache.Store
}

func NewEngine(cfg *config.Config, db *gorm.DB, client *catalog.Client, cacheStore *cache.Store, log *logger.Logger) *Engine {
	mappings := mapping.NewStore(db)
	ingestor := media.NewIngestor(db, log)

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	timeBudget := time.Duration(cfg.SyncTimeBudgetSeconds) * time.Second
	sessions := NewSessionManager(cacheStore, sessionTTL)
	lock := NewSweepLock(cacheStore, timeBudget+yieldMargin)

	return &Engine{
		Categories: NewCategories(client, db, mappings, log),
		Products: NewProducts(client, db, mappings, ingestor, sessions, lock,
			cacheStore, log, cfg.SyncBatchSize, timeBudget, sessionTTL),
		Stock: NewStock(client, db, sessions, lock, cacheStore, log,
			cfg.SyncBatchSize, timeBudget, sessionTTL),
		client:   client,
		mappings: mappings,
		cache:    cacheStore,
	}
}

// Reset wipes mappings, cached remote pages and session state in one
// operation. They are interdependent: clearing the cache but not the
// mappings risks a re-fetch racing a half-finished sweep.
func (e *Engine) Reset() error {
	if err := e.mappings.Reset(); err != nil {
		return fmt.Errorf("failed to reset mappings: %w", err)
	}
	if err := e.cache.DeletePrefix("catalog:"); err != nil {
		return fmt.Errorf("failed to clear catalog cache: %w", err)
	}
	if err := e.cache.DeletePrefix("sync:"); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}

// Logs returns the buffered log of a session, optionally only entries after
// sinceSeq.
func (e *Engine) Logs(sessionID string, sinceSeq int) ([]LogEntry, error) {
	return LogsFor(e.cache, sessionID, sinceSeq)
}
