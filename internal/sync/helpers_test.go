package sync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
	"poslink/internal/mapping"
	"poslink/internal/media"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	cache    *cache.Store
	client   *catalog.Client
	mappings mapping.Store
	log      *logger.Logger
	cfg      *config.Config
}

func newTestEnv(t *testing.T, handler http.Handler) *testEnv {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New("sqlite://file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		POSAPIURL:         ts.URL,
		POSAPIToken:       "test-token",
		POSLocationID:     "loc-1",
		POSSalesChannelID: "chan-1",
		CacheTTLHours:     1,
	}
	log := logger.New("error")
	cacheStore := cache.New(db.DB)

	return &testEnv{
		db:       db.DB,
		cache:    cacheStore,
		client:   catalog.NewClient(cfg, cacheStore, log),
		mappings: mapping.NewStore(db.DB),
		log:      log,
		cfg:      cfg,
	}
}

func (e *testEnv) categories(t *testing.T) *Categories {
	t.Helper()
	return NewCategories(e.client, e.db, e.mappings, e.log)
}

func (e *testEnv) products(t *testing.T, batchSize int, timeBudget time.Duration) *Products {
	t.Helper()
	sessionTTL := 30 * time.Minute
	return NewProducts(e.client, e.db, e.mappings, media.NewIngestor(e.db, e.log),
		NewSessionManager(e.cache, sessionTTL), NewSweepLock(e.cache, time.Minute),
		e.cache, e.log, batchSize, timeBudget, sessionTTL)
}

func (e *testEnv) stock(t *testing.T, batchSize int, timeBudget time.Duration) *Stock {
	t.Helper()
	sessionTTL := 30 * time.Minute
	return NewStock(e.client, e.db, NewSessionManager(e.cache, sessionTTL),
		NewSweepLock(e.cache, time.Minute), e.cache, e.log, batchSize, timeBudget, sessionTTL)
}
