package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"poslink/internal/api/handlers"
	"poslink/internal/api/middleware"
	"poslink/internal/cache"
	"poslink/internal/config"
	"poslink/internal/database"
	"poslink/internal/logger"
	"poslink/internal/orders"
	"poslink/internal/services/catalog"
	"poslink/internal/sync"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())

	// Shared services
	cacheStore := cache.New(db.DB)
	client := catalog.NewClient(cfg, cacheStore, logger)
	engine := sync.NewEngine(cfg, db.DB, client, cacheStore, logger)
	processor := orders.NewProcessor(db.DB, client, logger)

	// Initialize handlers
	syncHandler := handlers.NewSyncHandler(engine, logger)
	webhookHandler := handlers.NewWebhookHandler(processor, cfg.WebhookSecret, logger)
	productHandler := handlers.NewProductHandler(db.DB, logger)
	categoryHandler := handlers.NewCategoryHandler(db.DB, logger)

	// Routes
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		// Synchronizers, driven by the polling client
		syncGroup := v1.Group("/sync")
		{
			syncGroup.POST("/categories", syncHandler.Categories)
			syncGroup.POST("/products", syncHandler.Products)
			syncGroup.POST("/stock", syncHandler.Stock)
			syncGroup.GET("/logs", syncHandler.Logs)
			syncGroup.POST("/reset", syncHandler.Reset)
		}

		// Inbound webhooks
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/orders", webhookHandler.OrderPaid)
		}

		// Operator read surface
		products := v1.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", categoryHandler.List)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// GetRouter exposes the router for serverless deployments.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
