package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"poslink/internal/logger"
	"poslink/internal/sync"

	"github.com/gin-gonic/gin"
)

// SyncHandler exposes the synchronizers to the driving client. The client
// resubmits next_offset until completed=true.
type SyncHandler struct {
	engine *sync.Engine
	logger *logger.Logger
}

func NewSyncHandler(engine *sync.Engine, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, logger: logger}
}

// Business failures render as 200 with success=false so the polling client
// can show the message instead of a transport error.

func (h *SyncHandler) Categories(c *gin.Context) {
	result := h.engine.Categories.SyncAll(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) Products(c *gin.Context) {
	offset, err := offsetParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	result := h.engine.Products.SyncAll(c.Request.Context(), offset)
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) Stock(c *gin.Context) {
	offset, err := offsetParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	result := h.engine.Stock.SyncAll(c.Request.Context(), offset)
	c.JSON(http.StatusOK, result)
}

func (h *SyncHandler) Logs(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session"})
		return
	}
	since, _ := strconv.Atoi(c.DefaultQuery("since", "0"))

	entries, err := h.engine.Logs(sessionID, since)
	if err != nil {
		h.logger.Error("Failed to read sync logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (h *SyncHandler) Reset(c *gin.Context) {
	if err := h.engine.Reset(); err != nil {
		h.logger.Error("Failed to reset sync state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset sync state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sync state cleared"})
}

func offsetParam(c *gin.Context) (int, error) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	return offset, nil
}
