package sync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"poslink/internal/cache"
	"poslink/internal/logger"
	"poslink/internal/models"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

// Stock is the resumable stock sweep. It walks locally-mapped products in a
// stable id order, one window at a time, and writes remote quantities into
// the local store. Only the current window is materialized, which matters
// at catalog scale.
type Stock struct {
	client   *catalog.Client
	db       *gorm.DB
	sessions *SessionManager
	lock     *SweepLock
	cache    *cache.Store
	logger   *logger.Logger

	batchSize  int
	timeBudget time.Duration
	sessionTTL time.Duration
}

func NewStock(client *catalog.Client, db *gorm.DB, sessions *SessionManager,
	lock *SweepLock, cacheStore *cache.Store, log *logger.Logger,
	batchSize int, timeBudget, sessionTTL time.Duration) *Stock {
	return &Stock{
		client:     client,
		db:         db,
		sessions:   sessions,
		lock:       lock,
		cache:      cacheStore,
		logger:     log,
		batchSize:  batchSize,
		timeBudget: timeBudget,
		sessionTTL: sessionTTL,
	}
}

type StockResult struct {
	Success    bool       `json:"success"`
	Completed  bool       `json:"completed"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Updated    int        `json:"updated"`
	Failed     int        `json:"failed"`
	Errors     []string   `json:"errors"`
	NextOffset int        `json:"next_offset"`
	SessionID  string     `json:"session_id"`
	Logs       []LogEntry `json:"logs"`
	Message    string     `json:"message"`
}

// stockTarget is one windowed row: a product plus its POS ids pulled from
// its tags.
type stockTarget struct {
	ID             string
	POSProductID   string
	POSVariationID string
}

// SyncAll runs one window of the stock sweep starting at offset.
func (s *Stock) SyncAll(ctx context.Context, offset int) *StockResult {
	start := time.Now()
	deadline := start.Add(s.timeBudget)
	result := &StockResult{Errors: []string{}, NextOffset: offset}

	acquired, err := s.lock.Acquire("stock")
	if err != nil {
		result.Message = fmt.Sprintf("Failed to acquire sweep lock: %v", err)
		return result
	}
	if !acquired {
		result.Message = "A stock sync is already in progress, retry shortly"
		return result
	}
	defer s.lock.Release("stock")

	sess, err := s.sessions.Current("stock")
	if err != nil {
		result.Message = fmt.Sprintf("Failed to open sync session: %v", err)
		return result
	}
	result.SessionID = sess.ID

	buf, err := NewLogBuffer(s.cache, sess.ID, s.sessionTTL)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to open log buffer: %v", err)
		return result
	}
	defer func() {
		result.Logs = buf.Entries()
		if err := buf.Flush(); err != nil {
			s.logger.Error("Failed to persist sync logs: %v", err)
		}
	}()

	buf.Info("Starting stock batch", map[string]interface{}{"offset": offset})

	total, err := s.countMapped()
	if err != nil {
		result.Message = fmt.Sprintf("Failed to count mapped products: %v", err)
		buf.Error(result.Message, nil)
		return result
	}
	result.Total = total

	targets, err := s.window(offset)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to query mapped products: %v", err)
		buf.Error(result.Message, nil)
		return result
	}

	if len(targets) == 0 {
		if err := s.sessions.Release("stock"); err != nil {
			s.logger.Error("Failed to release stock session: %v", err)
		}
		result.Success = true
		result.Completed = true
		result.Message = fmt.Sprintf("Stock sync complete: %d mapped products", total)
		buf.Info(result.Message, nil)
		return result
	}

	i := 0
	for ; i < len(targets); i++ {
		if i > 0 && time.Until(deadline) < yieldMargin {
			buf.Warn("Time budget reached, suspending batch", map[string]interface{}{"next_offset": offset + i})
			break
		}
		s.processItem(ctx, targets[i], result, buf)
		result.Processed++
	}

	result.Success = true
	result.NextOffset = offset + i
	result.Message = fmt.Sprintf("Processed %d of %d mapped products", result.NextOffset, total)
	buf.Info("Batch finished", map[string]interface{}{
		"next_offset": result.NextOffset,
		"updated":     result.Updated,
		"failed":      result.Failed,
	})
	return result
}

func (s *Stock) mappedQuery() *gorm.DB {
	return s.db.Table("products").
		Joins("JOIN tags pid ON pid.entity_kind = ? AND pid.entity_id = products.id AND pid.name = ?",
			models.EntityKindProduct, models.TagPOSProductID).
		Joins("JOIN tags vid ON vid.entity_kind = ? AND vid.entity_id = products.id AND vid.name = ?",
			models.EntityKindProduct, models.TagPOSVariationID)
}

// countMapped counts products carrying both POS id tags. Kept separate from
// the window query so pagination math stays correct.
func (s *Stock) countMapped() (int, error) {
	var count int64
	err := s.mappedQuery().Count(&count).Error
	return int(count), err
}

func (s *Stock) window(offset int) ([]stockTarget, error) {
	var targets []stockTarget
	err := s.mappedQuery().
		Select("products.id AS id, pid.value AS pos_product_id, vid.value AS pos_variation_id").
		Order("products.id ASC").
		Limit(s.batchSize).
		Offset(offset).
		Scan(&targets).Error
	return targets, err
}

func (s *Stock) processItem(ctx context.Context, target stockTarget, result *StockResult, buf *LogBuffer) {
	productID, err := strconv.ParseInt(target.POSProductID, 10, 64)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("product %s: invalid POS product id %q", target.ID, target.POSProductID))
		return
	}
	variationID, err := strconv.ParseInt(target.POSVariationID, 10, 64)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("product %s: invalid POS variation id %q", target.ID, target.POSVariationID))
		return
	}

	quantity, err := s.client.FetchStock(ctx, productID, variationID)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("product %s: %v", target.ID, err))
		buf.Error("Failed to fetch stock", map[string]interface{}{"product": target.ID, "error": err.Error()})
		return
	}

	status := models.StockStatusOutOfStock
	if quantity > 0 {
		status = models.StockStatusInStock
	}
	err = s.db.Model(&models.Product{}).Where("id = ?", target.ID).
		Updates(map[string]interface{}{"stock_quantity": quantity, "stock_status": status}).Error
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("product %s: %v", target.ID, err))
		return
	}
	result.Updated++
	buf.Info("Updated stock", map[string]interface{}{"product": target.ID, "quantity": quantity, "status": status})
}
