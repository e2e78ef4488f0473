package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"poslink/internal/cache"
	"poslink/internal/logger"
	"poslink/internal/mapping"
	"poslink/internal/media"
	"poslink/internal/models"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

// skipReasonVariable is the operator-facing skip reason for multi-variation
// products, which this integration does not support yet.
const skipReasonVariable = "Producto variable (pendiente)"

// yieldMargin is how close to the invocation time budget the batch loop is
// allowed to get before suspending.
const yieldMargin = 5 * time.Second

// Products is the resumable product sweep. Each invocation processes one
// bounded batch starting at the caller's offset and reports the offset to
// resume from; the caller loops until Completed.
type Products struct {
	client   *catalog.Client
	db       *gorm.DB
	mappings mapping.Store
	media    *media.Ingestor
	sessions *SessionManager
	lock     *SweepLock
	cache    *cache.Store
	logger   *logger.Logger

	batchSize  int
	timeBudget time.Duration
	sessionTTL time.Duration
}

func NewProducts(client *catalog.Client, db *gorm.DB, mappings mapping.Store,
	ingestor *media.Ingestor, sessions *SessionManager, lock *SweepLock,
	cacheStore *cache.Store, log *logger.Logger,
	batchSize int, timeBudget, sessionTTL time.Duration) *Products {
	return &Products{
		client:     client,
		db:         db,
		mappings:   mappings,
		media:      ingestor,
		sessions:   sessions,
		lock:       lock,
		cache:      cacheStore,
		logger:     log,
		batchSize:  batchSize,
		timeBudget: timeBudget,
		sessionTTL: sessionTTL,
	}
}

type ProductResult struct {
	Success    bool       `json:"success"`
	Completed  bool       `json:"completed"`
	Total      int        `json:"total"`
	Active     int        `json:"active"`
	Processed  int        `json:"processed"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Errors     []string   `json:"errors"`
	NextOffset int        `json:"next_offset"`
	SessionID  string     `json:"session_id"`
	Logs       []LogEntry `json:"logs"`
	Message    string     `json:"message"`
}

// SyncAll runs one batch of the product sweep starting at offset.
func (s *Products) SyncAll(ctx context.Context, offset int) *ProductResult {
	start := time.Now()
	deadline := start.Add(s.timeBudget)
	result := &ProductResult{Errors: []string{}, NextOffset: offset}

	acquired, err := s.lock.Acquire("products")
	if err != nil {
		result.Message = fmt.Sprintf("Failed to acquire sweep lock: %v", err)
		return result
	}
	if !acquired {
		result.Message = "A product sync is already in progress, retry shortly"
		return result
	}
	defer s.lock.Release("products")

	sess, err := s.sessions.Current("products")
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

	buf.Info("Starting product batch", map[string]interface{}{"offset": offset})

	active, total, err := s.activeProducts(ctx, sess.ID, buf)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to fetch products: %v", err)
		buf.Error(result.Message, nil)
		return result
	}
	result.Total = total
	result.Active = len(active)

	if offset >= len(active) {
		// Sweep done; keep answering completed for late callers.
		if err := s.sessions.Release("products"); err != nil {
			s.logger.Error("Failed to release product session: %v", err)
		}
		result.Success = true
		result.Completed = true
		result.Message = fmt.Sprintf("Product sync complete: %d active products", len(active))
		buf.Info(result.Message, nil)
		return result
	}

	if err := s.mappings.Load(); err != nil {
		result.Message = fmt.Sprintf("Failed to load mappings: %v", err)
		buf.Error(result.Message, nil)
		return result
	}

	end := offset + s.batchSize
	if end > len(active) {
		end = len(active)
	}

	i := offset
	for ; i < end; i++ {
		// Cooperative yield: always make progress on at least one item,
		// then stop once the remaining budget is inside the margin.
		if i > offset && time.Until(deadline) < yieldMargin {
			buf.Warn("Time budget reached, suspending batch", map[string]interface{}{"next_offset": i})
			break
		}
		s.processItem(ctx, active[i], result, buf)
		result.Processed++
	}

	if err := s.mappings.Flush(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to persist mappings: %v", err))
	}

	result.Success = true
	result.NextOffset = i
	result.Message = fmt.Sprintf("Processed %d of %d active products", i, len(active))
	buf.Info("Batch finished", map[string]interface{}{
		"next_offset": i,
		"created":     result.Created,
		"updated":     result.Updated,
		"skipped":     result.Skipped,
	})
	return result
}

// activeProducts returns the ACTIVE remote products, re-indexed
// contiguously. The full remote list is cached per session so one sweep
// downloads the catalog once no matter how many batches it takes.
func (s *Products) activeProducts(ctx context.Context, sessionID string, buf *LogBuffer) ([]catalog.RemoteProduct, int, error) {
	key := fmt.Sprintf("sync:products:catalog:%s", sessionID)

	var all []catalog.RemoteProduct
	hit, err := s.cache.Get(key, &all)
	if err != nil {
		return nil, 0, err
	}
	if !hit {
		resp, err := s.client.FetchAllProducts(ctx)
		if err != nil {
			return nil, 0, err
		}
		all = resp.Products
		if resp.Truncated {
			buf.Warn("Remote catalog truncated at the page cap", map[string]interface{}{"fetched": len(all)})
		}
		buf.Info("Fetched remote catalog", map[string]interface{}{"total": len(all), "cached": resp.Cached})
		if err := s.cache.Set(key, all, s.sessionTTL); err != nil {
			s.logger.Error("Failed to cache session catalog: %v", err)
		}
	}

	active := make([]catalog.RemoteProduct, 0, len(all))
	for _, p := range all {
		if p.Status == catalog.StatusActive {
			active = append(active, p)
		}
	}
	return active, len(all), nil
}

func (s *Products) processItem(ctx context.Context, item catalog.RemoteProduct, result *ProductResult, buf *LogBuffer) {
	switch {
	case len(item.Variations) == 0:
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Product %q: no variations", item.Name))
		buf.Warn("Skipped product", map[string]interface{}{"product": item.Name, "reason": "no variations"})
		return
	case len(item.Variations) > 1:
		// Variable products are out of policy, not an error.
		result.Skipped++
		buf.Info("Skipped product", map[string]interface{}{"product": item.Name, "type": "skipped", "reason": skipReasonVariable})
		return
	}

	variation := item.Variations[0]
	if variation.SKU == "" {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Product %q: no SKU", item.Name))
		buf.Warn("Skipped product", map[string]interface{}{"product": item.Name, "reason": "no SKU"})
		return
	}

	categoryIDs := s.resolveCategories(item.Categories)
	imageID, galleryIDs := s.ingestImages(ctx, item.Images, buf)

	var existing models.Product
	err := s.db.First(&existing, "sku = ?", variation.SKU).Error
	switch {
	case err == nil:
		existing.Name = item.Name
		existing.Description = item.Description
		existing.Price = variation.Price
		existing.Weight = variation.Weight
		existing.Length = variation.Length
		existing.Width = variation.Width
		existing.Height = variation.Height
		existing.RequiresShipping = item.RequiresShipping
		existing.Brand = item.Brand
		existing.Provider = item.Provider
		existing.CategoryIDs = categoryIDs
		if imageID != nil {
			existing.ImageID = imageID
			existing.GalleryIDs = galleryIDs
		}
		if err := s.db.Save(&existing).Error; err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Product %q: %v", item.Name, err))
			buf.Error("Failed to update product", map[string]interface{}{"product": item.Name, "error": err.Error()})
			return
		}
		s.recordProduct(existing.ID, item.ID, variation.ID)
		result.Updated++
		buf.Info("Updated product", map[string]interface{}{"product": item.Name, "sku": variation.SKU})

	case err == gorm.ErrRecordNotFound:
		product := models.Product{
			SKU:              variation.SKU,
			Name:             item.Name,
			Description:      item.Description,
			Price:            variation.Price,
			Weight:           variation.Weight,
			Length:           variation.Length,
			Width:            variation.Width,
			Height:           variation.Height,
			RequiresShipping: item.RequiresShipping,
			Brand:            item.Brand,
			Provider:         item.Provider,
			CategoryIDs:      categoryIDs,
			ImageID:          imageID,
			GalleryIDs:       galleryIDs,
		}
		if err := s.db.Create(&product).Error; err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Product %q: %v", item.Name, err))
			buf.Error("Failed to create product", map[string]interface{}{"product": item.Name, "error": err.Error()})
			return
		}
		s.recordProduct(product.ID, item.ID, variation.ID)
		result.Created++
		buf.Info("Created product", map[string]interface{}{"product": item.Name, "sku": variation.SKU})

	default:
		result.Errors = append(result.Errors, fmt.Sprintf("Product %q: %v", item.Name, err))
		buf.Error("Failed to look up product", map[string]interface{}{"product": item.Name, "error": err.Error()})
	}
}

// resolveCategories maps remote category ids through the mapping store.
// Unresolved categories are omitted, not an error.
func (s *Products) resolveCategories(remoteIDs []int64) []string {
	var localIDs []string
	for _, id := range remoteIDs {
		if localID, ok := s.mappings.Resolve(mapping.KindCategory, strconv.FormatInt(id, 10)); ok {
			localIDs = append(localIDs, localID)
		}
	}
	return localIDs
}

// ingestImages downloads the product's images with URL dedup. Failures are
// soft: the failed image is logged and the rest proceed. The first ingested
// image is the primary, the remainder become the gallery.
func (s *Products) ingestImages(ctx context.Context, urls []string, buf *LogBuffer) (*string, string) {
	var ids []string
	for _, url := range urls {
		id, err := s.media.Ingest(ctx, url)
		if err != nil {
			buf.Warn("Failed to ingest image", map[string]interface{}{"url": url, "error": err.Error()})
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ""
	}
	return &ids[0], strings.Join(ids[1:], ",")
}

// recordProduct persists the POS ids both in the mapping store and as
// durable tags on the product, the tags being the reconciliation key when a
// mapping goes stale.
func (s *Products) recordProduct(localID string, remoteProductID, remoteVariationID int64) {
	remoteID := strconv.FormatInt(remoteProductID, 10)
	s.mappings.Put(mapping.KindProduct, remoteID, localID)
	if err := models.SetTag(s.db, models.EntityKindProduct, localID, models.TagPOSProductID, remoteID); err != nil {
		s.logger.Error("Failed to tag product %s: %v", localID, err)
	}
	if err := models.SetTag(s.db, models.EntityKindProduct, localID, models.TagPOSVariationID, strconv.FormatInt(remoteVariationID, 10)); err != nil {
		s.logger.Error("Failed to tag product %s: %v", localID, err)
	}
}
