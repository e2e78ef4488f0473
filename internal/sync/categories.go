package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"poslink/internal/logger"
	"poslink/internal/mapping"
	"poslink/internal/models"
	"poslink/internal/services/catalog"

	"gorm.io/gorm"
)

// Categories walks the remote category tree and upserts local categories.
// A full category sweep is cheap enough to run in one invocation, so it is
// not resumable the way product and stock sweeps are.
type Categories struct {
	client   *catalog.Client
	db       *gorm.DB
	mappings mapping.Store
	logger   *logger.Logger
}

func NewCategories(client *catalog.Client, db *gorm.DB, mappings mapping.Store, log *logger.Logger) *Categories {
	return &Categories{client: client, db: db, mappings: mappings, logger: log}
}

type CategoryResult struct {
	Success bool     `json:"success"`
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
	Message string   `json:"message"`
}

// SyncAll fetches the remote category list and upserts every entry. Roots
// are processed before children so a parent's mapping exists when a child
// references it; orderings deeper than two levels are not resolved and the
// child keeps a nil parent.
func (s *Categories) SyncAll(ctx context.Context) *CategoryResult {
	result := &CategoryResult{Errors: []string{}}

	if err := s.mappings.Load(); err != nil {
		result.Message = fmt.Sprintf("Failed to load mappings: %v", err)
		return result
	}

	resp, err := s.client.FetchCategories(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to fetch categories: %v", err)
		return result
	}
	result.Total = len(resp.Categories)

	// Parent pass, then child pass.
	for _, cat := range resp.Categories {
		if cat.ParentID == nil {
			s.upsert(cat, result)
		}
	}
	for _, cat := range resp.Categories {
		if cat.ParentID != nil {
			s.upsert(cat, result)
		}
	}

	if err := s.mappings.Flush(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to persist mappings: %v", err))
	}

	result.Success = true
	result.Message = fmt.Sprintf("Categories synced: %d created, %d updated, %d skipped",
		result.Created, result.Updated, result.Skipped)
	return result
}

func (s *Categories) upsert(cat catalog.RemoteCategory, result *CategoryResult) {
	remoteID := strconv.FormatInt(cat.ID, 10)

	var parentLocalID *string
	if cat.ParentID != nil {
		if localID, ok := s.resolveLocal(strconv.FormatInt(*cat.ParentID, 10)); ok {
			parentLocalID = &localID
		}
	}

	if localID, ok := s.resolveLocal(remoteID); ok {
		err := s.db.Model(&models.Category{}).Where("id = ?", localID).
			Updates(map[string]interface{}{"name": cat.Name, "parent_id": parentLocalID}).Error
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("category %q: %v", cat.Name, err))
			return
		}
		result.Updated++
		return
	}

	category := models.Category{Name: cat.Name, ParentID: parentLocalID}
	err := s.db.Create(&category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Name already taken locally: adopt the existing category.
		var existing models.Category
		if findErr := s.db.First(&existing, "name = ?", cat.Name).Error; findErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("category %q: %v", cat.Name, findErr))
			return
		}
		s.record(remoteID, existing.ID)
		result.Skipped++
		return
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("category %q: %v", cat.Name, err))
		return
	}

	s.record(remoteID, category.ID)
	result.Created++
}

// resolveLocal maps a remote category id to a live local id. A mapping whose
// local row no longer exists is evicted and re-resolved through the durable
// POS id tag on the category itself.
func (s *Categories) resolveLocal(remoteID string) (string, bool) {
	if localID, ok := s.mappings.Resolve(mapping.KindCategory, remoteID); ok {
		err := s.db.Select("id").First(&models.Category{}, "id = ?", localID).Error
		if err == nil {
			return localID, true
		}
		if err == gorm.ErrRecordNotFound {
			if evictErr := s.mappings.Evict(mapping.KindCategory, remoteID); evictErr != nil {
				s.logger.Error("Failed to evict stale category mapping %s: %v", remoteID, evictErr)
			}
		}
	}

	localID, found, err := models.FindEntityByTag(s.db, models.EntityKindCategory, models.TagPOSCategoryID, remoteID)
	if err != nil || !found {
		return "", false
	}
	s.mappings.Put(mapping.KindCategory, remoteID, localID)
	return localID, true
}

func (s *Categories) record(remoteID, localID string) {
	s.mappings.Put(mapping.KindCategory, remoteID, localID)
	if err := models.SetTag(s.db, models.EntityKindCategory, localID, models.TagPOSCategoryID, remoteID); err != nil {
		s.logger.Error("Failed to tag category %s: %v", localID, err)
	}
}
