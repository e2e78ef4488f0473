package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag is a durable key-value annotation on a local entity. It is the
// out-of-band reconciliation key for stale mappings (products and categories
// carry their POS ids as tags), the dedup index for ingested media (source
// URL), and the idempotency flag for order inventory sync.
type Tag struct {
	ID         string `gorm:"type:uuid;primary_key"`
	EntityKind string `gorm:"uniqueIndex:idx_tags_entity,priority:1;index:idx_tags_lookup,priority:1;not null"`
	EntityID   string `gorm:"uniqueIndex:idx_tags_entity,priority:2;not null"`
	Name       string `gorm:"uniqueIndex:idx_tags_entity,priority:3;index:idx_tags_lookup,priority:2;not null"`
	Value      string `gorm:"index:idx_tags_lookup,priority:3"`
}

const (
	EntityKindCategory   = "category"
	EntityKindProduct    = "product"
	EntityKindOrder      = "order"
	EntityKindAttachment = "attachment"
)

const (
	TagPOSCategoryID      = "pos_category_id"
	TagPOSProductID       = "pos_product_id"
	TagPOSVariationID     = "pos_variation_id"
	TagSourceURL          = "source_url"
	TagInventorySynced    = "inventory_synced"
	TagInventorySyncedAt  = "inventory_synced_at"
	TagInventorySyncItems = "inventory_sync_items"
)

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// SetTag upserts a tag value on an entity.
func SetTag(db *gorm.DB, kind, entityID, name, value string) error {
	var tag Tag
	err := db.Where("entity_kind = ? AND entity_id = ? AND name = ?", kind, entityID, name).First(&tag).Error
	if err == gorm.ErrRecordNotFound {
		return db.Create(&Tag{EntityKind: kind, EntityID: entityID, Name: name, Value: value}).Error
	}
	if err != nil {
		return err
	}
	return db.Model(&tag).Update("value", value).Error
}

// GetTag returns the tag value for an entity, with ok=false when unset.
func GetTag(db *gorm.DB, kind, entityID, name string) (string, bool, error) {
	var tag Tag
	err := db.Where("entity_kind = ? AND entity_id = ? AND name = ?", kind, entityID, name).First(&tag).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tag.Value, true, nil
}

// FindEntityByTag returns the id of the entity of the given kind carrying
// name=value, with ok=false when no such entity exists.
func FindEntityByTag(db *gorm.DB, kind, name, value string) (string, bool, error) {
	var tag Tag
	err := db.Where("entity_kind = ? AND name = ? AND value = ?", kind, name, value).First(&tag).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tag.EntityID, true, nil
}
