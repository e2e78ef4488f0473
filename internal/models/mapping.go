package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mapping is one persisted external-id -> local-id entry. For a given entity
// kind a remote id maps to at most one local id.
type Mapping struct {
	ID         string    `gorm:"type:uuid;primary_key"`
	EntityKind string    `gorm:"uniqueIndex:idx_mappings_kind_remote,priority:1;not null"`
	RemoteID   string    `gorm:"uniqueIndex:idx_mappings_kind_remote,priority:2;not null"`
	LocalID    string    `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (m *Mapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
