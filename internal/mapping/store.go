// Package mapping holds the persistent external-id -> local-id table, one
// namespace per entity kind. Synchronizers load it once per invocation,
// resolve and record entries in memory, and flush dirty entries back before
// returning, so lookups survive process restarts.
package mapping

import (
	"fmt"
	"sync"

	"poslink/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KindCategory = "category"
	KindProduct  = "product"
)

type Store interface {
	// Load hydrates the in-memory table from persistent storage.
	Load() error
	// Resolve returns the local id mapped to remoteID, with ok=false when
	// no entry exists.
	Resolve(kind, remoteID string) (string, bool)
	// Put records or replaces a mapping entry.
	Put(kind, remoteID, localID string)
	// Evict drops a stale entry from memory and storage.
	Evict(kind, remoteID string) error
	// Flush persists entries recorded since the last Load or Flush.
	Flush() error
	// Reset wipes every entry of every kind.
	Reset() error
}

type dbStore struct {
	db      *gorm.DB
	mu      sync.Mutex
	entries map[string]map[string]string
	dirty   map[string]map[string]bool
	loaded  bool
}

func NewStore(db *gorm.DB) Store {
	return &dbStore{
		db:      db,
		entries: make(map[string]map[string]string),
		dirty:   make(map[string]map[string]bool),
	}
}

func (s *dbStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.Mapping
	if err := s.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	s.entries = make(map[string]map[string]string)
	s.dirty = make(map[string]map[string]bool)
	for _, row := range rows {
		if s.entries[row.EntityKind] == nil {
			s.entries[row.EntityKind] = make(map[string]string)
		}
		s.entries[row.EntityKind][row.RemoteID] = row.LocalID
	}
	s.loaded = true
	return nil
}

func (s *dbStore) Resolve(kind, remoteID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID, ok := s.entries[kind][remoteID]
	return localID, ok
}

func (s *dbStore) Put(kind, remoteID, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries[kind] == nil {
		s.entries[kind] = make(map[string]string)
	}
	if s.dirty[kind] == nil {
		s.dirty[kind] = make(map[string]bool)
	}
	s.entries[kind][remoteID] = localID
	s.dirty[kind][remoteID] = true
}

func (s *dbStore) Evict(kind, remoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries[kind], remoteID)
	delete(s.dirty[kind], remoteID)
	return s.db.Where("entity_kind = ? AND remote_id = ?", kind, remoteID).
		Delete(&models.Mapping{}).Error
}

func (s *dbStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, ids := range s.dirty {
		for remoteID := range ids {
			row := models.Mapping{
				EntityKind: kind,
				RemoteID:   remoteID,
				LocalID:    s.entries[kind][remoteID],
			}
			err := s.db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "entity_kind"}, {Name: "remote_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"local_id", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("failed to flush mapping %s/%s: %w", kind, remoteID, err)
			}
		}
	}
	s.dirty = make(map[string]map[string]bool)
	return nil
}

func (s *dbStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]map[string]string)
	s.dirty = make(map[string]map[string]bool)
	return s.db.Where("1 = 1").Delete(&models.Mapping{}).Error
}
