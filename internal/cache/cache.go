// Package cache is a TTL key-value store on top of the local database. It
// holds cached remote catalog pages, sweep session tokens and per-session
// log buffers, so state survives across short-lived invocations.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"poslink/internal/models"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Set stores a JSON-encoded value under key for ttl.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	return s.SetBytes(key, data, ttl)
}

func (s *Store) SetBytes(key string, data []byte, ttl time.Duration) error {
	entry := models.CacheEntry{
		Key:       key,
		Value:     data,
		ExpiresAt: time.Now().Add(ttl),
	}

	err := s.db.Where("key = ?", key).First(&models.CacheEntry{}).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&entry).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&models.CacheEntry{}).Where("key = ?", key).
		Updates(map[string]interface{}{"value": entry.Value, "expires_at": entry.ExpiresAt}).Error
}

// Get decodes the value stored under key into out. Expired entries are
// deleted and reported as a miss.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	data, ok, err := s.GetBytes(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode cache value: %w", err)
	}
	return true, nil
}

func (s *Store) GetBytes(key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().After(entry.ExpiresAt) {
		s.db.Where("key = ?", key).Delete(&models.CacheEntry{})
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (s *Store) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&models.CacheEntry{}).Error
}

// DeletePrefix removes every entry whose key starts with prefix.
func (s *Store) DeletePrefix(prefix string) error {
	return s.db.Where("key LIKE ?", prefix+"%").Delete(&models.CacheEntry{}).Error
}
