package models

import "time"

// CacheEntry backs the TTL key-value store used for cached remote pages,
// session tokens and per-session log buffers.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey"`
	Value     []byte    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index"`
}
