package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"poslink/internal/cache"
)

// SweepLock is a TTL'd advisory lock preventing two overlapping invocations
// of the same synchronizer kind. The TTL keeps a crashed invocation from
// wedging the sweep forever.
type SweepLock struct {
	cache *cache.Store
	ttl   time.Duration
}

func NewSweepLock(cacheStore *cache.Store, ttl time.Duration) *SweepLock {
	return &SweepLock{cache: cacheStore, ttl: ttl}
}

func lockKey(kind string) string {
	return fmt.Sprintf("sync:lock:%s", kind)
}

// Acquire takes the lock for kind, returning false when another invocation
// holds it.
func (l *SweepLock) Acquire(kind string) (bool, error) {
	var holder string
	held, err := l.cache.Get(lockKey(kind), &holder)
	if err != nil {
		return false, err
	}
	if held {
		return false, nil
	}
	if err := l.cache.Set(lockKey(kind), uuid.New().String(), l.ttl); err != nil {
		return false, err
	}
	return true, nil
}

func (l *SweepLock) Release(kind string) error {
	return l.cache.Delete(lockKey(kind))
}
