package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"poslink/internal/cache"
)

// Session correlates the many short-lived invocations of one sweep. The
// token lives in the cache store with a TTL: an idle sweep expires and the
// next invocation starts a fresh one.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionManager struct {
	cache *cache.Store
	ttl   time.Duration
}

func NewSessionManager(cacheStore *cache.Store, ttl time.Duration) *SessionManager {
	return &SessionManager{cache: cacheStore, ttl: ttl}
}

func sessionKey(name string) string {
	return fmt.Sprintf("sync:session:%s", name)
}

// Current returns the live session for the named sweep, creating one when
// none exists, and refreshes its TTL.
func (m *SessionManager) Current(name string) (*Session, error) {
	var sess Session
	hit, err := m.cache.Get(sessionKey(name), &sess)
	if err != nil {
		return nil, err
	}
	if !hit {
		sess = Session{ID: uuid.New().String(), CreatedAt: time.Now()}
	}
	if err := m.cache.Set(sessionKey(name), sess, m.ttl); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Release deletes the sweep's session token. Called when a sweep completes.
func (m *SessionManager) Release(name string) error {
	return m.cache.Delete(sessionKey(name))
}
