package sync

import (
	"fmt"
	"runtime"
	"time"

	"poslink/internal/cache"
)

// logCap bounds the per-session log buffer; older entries roll off.
const logCap = 500

// LogEntry is one line of a sweep's progress log. Seq is monotonically
// increasing within a session so a polling caller can ask for "entries
// after N" instead of guessing which entries it already rendered.
type LogEntry struct {
	Seq       int                    `json:"seq"`
	Timestamp time.Time              `json:"timestamp"`
	Elapsed   float64                `json:"elapsed"`
	Memory    uint64                 `json:"memory"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// LogBuffer accumulates a sweep's log across invocations. Entries persist in
// the cache store under the session id, sharing the session's lifetime.
type LogBuffer struct {
	cache     *cache.Store
	sessionID string
	start     time.Time
	ttl       time.Duration
	entries   []LogEntry
}

func logKey(sessionID string) string {
	return fmt.Sprintf("sync:logs:%s", sessionID)
}

// NewLogBuffer opens the buffer for a session, loading any entries written
// by earlier invocations of the same sweep.
func NewLogBuffer(cacheStore *cache.Store, sessionID string, ttl time.Duration) (*LogBuffer, error) {
	b := &LogBuffer{
		cache:     cacheStore,
		sessionID: sessionID,
		start:     time.Now(),
		ttl:       ttl,
	}
	if _, err := cacheStore.Get(logKey(sessionID), &b.entries); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *LogBuffer) Log(level, message string, data map[string]interface{}) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	seq := 1
	if n := len(b.entries); n > 0 {
		seq = b.entries[n-1].Seq + 1
	}
	b.entries = append(b.entries, LogEntry{
		Seq:       seq,
		Timestamp: time.Now(),
		Elapsed:   time.Since(b.start).Seconds(),
		Memory:    mem.HeapAlloc,
		Level:     level,
		Message:   message,
		Data:      data,
	})
	if len(b.entries) > logCap {
		b.entries = b.entries[len(b.entries)-logCap:]
	}
}

func (b *LogBuffer) Info(message string, data map[string]interface{})  { b.Log("info", message, data) }
func (b *LogBuffer) Warn(message string, data map[string]interface{})  { b.Log("warning", message, data) }
func (b *LogBuffer) Error(message string, data map[string]interface{}) { b.Log("error", message, data) }

// Entries returns the full buffered log, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	return b.entries
}

// Since returns entries with Seq > seq.
func (b *LogBuffer) Since(seq int) []LogEntry {
	for i, e := range b.entries {
		if e.Seq > seq {
			return b.entries[i:]
		}
	}
	return nil
}

// Flush persists the buffer for the next invocation of this sweep.
func (b *LogBuffer) Flush() error {
	return b.cache.Set(logKey(b.sessionID), b.entries, b.ttl)
}

// LogsFor reads the persisted buffer of an arbitrary session, for the
// operator log endpoint.
func LogsFor(cacheStore *cache.Store, sessionID string, sinceSeq int) ([]LogEntry, error) {
	var entries []LogEntry
	if _, err := cacheStore.Get(logKey(sessionID), &entries); err != nil {
		return nil, err
	}
	if sinceSeq > 0 {
		for i, e := range entries {
			if e.Seq > sinceSeq {
				return entries[i:], nil
			}
		}
		return nil, nil
	}
	return entries, nil
}
