// Package cache implements the two-tier response cache: a process-local
// entry with a short TTL backed by an optional Redis store with a longer
// one. Expired entries are kept around so callers can serve stale data when
// a refresh fails.
package cache

import (
	"sync"
	"time"
)

// Entry is the envelope stored in both tiers.
type Entry[T any] struct {
	Data T         `json:"data"`
	Time time.Time `json:"time"`
}

// Memory holds at most one entry and is safe for concurrent use. The clock
// is injectable so TTL expiry can be tested without waiting.
type Memory[T any] struct {
	mu    sync.RWMutex
	entry *Entry[T]
	ttl   time.Duration
	now   func() time.Time
}

func NewMemory[T any](ttl time.Duration) *Memory[T] {
	return &Memory[T]{ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (m *Memory[T]) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Fresh returns the entry when it exists and its TTL has not elapsed.
func (m *Memory[T]) Fresh() (Entry[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		var zero Entry[T]
		return zero, false
	}
	if m.now().Sub(m.entry.Time) >= m.ttl {
		var zero Entry[T]
		return zero, false
	}
	return *m.entry, true
}

// Last returns the entry regardless of age. Used for stale-serve fallback.
func (m *Memory[T]) Last() (Entry[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		var zero Entry[T]
		return zero, false
	}
	return *m.entry, true
}

// Set overwrites the entry wholesale with the current time.
func (m *Memory[T]) Set(data T) {
	m.mu.Lock()
	m.entry = &Entry[T]{Data: data, Time: m.now().UTC()}
	m.mu.Unlock()
}

// Promote stores an entry fetched from the outer tier, keeping its original
// timestamp.
func (m *Memory[T]) Promote(entry Entry[T]) {
	m.mu.Lock()
	m.entry = &entry
	m.mu.Unlock()
}

// Invalidate drops the entry entirely.
func (m *Memory[T]) Invalidate() {
	m.mu.Lock()
	m.entry = nil
	m.mu.Unlock()
}
