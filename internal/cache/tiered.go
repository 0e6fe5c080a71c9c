package cache

import (
	"context"
	"time"

	"whaleflow/logger"
)

// Tiered glues the memory tier to the optional Redis tier under one key.
// The memory tier is authoritative for the lifetime of the process; Redis
// only seeds it after a cold start.
type Tiered[T any] struct {
	mem      *Memory[T]
	store    *RedisStore
	name     string
	storeTTL time.Duration
	log      *logger.Log
}

func NewTiered[T any](name string, memTTL, storeTTL time.Duration, store *RedisStore) *Tiered[T] {
	return &Tiered[T]{
		mem:      NewMemory[T](memTTL),
		store:    store,
		name:     name,
		storeTTL: storeTTL,
		log:      logger.GetLogger(),
	}
}

// Memory exposes the inner tier. Tests use it to control the clock.
func (t *Tiered[T]) Memory() *Memory[T] {
	return t.mem
}

// Lookup returns a fresh entry from memory, falling back to the Redis tier.
// A Redis hit is promoted into memory with its original timestamp.
func (t *Tiered[T]) Lookup(ctx context.Context) (Entry[T], bool) {
	if entry, ok := t.mem.Fresh(); ok {
		return entry, true
	}
	var entry Entry[T]
	if t.store.GetJSON(ctx, t.name, &entry) {
		t.mem.Promote(entry)
		return entry, true
	}
	var zero Entry[T]
	return zero, false
}

// Stale returns whatever the memory tier still holds, fresh or not.
func (t *Tiered[T]) Stale() (Entry[T], bool) {
	return t.mem.Last()
}

// Store overwrites both tiers. The Redis write is fire-and-forget: it runs
// on its own goroutine with its own deadline so a slow store never delays
// the response path.
func (t *Tiered[T]) Store(data T) {
	t.mem.Set(data)
	if t.store == nil {
		return
	}
	entry, _ := t.mem.Last()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.store.SetJSON(ctx, t.name, entry, t.storeTTL); err != nil {
			t.log.WithComponent("tiered_cache").WithFields(logger.Fields{
				"cache": t.name,
			}).WithError(err).Warn("background cache write failed")
		}
	}()
}
