package subscription

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of a cached Record.
type Snapshot struct {
	Record    Record
	Known     bool // false until the first successful fetch
	UpdatedAt time.Time
}

// Cache holds the session's copy of the subscription record.
// It has a single writer (the session's syncer) and any number of readers;
// readers always observe a complete snapshot because writes swap a pointer.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache returns a cache holding an unknown free record.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(&Snapshot{Record: Free()})
	return c
}

// Load returns the current snapshot.
func (c *Cache) Load() Snapshot {
	return *c.current.Load()
}

// Store replaces the cached record.
func (c *Cache) Store(rec Record, at time.Time) {
	c.current.Store(&Snapshot{Record: rec, Known: true, UpdatedAt: at})
}
