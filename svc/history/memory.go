package history

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/accessgate/pkg/subsync"
)

// MemoryStore is a Store for development without Postgres. It keeps at most
// capacity changes per user.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	byUser   map[string][]subsync.Change
	seen     map[string]struct{}
}

func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity: clampLimit(capacity),
		byUser:   make(map[string][]subsync.Change),
		seen:     make(map[string]struct{}),
	}
}

func (s *MemoryStore) Append(_ context.Context, c subsync.Change) error {
	if err := validate(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[c.ID]; ok {
		return nil
	}
	s.seen[c.ID] = struct{}{}

	list := append(s.byUser[c.UserID], c)
	if len(list) > s.capacity {
		for _, old := range list[:len(list)-s.capacity] {
			delete(s.seen, old.ID)
		}
		list = slices.Clone(list[len(list)-s.capacity:])
	}
	s.byUser[c.UserID] = list
	return nil
}

// List returns a copy of the user's changes, newest first.
func (s *MemoryStore) List(_ context.Context, userID string, limit int) ([]subsync.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := slices.Clone(s.byUser[userID])
	slices.Reverse(list)
	if n := clampLimit(limit); len(list) > n {
		list = list[:n]
	}
	return list, nil
}
