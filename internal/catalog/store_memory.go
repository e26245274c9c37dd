package catalog

import (
	"context"
	"sync"
)

// MemoryStore keeps entities in memory and is safe for concurrent use.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Entity
}

// NewMemoryStore constructs a MemoryStore seeded with entities.
func NewMemoryStore(seed ...Entity) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]Entity, len(seed))}
	for _, e := range seed {
		s.byID[e.ID] = e
	}
	return s
}

// Get returns the entity with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return Entity{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return Entity{}, ErrNotFound
	}
	e.Categories = append([]string(nil), e.Categories...)
	return e, nil
}

// Upsert inserts or replaces an entity.
func (s *MemoryStore) Upsert(ctx context.Context, e Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Categories = append([]string(nil), e.Categories...)
	s.byID[e.ID] = e
	return nil
}
