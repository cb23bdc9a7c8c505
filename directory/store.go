package directory

import (
	"context"
	"sync"
)

type Store interface {
	// Create assigns ID and returns the stored school.
	Create(ctx context.Context, s School) (School, error)
	// List returns every school ordered by name.
	List(ctx context.Context) ([]School, error)
	Close() error
}

type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	schools []School
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, school School) (School, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	school.ID = s.nextID
	s.schools = append(s.schools, school)
	return school, nil
}

func (s *MemoryStore) List(_ context.Context) ([]School, error) {
	s.mu.RLock()
	out := make([]School, len(s.schools))
	copy(out, s.schools)
	s.mu.RUnlock()
	sortByName(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
