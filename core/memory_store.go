package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]VerificationRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]VerificationRequest),
	}
}

func (s *MemoryStore) Save(_ context.Context, r VerificationRequest, _ time.Duration) error {
	r.Code = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Recipient] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, recipient string) (*VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[recipient]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Delete(_ context.Context, recipient string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.data[recipient]; ok && r.ID == id {
		delete(s.data, recipient)
	}
	return nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, recipient string, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[recipient]
	if !ok || r.ID != id {
		return 0, ErrNotFound
	}
	if r.AttemptsRemaining > 0 {
		r.AttemptsRemaining--
	}
	s.data[recipient] = r
	return r.AttemptsRemaining, nil
}

func (s *MemoryStore) MarkConsumed(_ context.Context, recipient string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[recipient]
	if !ok || r.ID != id {
		return ErrNotFound
	}
	if r.Consumed {
		return ErrAlreadyConsumed
	}
	r.Consumed = true
	s.data[recipient] = r
	return nil
}

func (s *MemoryStore) PurgeExpired(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.data {
		if r.ExpiresAt.Before(before) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
