package store

import (
	"context"
	"sync"
	"time"

	"paywall-entitlement/internal/apperr"
	"paywall-entitlement/internal/model"
)

type memoryEntry struct {
	rec       model.Record
	expiresAt time.Time
}

// MemoryStore keeps records in process memory. Useful for development and tests;
// records do not survive a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*model.Record, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(entry.expiresAt) {
		return nil, nil
	}
	rec := entry.rec
	return &rec, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, rec *model.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return apperr.InvalidRequest("store.memory.set", "invalid_ttl")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{rec: *rec, expiresAt: s.now().Add(ttl)}
	return nil
}

// Len counts stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
