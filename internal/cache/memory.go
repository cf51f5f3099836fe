package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. Default backend when no Redis is
// configured, and the test double everywhere.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	now  func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryItem), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !item.expiresAt.IsZero() && item.expiresAt.Before(s.now()) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return nil, ErrMiss
	}
	out := make([]byte, len(item.data))
	copy(out, item.data)
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	item := memoryItem{data: make([]byte, len(data))}
	copy(item.data, data)
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = item
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ Store = (*MemoryStore)(nil)
