package repository

import (
	"sync"

	"careerprep/internal/domain"
)

// MemoryLocalStore is a LocalStore that lives only as long as the process.
type MemoryLocalStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{data: make(map[string][]byte)}
}

func (s *MemoryLocalStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryLocalStore) Set(key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryLocalStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// scopedStore prefixes every key so several users can share one backing store.
type scopedStore struct {
	base   domain.LocalStore
	prefix string
}

// Scoped returns a view of base whose keys are namespaced by prefix.
func Scoped(base domain.LocalStore, prefix string) domain.LocalStore {
	return &scopedStore{base: base, prefix: prefix}
}

// UserScope is the key prefix for one user's local state.
func UserScope(userID string) string {
	return "user:" + userID + ":"
}

func (s *scopedStore) Get(key string) ([]byte, error) {
	return s.base.Get(s.prefix + key)
}

func (s *scopedStore) Set(key string, value []byte) error {
	return s.base.Set(s.prefix+key, value)
}

func (s *scopedStore) Delete(key string) error {
	return s.base.Delete(s.prefix + key)
}
