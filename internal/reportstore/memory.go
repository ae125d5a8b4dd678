package reportstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/assessment-results-server/internal/domain"
)

// MemoryStore keeps entries in an expiring LRU shared by all sessions.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewMemoryStore creates an in-process store holding at most maxEntries entries for ttl each.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func memoryKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

// Get returns a copy of the stored payload.
func (s *MemoryStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if err := validateKey(sessionID, key); err != nil {
		return nil, err
	}
	v, ok := s.cache.Get(memoryKey(sessionID, key))
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of payload.
func (s *MemoryStore) Set(ctx context.Context, sessionID, key string, payload []byte) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	s.cache.Add(memoryKey(sessionID, key), append([]byte(nil), payload...))
	return nil
}

// Clear removes an entry. Clearing an absent key is not an error.
func (s *MemoryStore) Clear(ctx context.Context, sessionID, key string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	s.cache.Remove(memoryKey(sessionID, key))
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close releases the cache.
func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
