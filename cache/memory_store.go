package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store using ttlcache. It is meant for development
// and tests; values live only as long as the process.
type MemoryStore struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStore creates a new in-memory store with automatic expiry cleanup.
func NewMemoryStore() *MemoryStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, []byte](ttlcache.NoTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	go c.Start()

	return &MemoryStore{cache: c}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item := s.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrNotFound
	}

	value := item.Value()
	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

// Put implements Store.Put.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.cache.Set(key, stored, ttl)

	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)

	return nil
}

// Ping implements Store.Ping.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cache.Stop()

	return nil
}
