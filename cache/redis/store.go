package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/redis/go-redis/v9"
)

// Store implements cache.Store on Redis string keys.
type Store struct {
	client redis.UniversalClient
	prefix string // Optional prefix for keys
}

// NewStore creates a new [Store]. An empty prefix stores keys verbatim.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// NewClient parses a redis:// URL and returns a connected client.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func (s *Store) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}

	return s.prefix + ":" + key
}

// Get implements cache.Store.Get.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %q from redis: %w", key, err)
	}

	return value, nil
}

// Put implements cache.Store.Put. A ttl of zero keeps the key forever.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, s.redisKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %q in redis: %w", key, err)
	}

	return nil
}

// Delete implements cache.Store.Delete.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q from redis: %w", key, err)
	}

	return nil
}

// Ping implements cache.Store.Ping.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
