package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryLimiter counts requests per key in process. Each counter lives
// exactly one window and is evicted when the window ends.
type MemoryLimiter struct {
	cfg     Config
	mu      sync.Mutex
	windows *ttlcache.Cache[string, int]
}

// NewMemoryLimiter creates a limiter and starts its eviction loop. Call Close
// to stop it.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg.ApplyDefaults()

	windows := ttlcache.New(
		ttlcache.WithTTL[string, int](cfg.Window),
		ttlcache.WithDisableTouchOnHit[string, int](),
	)
	go windows.Start()

	return &MemoryLimiter{cfg: cfg, windows: windows}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.windows.Get(key)
	if item == nil || item.IsExpired() {
		l.windows.Set(key, 1, ttlcache.DefaultTTL)
		return true, nil
	}

	count := item.Value() + 1
	// Re-set with the remaining lifetime so the window does not slide.
	l.windows.Set(key, count, timeUntil(item))

	return count <= l.cfg.Max, nil
}

// Len returns the number of keys with an open window.
func (l *MemoryLimiter) Len() int {
	return l.windows.Len()
}

// Close stops the eviction loop.
func (l *MemoryLimiter) Close() error {
	l.windows.Stop()

	return nil
}

func timeUntil(item *ttlcache.Item[string, int]) time.Duration {
	remaining := time.Until(item.ExpiresAt())
	if remaining <= 0 {
		// ttlcache treats 0 as "use the default"; keep the entry just long
		// enough for the eviction loop to drop it.
		return time.Millisecond
	}

	return remaining
}
