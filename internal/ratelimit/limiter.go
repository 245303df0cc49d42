// Package ratelimit provides fixed-window request limiters.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultWindow = 15 * time.Minute
	DefaultMax    = 100
)

// Limiter decides whether one more request for key fits the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config describes a fixed window.
type Config struct {
	Window time.Duration
	Max    int
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Max <= 0 {
		c.Max = DefaultMax
	}
}
