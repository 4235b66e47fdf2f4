// Package cache provides the shared key-value cache abstraction.
//
// Backends:
//   - memory (in-process, development/testing, default)
//   - redis (distributed, production)
//
// Process-wide caches (principal cache, CSRF material) sit on top of Client.
package cache

import (
	"context"
	"time"
)

// Client defines the cache operations.
type Client interface {
	// Get returns a value. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with an optional TTL. A ttl of 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Ping verifies the backend connection.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error

	// Stats returns cache statistics.
	Stats(ctx context.Context) (Stats, error)
}

// Stats holds cache statistics.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

// Config selects and configures a cache backend.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prefix applied to every key
}

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound reports whether the error means the key was absent.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New creates a cache client for the configured driver.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
