// ABOUTME: Cache contract for raw datastore documents
// ABOUTME: Shared configuration and the cache-miss sentinel

package datastore

import (
	"context"
	"errors"
	"time"
)

// Cache stores raw document bytes by key
type Cache interface {
	// Get retrieves a value, returning ErrCacheMiss when absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL; zero uses the configured default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Clear removes every value
	Clear(ctx context.Context) error

	Close() error
}

// CacheConfig holds configuration shared by cache backends
type CacheConfig struct {
	// DefaultTTL is the time-to-live of cached documents; negative disables expiry
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL: 5 * time.Minute,
		Prefix:     "metadata-service:",
	}
}

// ErrCacheMiss is returned when a key is not cached
var ErrCacheMiss = errors.New("datastore: cache miss")
