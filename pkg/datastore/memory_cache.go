// ABOUTME: In-process document cache
// ABOUTME: sync.Map entries with TTL expiry and a background sweeper

package datastore

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with TTL expiry
type MemoryCache struct {
	data   sync.Map
	config CacheConfig
	cancel context.CancelFunc
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryCache creates a memory cache and starts its expiry sweeper
func NewMemoryCache(config CacheConfig) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		config: config,
		cancel: cancel,
	}

	go mc.sweep(ctx)

	return mc
}

// Get implements Cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullKey := m.config.Prefix + key
	value, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrCacheMiss
	}

	item := value.(cacheItem)
	if item.expired(time.Now()) {
		m.data.Delete(fullKey)
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set implements Cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	m.data.Store(m.config.Prefix+key, item)
	return nil
}

// Delete implements Cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Clear implements Cache
func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(key, _ any) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}

// Close stops the expiry sweeper
func (m *MemoryCache) Close() error {
	m.cancel()
	return nil
}

func (m *MemoryCache) sweep(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.data.Range(func(key, value any) bool {
				if value.(cacheItem).expired(now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
