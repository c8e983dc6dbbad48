// ABOUTME: Read-through document cache in front of a Reader
// ABOUTME: Generation counters keep invalidations from being lost to in-flight reads

package datastore

import (
	"context"
	"errors"
	"sync"

	"github.com/nainya/metadata-service/internal/logger"
)

// CachedReader is a read-through cache in front of another Reader.
// Missing keys are not cached.
type CachedReader struct {
	next  Reader
	cache Cache
	rec   Recorder
	log   *logger.Logger

	mu          sync.Mutex
	epoch       uint64
	generations map[string]uint64
}

// generation identifies the invalidation state of one key
type generation struct {
	epoch uint64
	key   uint64
}

// NewCachedReader wraps next with cache
func NewCachedReader(next Reader, cache Cache, rec Recorder, log *logger.Logger) *CachedReader {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedReader{
		next:        next,
		cache:       cache,
		rec:         rec,
		log:         log,
		generations: make(map[string]uint64),
	}
}

// Read implements Reader. A value read while its key is invalidated is
// returned to the caller but not cached.
func (c *CachedReader) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := c.cache.Get(ctx, key)
	if err == nil {
		c.rec.RecordCacheLookup(true)
		return data, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// A broken cache degrades to direct reads
		c.log.Warn("cache read failed").Str("key", key).Err(err).Send()
	}
	c.rec.RecordCacheLookup(false)

	start := c.generation(key)
	data, err = c.next.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.generation(key) != start {
		return data, nil
	}

	if err := c.cache.Set(ctx, key, data, 0); err != nil {
		c.log.Warn("cache write failed").Str("key", key).Err(err).Send()
		return data, nil
	}

	// An invalidation that raced the Set may have deleted before it landed
	if c.generation(key) != start {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.log.Warn("cache delete failed").Str("key", key).Err(err).Send()
		}
	}
	return data, nil
}

// Invalidate drops key from the cache
func (c *CachedReader) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	c.generations[key]++
	c.mu.Unlock()

	c.rec.RecordCacheInvalidation()
	return c.cache.Delete(ctx, key)
}

// InvalidateAll drops every cached document
func (c *CachedReader) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()

	c.rec.RecordCacheInvalidation()
	return c.cache.Clear(ctx)
}

func (c *CachedReader) generation(key string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{epoch: c.epoch, key: c.generations[key]}
}
