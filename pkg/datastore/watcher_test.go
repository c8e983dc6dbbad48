package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_InvalidatesChangedFiles(t *testing.T) {
	root := writeDatastore(t, map[string]string{"datastore_versions.json": `{"versions": []}`})
	fr := NewFileReader(root)
	cache := NewMemoryCache(DefaultCacheConfig())
	defer cache.Close()
	reader := NewCachedReader(fr, cache, nil, nil)
	ctx := context.Background()

	_, err := reader.Read(ctx, KeyDatastoreVersions)
	require.NoError(t, err)

	w, err := NewWatcher(fr.Dir(), reader, nil)
	require.NoError(t, err)
	invalidated := make(chan string, 16)
	w.onInvalidate = func(key string) { invalidated <- key }
	w.Start()
	defer w.Close()

	require.NoError(t, os.WriteFile(fr.Path(KeyDatastoreVersions), []byte(`{"versions": [], "name": "new"}`), 0o644))

	select {
	case key := <-invalidated:
		assert.Equal(t, KeyDatastoreVersions, key)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for invalidation")
	}

	data, err := reader.Read(ctx, KeyDatastoreVersions)
	require.NoError(t, err)
	assert.Contains(t, string(data), "new")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := writeDatastore(t, nil)
	fr := NewFileReader(root)
	cache := NewMemoryCache(DefaultCacheConfig())
	defer cache.Close()

	w, err := NewWatcher(fr.Dir(), NewCachedReader(fr, cache, nil, nil), nil)
	require.NoError(t, err)
	invalidated := make(chan string, 16)
	w.onInvalidate = func(key string) { invalidated <- key }
	w.Start()
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(fr.Dir(), "notes.txt"), []byte("x"), 0o644))

	select {
	case key := <-invalidated:
		t.Fatalf("unexpected invalidation of %s", key)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}

func newTestWatcher(t *testing.T) (*Watcher, *CachedReader, *MemoryCache) {
	t.Helper()
	fr := NewFileReader(writeDatastore(t, map[string]string{"datastore_versions.json": `{"versions": []}`}))
	cache := NewMemoryCache(DefaultCacheConfig())
	t.Cleanup(func() { cache.Close() })
	reader := NewCachedReader(fr, cache, nil, nil)

	w, err := NewWatcher(fr.Dir(), reader, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	_, err = reader.Read(context.Background(), KeyDatastoreVersions)
	require.NoError(t, err)
	return w, reader, cache
}

func TestWatcher_DirectoryRemovalClearsCache(t *testing.T) {
	w, _, cache := newTestWatcher(t)
	cleared := false
	w.onInvalidateAll = func() { cleared = true }

	w.handle(fsnotify.Event{Name: w.dir + string(filepath.Separator), Op: fsnotify.Remove})

	assert.True(t, cleared)
	_, err := cache.Get(context.Background(), KeyDatastoreVersions)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestWatcher_OverflowClearsCache(t *testing.T) {
	w, _, cache := newTestWatcher(t)
	cleared := false
	w.onInvalidateAll = func() { cleared = true }

	w.handleError(fmt.Errorf("inotify: %w", fsnotify.ErrEventOverflow))

	assert.True(t, cleared)
	_, err := cache.Get(context.Background(), KeyDatastoreVersions)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestWatcher_OtherErrorsKeepCache(t *testing.T) {
	w, _, cache := newTestWatcher(t)
	w.onInvalidateAll = func() { t.Fatal("unexpected cache clear") }

	w.handleError(errors.New("transient"))

	_, err := cache.Get(context.Background(), KeyDatastoreVersions)
	assert.NoError(t, err)
}
