// ABOUTME: File watcher for the datastore directory
// ABOUTME: Invalidates cached documents when their files change

package datastore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/nainya/metadata-service/internal/logger"
)

// Invalidator drops cached documents
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error
}

// Watcher invalidates cached documents when their files change on disk
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	target  Invalidator
	log     *logger.Logger

	// onInvalidate and onInvalidateAll are called after each invalidation; used by tests
	onInvalidate    func(key string)
	onInvalidateAll func()

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher watches dir and invalidates the matching keys in target
func NewWatcher(dir string, target Invalidator, log *logger.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Watcher{
		dir:     filepath.Clean(dir),
		watcher: fw,
		target:  target,
		log:     log,
		stop:    make(chan struct{}),
	}, nil
}

// Start begins processing file events in the background
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Close stops the watcher and waits for the event loop to exit
func (w *Watcher) Close() error {
	close(w.stop)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleError drops the whole cache when events may have been lost
func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.log.Warn("datastore watch events lost").Err(err).Send()
		w.invalidateAll("event overflow")
		return
	}
	w.log.Error("datastore watch error").Err(err).Send()
}

func (w *Watcher) invalidateAll(reason string) {
	if err := w.target.InvalidateAll(context.Background()); err != nil {
		w.log.Warn("cache invalidation failed").Str("reason", reason).Err(err).Send()
		return
	}
	w.log.Info("cache cleared").Str("reason", reason).Send()

	if w.onInvalidateAll != nil {
		w.onInvalidateAll()
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	if filepath.Clean(event.Name) == w.dir && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		w.invalidateAll("datastore directory " + event.Op.String())
		return
	}

	key, ok := KeyForPath(event.Name)
	if !ok {
		return
	}

	if err := w.target.Invalidate(context.Background(), key); err != nil {
		w.log.Warn("cache invalidation failed").Str("key", key).Err(err).Send()
		return
	}
	w.log.Debug("cache invalidated").Str("key", key).Str("op", event.Op.String()).Send()

	if w.onInvalidate != nil {
		w.onInvalidate(key)
	}
}
