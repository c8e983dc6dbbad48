// ABOUTME: Decoded access to the datastore documents
// ABOUTME: Version index, open draft and metadata-all documents

package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/pkg/errs"
	"github.com/nainya/metadata-service/pkg/metadata"
	"github.com/nainya/metadata-service/pkg/version"
)

// Recorder receives store and cache measurements
type Recorder interface {
	RecordStoreOperation(operation string, status string, duration time.Duration)
	RecordCacheLookup(hit bool)
	RecordCacheInvalidation()
}

type nopRecorder struct{}

func (nopRecorder) RecordStoreOperation(string, string, time.Duration) {}
func (nopRecorder) RecordCacheLookup(bool)                             {}
func (nopRecorder) RecordCacheInvalidation()                           {}

// Store decodes datastore documents read through a Reader. Each call
// returns freshly decoded values, so callers may modify them.
type Store struct {
	reader Reader
	rec    Recorder
	log    *logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithRecorder sets the recorder for store operations
func WithRecorder(rec Recorder) Option {
	return func(s *Store) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// WithLogger sets the logger for store operations
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore creates a store over reader
func NewStore(reader Reader, opts ...Option) *Store {
	s := &Store{
		reader: reader,
		rec:    nopRecorder{},
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DraftVersion returns the open draft, or nil when none is open.
// A missing draft file and an empty object both mean no draft.
func (s *Store) DraftVersion(ctx context.Context) (*version.Release, error) {
	var draft *version.Release
	err := s.observe("draft_version", func() error {
		data, err := s.reader.Read(ctx, KeyDraftVersion)
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if isEmptyObject(data) {
			return nil
		}
		if err := validate(releaseSchema, KeyDraftVersion, data); err != nil {
			return err
		}

		var r version.Release
		if err := json.Unmarshal(data, &r); err != nil {
			return errs.Wrap(err, "failed to decode %s", KeyDraftVersion)
		}
		draft = &r
		return nil
	})
	return draft, err
}

// DatastoreVersions returns the stored version index, newest release first
func (s *Store) DatastoreVersions(ctx context.Context) (*version.DatastoreVersions, error) {
	var index version.DatastoreVersions
	err := s.observe("datastore_versions", func() error {
		data, err := s.reader.Read(ctx, KeyDatastoreVersions)
		if errors.Is(err, ErrKeyNotFound) {
			return errs.Wrap(err, "datastore version index not found")
		}
		if err != nil {
			return err
		}
		if err := validate(datastoreVersionsSchema, KeyDatastoreVersions, data); err != nil {
			return err
		}
		if err := json.Unmarshal(data, &index); err != nil {
			return errs.Wrap(err, "failed to decode %s", KeyDatastoreVersions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &index, nil
}

// MetadataAll returns the metadata-all document stored under fileKey
func (s *Store) MetadataAll(ctx context.Context, fileKey string) (metadata.Document, error) {
	var doc metadata.Document
	err := s.observe("metadata_all", func() error {
		data, err := s.reader.Read(ctx, MetadataAllKey(fileKey))
		if errors.Is(err, ErrKeyNotFound) {
			return errs.NotFoundf(fileKey, "metadata_all for version %s not found", fileKey)
		}
		if err != nil {
			return err
		}
		doc, err = metadata.Decode(data)
		return err
	})
	return doc, err
}

// Ping checks that the version index is readable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.DatastoreVersions(ctx)
	return err
}

func (s *Store) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if errs.Is(err, errs.NotFound) {
			status = "not_found"
		}
	}
	s.rec.RecordStoreOperation(operation, status, duration)
	s.log.LogStoreOperation(operation, duration, err)
	return err
}

func isEmptyObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}
