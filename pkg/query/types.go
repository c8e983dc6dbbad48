// ABOUTME: Query service types
// ABOUTME: Store contract and request/response values

package query

import (
	"context"

	"github.com/nainya/metadata-service/pkg/metadata"
	"github.com/nainya/metadata-service/pkg/version"
)

// Store is the datastore contract consumed by the engine.
// Implementations must be safe for concurrent reads.
type Store interface {
	version.Source

	// MetadataAll returns the metadata-all document for a version file key,
	// failing with errs.NotFound when none exists.
	MetadataAll(ctx context.Context, fileKey string) (metadata.Document, error)
}

// StructuresQuery selects data structures from one version
type StructuresQuery struct {
	// Names selects structures by name; empty selects all
	Names             []string
	Version           version.Version
	IncludeAttributes bool
	SkipCodeLists     bool
}

// Language is a language metadata is available in
type Language struct {
	Code  string `json:"code" msgpack:"code"`
	Label string `json:"label" msgpack:"label"`
}
