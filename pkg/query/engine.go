// ABOUTME: Metadata query engine
// ABOUTME: Composes version resolution and document projection

package query

import (
	"context"

	"github.com/nainya/metadata-service/pkg/errs"
	"github.com/nainya/metadata-service/pkg/metadata"
	"github.com/nainya/metadata-service/pkg/version"
)

var supportedLanguages = []Language{
	{Code: "no", Label: "Norsk"},
}

// Engine answers the read-only metadata queries. It holds no mutable
// state and may be shared across goroutines.
type Engine struct {
	store    Store
	resolver *version.Resolver
}

// NewEngine creates a query engine over store
func NewEngine(store Store) *Engine {
	return &Engine{
		store:    store,
		resolver: version.NewResolver(store),
	}
}

// GetAllVersions returns the datastore version history, open draft first
func (e *Engine) GetAllVersions(ctx context.Context) (*version.DatastoreVersions, error) {
	return e.resolver.ListAllVersions(ctx)
}

// GetStructureStatus returns the current status of each named data
// structure; unknown names map to nil.
func (e *Engine) GetStructureStatus(ctx context.Context, names []string) (map[string]*version.Status, error) {
	if len(names) == 0 {
		return nil, errs.Invalid("at least one data structure name is required")
	}
	for _, name := range names {
		if name == "" {
			return nil, errs.Invalid("data structure names must not be empty")
		}
	}
	return e.resolver.ResolveStatus(ctx, names)
}

// GetStructures returns the selected data structures of a version
func (e *Engine) GetStructures(ctx context.Context, q StructuresQuery) ([]metadata.DataStructure, error) {
	doc, err := e.loadDocument(ctx, q.Version, q.SkipCodeLists)
	if err != nil {
		return nil, err
	}

	selected, err := metadata.SelectStructures(doc, q.Names)
	if err != nil {
		return nil, err
	}
	return metadata.StripAttributes(selected, q.IncludeAttributes), nil
}

// GetAllMetadata returns the whole metadata-all document of a version
func (e *Engine) GetAllMetadata(ctx context.Context, v version.Version, skipCodeLists bool) (metadata.Document, error) {
	return e.loadDocument(ctx, v, skipCodeLists)
}

// GetLanguages returns the languages metadata is available in
func (e *Engine) GetLanguages(ctx context.Context) []Language {
	result := make([]Language, len(supportedLanguages))
	copy(result, supportedLanguages)
	return result
}

func (e *Engine) loadDocument(ctx context.Context, v version.Version, skipCodeLists bool) (metadata.Document, error) {
	if err := e.resolver.ValidateDraftConsistency(ctx, v); err != nil {
		return nil, err
	}

	doc, err := e.store.MetadataAll(ctx, v.FileKey())
	if err != nil {
		return nil, err
	}

	if skipCodeLists {
		return metadata.RedactCodeDomains(doc)
	}
	return doc, nil
}
