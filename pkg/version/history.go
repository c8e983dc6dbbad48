// ABOUTME: Version history resolution over the datastore index
// ABOUTME: Merges the open draft and resolves per-structure status

package version

import (
	"context"

	"github.com/nainya/metadata-service/pkg/errs"
)

// Source provides the stored version history.
// DraftVersion returns nil when no draft is open.
type Source interface {
	DraftVersion(ctx context.Context) (*Release, error)
	DatastoreVersions(ctx context.Context) (*DatastoreVersions, error)
}

// Resolver answers version history and status queries
type Resolver struct {
	src Source
}

// NewResolver creates a resolver reading from src
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// ListAllVersions returns the version index with the open draft, if any,
// as the first entry. The stored index is never modified.
func (r *Resolver) ListAllVersions(ctx context.Context) (*DatastoreVersions, error) {
	draft, err := r.src.DraftVersion(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := r.src.DatastoreVersions(ctx)
	if err != nil {
		return nil, err
	}

	if draft == nil {
		return stored, nil
	}

	merged := *stored
	merged.Versions = make([]Release, 0, len(stored.Versions)+1)
	merged.Versions = append(merged.Versions, *draft)
	merged.Versions = append(merged.Versions, stored.Versions...)
	return &merged, nil
}

// ResolveStatus returns the status of each name as of the most recent
// version that touches it. Names absent from the history map to nil.
//
// Versions are walked in index order (draft first, then newest release
// first); the store is trusted to keep that order.
func (r *Resolver) ResolveStatus(ctx context.Context, names []string) (map[string]*Status, error) {
	all, err := r.ListAllVersions(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*Status, len(names))
	for _, name := range names {
		result[name] = nil
	}

	pending := len(result)
	for _, release := range all.Versions {
		if pending == 0 {
			break
		}
		isDraft := isDraftRelease(release)
		for _, update := range release.DataStructureUpdates {
			status, wanted := result[update.Name]
			if !wanted || status != nil {
				continue
			}
			result[update.Name] = &Status{
				Name:          update.Name,
				Operation:     update.Operation,
				ReleaseTime:   release.ReleaseTime,
				ReleaseStatus: statusOf(update, isDraft),
			}
			pending--
		}
	}

	return result, nil
}

// ValidateDraftConsistency rejects a request for a specific draft that is
// no longer the open draft. Released versions and the placeholder draft
// 0.0.0.0 always pass.
func (r *Resolver) ValidateDraftConsistency(ctx context.Context, v Version) error {
	if !v.IsDraft() || v.IsPlaceholderDraft() {
		return nil
	}

	draft, err := r.src.DraftVersion(ctx)
	if err != nil {
		return err
	}
	if draft == nil {
		return errs.Stale(v.Dotted(), "")
	}

	current, err := Parse(draft.Version)
	if err != nil || current.Dotted() != v.Dotted() {
		return errs.Stale(v.Dotted(), draft.Version)
	}
	return nil
}

// statusOf returns the explicit release status of update, deriving one
// for records written before the field existed.
func statusOf(update DataStructureUpdate, inDraft bool) ReleaseStatus {
	if update.ReleaseStatus != "" {
		return update.ReleaseStatus
	}
	switch {
	case inDraft:
		return StatusDraft
	case update.Operation == OperationRemove:
		return StatusDeleted
	default:
		return StatusReleased
	}
}

func isDraftRelease(r Release) bool {
	v, err := Parse(r.Version)
	return err == nil && v.IsDraft()
}
