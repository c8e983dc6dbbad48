// ABOUTME: Datastore version history data model
// ABOUTME: Released versions, the open draft and per-structure status

package version

// Operation is the change applied to a data structure in a release
type Operation string

const (
	OperationAdd    Operation = "ADD"
	OperationChange Operation = "CHANGE"
	OperationRemove Operation = "REMOVE"
)

// ReleaseStatus is the lifecycle label of a data structure
type ReleaseStatus string

const (
	StatusReleased       ReleaseStatus = "RELEASED"
	StatusDraft          ReleaseStatus = "DRAFT"
	StatusPendingRelease ReleaseStatus = "PENDING_RELEASE"
	StatusDeleted        ReleaseStatus = "DELETED"
)

// DataStructureUpdate records one data structure changed by a release
type DataStructureUpdate struct {
	Name          string        `json:"name" msgpack:"name"`
	Description   string        `json:"description,omitempty" msgpack:"description,omitempty"`
	Operation     Operation     `json:"operation" msgpack:"operation"`
	ReleaseStatus ReleaseStatus `json:"releaseStatus,omitempty" msgpack:"releaseStatus,omitempty"`
}

// Release is one entry of the datastore version history. The open draft
// uses the same shape with a 0.0.0.x version.
type Release struct {
	Version              string                `json:"version" msgpack:"version"`
	Description          string                `json:"description,omitempty" msgpack:"description,omitempty"`
	ReleaseTime          int64                 `json:"releaseTime" msgpack:"releaseTime"`
	LanguageCode         string                `json:"languageCode,omitempty" msgpack:"languageCode,omitempty"`
	UpdateType           string                `json:"updateType,omitempty" msgpack:"updateType,omitempty"`
	DataStructureUpdates []DataStructureUpdate `json:"dataStructureUpdates" msgpack:"dataStructureUpdates"`
}

// DatastoreVersions is the datastore version index, newest release first
type DatastoreVersions struct {
	Name         string    `json:"name" msgpack:"name"`
	Label        string    `json:"label" msgpack:"label"`
	Description  string    `json:"description" msgpack:"description"`
	LanguageCode string    `json:"languageCode" msgpack:"languageCode"`
	Versions     []Release `json:"versions" msgpack:"versions"`
}

// Status is the current lifecycle status of a data structure
type Status struct {
	Name          string        `json:"name" msgpack:"name"`
	Operation     Operation     `json:"operation" msgpack:"operation"`
	ReleaseTime   int64         `json:"releaseTime" msgpack:"releaseTime"`
	ReleaseStatus ReleaseStatus `json:"releaseStatus" msgpack:"releaseStatus"`
}
