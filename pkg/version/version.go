// ABOUTME: Four-part datastore version identifier
// ABOUTME: Parsing, draft classification and file-key rendering

package version

import (
	"regexp"
	"strings"

	"github.com/nainya/metadata-service/pkg/errs"
)

// DraftFileKey addresses the metadata document of the open draft
const DraftFileKey = "DRAFT"

var fourPartPattern = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)\.([0-9]+)$`)

// Version is a parsed major.minor.patch.draft identifier
type Version struct {
	major string
	minor string
	patch string
	draft string
}

// Parse parses a four-part dotted version string
func Parse(text string) (Version, error) {
	m := fourPartPattern.FindStringSubmatch(text)
	if m == nil {
		return Version{}, errs.Malformed(text)
	}
	return Version{major: m[1], minor: m[2], patch: m[3], draft: m[4]}, nil
}

// MustParse is like Parse but panics on malformed input
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the major component
func (v Version) Major() string { return v.major }

// Minor returns the minor component
func (v Version) Minor() string { return v.minor }

// Patch returns the patch component
func (v Version) Patch() string { return v.patch }

// Draft returns the fourth (draft) component
func (v Version) Draft() string { return v.draft }

// IsDraft reports whether v addresses the draft (major.minor.patch = 0.0.0)
func (v Version) IsDraft() bool {
	return v.major == "0" && v.minor == "0" && v.patch == "0"
}

// IsPlaceholderDraft reports whether v is the generic draft address 0.0.0.0
func (v Version) IsPlaceholderDraft() bool {
	return v.IsDraft() && v.draft == "0"
}

// FileKey returns the key of the stored metadata document for v.
// Released versions sharing major.minor.patch share one document.
func (v Version) FileKey() string {
	if v.IsDraft() {
		return DraftFileKey
	}
	return strings.Join([]string{v.major, v.minor, v.patch}, "_")
}

// Dotted returns the four-part dotted rendering
func (v Version) Dotted() string {
	return strings.Join([]string{v.major, v.minor, v.patch, v.draft}, ".")
}

func (v Version) String() string {
	return v.Dotted()
}
