// ABOUTME: Query parameter parsing for the metadata API
// ABOUTME: Rejects unknown parameters and validates versions and flags

package server

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nainya/metadata-service/pkg/errs"
	"github.com/nainya/metadata-service/pkg/query"
	"github.com/nainya/metadata-service/pkg/version"
)

// checkParams rejects any query parameter not in allowed
func checkParams(values url.Values, allowed ...string) error {
	var unknown []string
	for key := range values {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return errs.Invalid("Unexpected query parameters: %s", strings.Join(unknown, ", "))
}

// parseNames splits every value of key on commas. Repeated parameters
// are joined.
func parseNames(values url.Values, key string) []string {
	var names []string
	for _, raw := range values[key] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// parseVersion parses the required version parameter
func parseVersion(values url.Values) (version.Version, error) {
	raw, ok := values["version"]
	if !ok || len(raw) == 0 || raw[0] == "" {
		return version.Version{}, errs.Invalid("Missing required query parameter: version")
	}
	return version.Parse(raw[0])
}

// parseBool parses an optional boolean parameter
func parseBool(values url.Values, key string, fallback bool) (bool, error) {
	raw := values.Get(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.Invalid("Query parameter %s must be a boolean, got %q", key, raw)
	}
	return b, nil
}

// parseStructuresQuery builds the query for /metadata/data-structures.
// Attributes are included unless include_attributes=false.
func parseStructuresQuery(values url.Values) (query.StructuresQuery, error) {
	var q query.StructuresQuery
	if err := checkParams(values, "names", "version", "include_attributes", "skip_code_lists"); err != nil {
		return q, err
	}

	v, err := parseVersion(values)
	if err != nil {
		return q, err
	}
	include, err := parseBool(values, "include_attributes", true)
	if err != nil {
		return q, err
	}
	skip, err := parseBool(values, "skip_code_lists", false)
	if err != nil {
		return q, err
	}

	return query.StructuresQuery{
		Names:             parseNames(values, "names"),
		Version:           v,
		IncludeAttributes: include,
		SkipCodeLists:     skip,
	}, nil
}

// parseAllQuery parses the parameters of /metadata/all
func parseAllQuery(values url.Values) (version.Version, bool, error) {
	if err := checkParams(values, "version", "skip_code_lists"); err != nil {
		return version.Version{}, false, err
	}
	v, err := parseVersion(values)
	if err != nil {
		return version.Version{}, false, err
	}
	skip, err := parseBool(values, "skip_code_lists", false)
	if err != nil {
		return version.Version{}, false, err
	}
	return v, skip, nil
}
