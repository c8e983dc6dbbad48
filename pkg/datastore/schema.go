// ABOUTME: JSON schema validation of stored version documents
// ABOUTME: Schemas are embedded and compiled once at startup

package datastore

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nainya/metadata-service/pkg/errs"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	releaseSchema           = mustSchema("schemas/release.json")
	datastoreVersionsSchema = mustSchema("schemas/datastore_versions.json")
)

func mustSchema(path string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("datastore: missing schema %s: %v", path, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("datastore: invalid schema %s: %v", path, err))
	}
	return schema
}

// validate checks data against schema, returning InvalidDocumentShape
// listing every violation.
func validate(schema *gojsonschema.Schema, key string, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errs.Wrap(err, "failed to validate %s", key)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errs.Shape(fmt.Sprintf("Invalid %s format: %s", key, strings.Join(problems, "; ")))
}
