// ABOUTME: Metadata-all document model
// ABOUTME: Generic JSON objects so unknown fields pass through untouched

package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nainya/metadata-service/pkg/errs"
)

// Field names of the metadata-all document
const (
	FieldDataStructures       = "dataStructures"
	FieldName                 = "name"
	FieldMeasureVariable      = "measureVariable"
	FieldIdentifierVariables  = "identifierVariables"
	FieldAttributeVariables   = "attributeVariables"
	FieldRepresentedVariables = "representedVariables"
	FieldValueDomain          = "valueDomain"
	FieldCodeList             = "codeList"
	FieldMissingValues        = "missingValues"
)

// Document is a decoded metadata-all document
// ({dataStore, languages, dataStructures}).
type Document map[string]any

// DataStructure is one entry of a document's dataStructures
type DataStructure map[string]any

// Decode parses a metadata-all document from JSON. Numbers are kept as
// json.Number so large integers survive re-encoding unchanged.
func Decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(err, "failed to decode metadata document")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errs.Wrap(fmt.Errorf("unexpected data after document"), "failed to decode metadata document")
	}
	if doc == nil {
		return nil, errs.Shape("metadata document is not a JSON object")
	}
	return doc, nil
}

// Name returns the structure's name, or "" when absent
func (ds DataStructure) Name() string {
	name, _ := ds[FieldName].(string)
	return name
}

// HasAttributes reports whether the attributeVariables key is present
func (ds DataStructure) HasAttributes() bool {
	_, ok := ds[FieldAttributeVariables]
	return ok
}

// DataStructures returns the document's structures.
// It fails with InvalidDocumentShape when the field is missing or not a list.
func (d Document) DataStructures() ([]DataStructure, error) {
	raw, ok := d[FieldDataStructures]
	if !ok {
		return nil, errs.Shape("Invalid metadata format: missing " + FieldDataStructures)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errs.Shape(fmt.Sprintf("Invalid metadata format: %s is %T", FieldDataStructures, raw))
	}

	result := make([]DataStructure, 0, len(items))
	for i, item := range items {
		ds, err := asStructure(item)
		if err != nil {
			return nil, errs.Shape(fmt.Sprintf("Invalid metadata format: %s[%d] is %T", FieldDataStructures, i, item))
		}
		result = append(result, ds)
	}
	return result, nil
}

// Clone returns a deep copy of the document
func (d Document) Clone() Document {
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

// Clone returns a deep copy of the structure
func (ds DataStructure) Clone() DataStructure {
	return DataStructure(cloneValue(map[string]any(ds)).(map[string]any))
}

func asStructure(v any) (DataStructure, error) {
	switch t := v.(type) {
	case map[string]any:
		return DataStructure(t), nil
	case DataStructure:
		return t, nil
	default:
		return nil, fmt.Errorf("not an object: %T", v)
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case DataStructure:
		return DataStructure(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
