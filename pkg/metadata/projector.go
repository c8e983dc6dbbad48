// ABOUTME: Projections of a metadata-all document
// ABOUTME: Name selection, attribute stripping and code-list redaction

package metadata

// SelectStructures returns the structures whose name is in names.
// An empty names list selects every structure.
func SelectStructures(doc Document, names []string) ([]DataStructure, error) {
	structures, err := doc.DataStructures()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return structures, nil
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}

	matched := make([]DataStructure, 0, len(names))
	for _, ds := range structures {
		if _, ok := wanted[ds.Name()]; ok {
			matched = append(matched, ds)
		}
	}
	return matched, nil
}

// StripAttributes removes the attributeVariables key from copies of the
// given structures unless include is set. The inputs are not modified.
func StripAttributes(structures []DataStructure, include bool) []DataStructure {
	if include {
		return structures
	}

	result := make([]DataStructure, len(structures))
	for i, ds := range structures {
		stripped := make(DataStructure, len(ds))
		for k, v := range ds {
			if k != FieldAttributeVariables {
				stripped[k] = v
			}
		}
		result[i] = stripped
	}
	return result
}

// RedactCodeDomains returns a copy of doc in which every codeList and
// missingValues list of a represented variable's valueDomain is emptied.
// The keys are kept. Applying it twice gives the same result as once.
func RedactCodeDomains(doc Document) (Document, error) {
	if _, err := doc.DataStructures(); err != nil {
		return nil, err
	}

	redacted := doc.Clone()
	structures, err := redacted.DataStructures()
	if err != nil {
		return nil, err
	}

	for _, ds := range structures {
		for _, rv := range representedVariables(ds) {
			clearValueDomain(rv)
		}
	}
	return redacted, nil
}

// representedVariables collects the represented variables of the measure,
// identifier and attribute variables of ds. Missing groups are skipped.
func representedVariables(ds DataStructure) []map[string]any {
	var result []map[string]any

	if measure, ok := ds[FieldMeasureVariable].(map[string]any); ok {
		result = append(result, objects(measure[FieldRepresentedVariables])...)
	}
	for _, group := range []string{FieldIdentifierVariables, FieldAttributeVariables} {
		for _, variable := range objects(ds[group]) {
			result = append(result, objects(variable[FieldRepresentedVariables])...)
		}
	}
	return result
}

func clearValueDomain(rv map[string]any) {
	domain, ok := rv[FieldValueDomain].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{FieldCodeList, FieldMissingValues} {
		if _, present := domain[key]; present {
			domain[key] = []any{}
		}
	}
}

func objects(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			result = append(result, obj)
		}
	}
	return result
}
