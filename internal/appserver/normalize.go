package appserver

import "encoding/json"

// alternate key names an upstream row may use instead of "id".
var idAliases = []string{"lead_id", "clinic_id", "service_id", "appointment_id", "_id", "ID"}

// normalizeRows guarantees every row object carries an "id" field,
// synthesizing one from alternate key names when absent.
func normalizeRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		if _, ok := row["id"]; !ok {
			for _, alias := range idAliases {
				if v, found := row[alias]; found && v != nil {
					row["id"] = v
					break
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// decodeRows accepts either a bare array, or an object wrapping the array
// under one of the usual envelope keys.
func decodeRows(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err == nil {
		return normalizeRows(rows), nil
	}

	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "rows", "results", "items"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		rows = make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return normalizeRows(rows), nil
	}
	// a single object is a one-row result
	return normalizeRows([]map[string]any{obj}), nil
}

// pruneEmpty removes nil values, empty strings, and empty nested maps from
// an outbound payload.
func pruneEmpty(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			if value == "" {
				continue
			}
		case map[string]any:
			pruned := pruneEmpty(value)
			if len(pruned) == 0 {
				continue
			}
			out[k] = pruned
			continue
		}
		out[k] = v
	}
	return out
}
