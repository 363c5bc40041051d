// Package resolve extracts values from trigger data and step payloads.
package resolve

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/oliveagle/jsonpath"
)

// Normalize converts v into its plain JSON form: map[string]any, []any,
// float64, string, bool or nil. Struct payloads become maps keyed by their
// JSON field names.
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsWholeDocument reports whether path selects the entire source.
func IsWholeDocument(path string) bool {
	p := strings.TrimSpace(path)
	return p == "" || p == "."
}

// Lookup returns the value at path inside doc, or nil when any segment is
// missing. Paths are dotted and array-index aware: "items.0.id" and
// "items[0].id" are equivalent.
func Lookup(doc any, path string) any {
	v, _ := Find(doc, path)
	return v
}

// Find is Lookup that also reports whether every segment of path exists.
// A key holding null is found; a missing key is not.
//
// Plain segments are resolved against the runtime type of the current
// node: an object is looked up by key, so {"1": x} answers path "1", and
// an array by index. Segments with brackets go through jsonpath.
func Find(doc any, path string) (any, bool) {
	if doc == nil {
		return nil, false
	}
	cur, err := Normalize(doc)
	if err != nil {
		return nil, false
	}
	if IsWholeDocument(path) {
		return cur, true
	}

	for _, seg := range strings.Split(strings.TrimSpace(path), ".") {
		if seg == "" {
			return nil, false
		}
		if strings.ContainsRune(seg, '[') {
			expr := "$." + seg
			if strings.HasPrefix(seg, "[") {
				expr = "$" + seg
			}
			v, err := jsonpath.JsonPathLookup(cur, expr)
			if err != nil {
				return nil, false
			}
			cur = v
			continue
		}

		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
