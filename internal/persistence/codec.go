package persistence

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// EncodeData serializes a record's data as JSON.
func EncodeData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(data)
}

// DecodeData parses JSON produced by EncodeData. Empty input decodes to an
// empty map.
func DecodeData(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode record data: %w", err)
	}
	return out, nil
}

// storedRecord is the serialized form used by key/value backends.
type storedRecord struct {
	ExternalID string         `json:"externalId"`
	Data       map[string]any `json:"data"`
}

func normalizeJSON(v any) (any, error) {
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

func jsonEqual(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
