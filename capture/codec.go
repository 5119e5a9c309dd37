package capture

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// A map holding invalid UTF-8 or NUL anywhere is stored as
// {"$base64": {b64(key): b64(value)}}. Plain maps only hold string values, so
// the nested object cannot be mistaken for one.
const rawMapKey = "$base64"

// MarshalMap encodes a map facet as a JSON object. A nil map encodes as nil so
// adapters can persist it as an absent value.
func MarshalMap(m map[string]string) (*string, error) {
	if m == nil {
		return nil, nil
	}

	var v any = m
	if !jsonSafe(m) {
		raw := make(map[string]string, len(m))
		for key, value := range m {
			raw[base64.StdEncoding.EncodeToString([]byte(key))] = base64.StdEncoding.EncodeToString([]byte(value))
		}
		v = map[string]map[string]string{rawMapKey: raw}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling map: %w", err)
	}
	s := string(b)
	return &s, nil
}

// UnmarshalMap decodes what MarshalMap produced
func UnmarshalMap(s *string) (map[string]string, error) {
	if s == nil {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(*s), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling map: %w", err)
	}
	if nested, ok := fields[rawMapKey]; ok && len(fields) == 1 && strings.HasPrefix(strings.TrimSpace(string(nested)), "{") {
		return decodeRawMap(nested)
	}

	m := make(map[string]string, len(fields))
	for key, value := range fields {
		var str string
		if err := json.Unmarshal(value, &str); err != nil {
			return nil, fmt.Errorf("unmarshaling map value %q: %w", key, err)
		}
		m[key] = str
	}
	return m, nil
}

func decodeRawMap(nested json.RawMessage) (map[string]string, error) {
	var raw map[string]string
	if err := json.Unmarshal(nested, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling raw map: %w", err)
	}
	m := make(map[string]string, len(raw))
	for encKey, encValue := range raw {
		key, err := base64.StdEncoding.DecodeString(encKey)
		if err != nil {
			return nil, fmt.Errorf("decoding raw map key: %w", err)
		}
		value, err := base64.StdEncoding.DecodeString(encValue)
		if err != nil {
			return nil, fmt.Errorf("decoding raw map value: %w", err)
		}
		m[string(key)] = string(value)
	}
	return m, nil
}

// jsonSafe reports whether every key and value survives a JSON text round trip in every store
func jsonSafe(m map[string]string) bool {
	for key, value := range m {
		if !safeString(key) || !safeString(value) {
			return false
		}
	}
	return true
}

func safeString(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
