package notion

import (
	"encoding/json"
	"fmt"
	"strings"
)

func joinPath(parent, key string) string {
	switch {
	case parent == "":
		return key
	case key == "":
		return parent
	case strings.HasPrefix(key, "["):
		return parent + key
	default:
		return parent + "." + key
	}
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func asObject(v any, path string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(path, "expected object, got %s", describe(v))
	}
	return m, nil
}

func requireObject(m map[string]any, key, path string) (map[string]any, error) {
	v, ok := m[key]
	if !ok {
		return nil, mismatch(joinPath(path, key), "missing required key")
	}
	return asObject(v, joinPath(path, key))
}

// optionalObject returns nil for an absent or null key.
func optionalObject(m map[string]any, key, path string) (map[string]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	return asObject(v, joinPath(path, key))
}

func requireString(m map[string]any, key, path string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", mismatch(joinPath(path, key), "missing required key")
	}
	s, ok := v.(string)
	if !ok {
		return "", mismatch(joinPath(path, key), "expected string, got %s", describe(v))
	}
	return s, nil
}

func optionalString(m map[string]any, key, path string) (string, error) {
	p, err := nullableString(m, key, path)
	if err != nil || p == nil {
		return "", err
	}
	return *p, nil
}

func nullableString(m map[string]any, key, path string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, mismatch(joinPath(path, key), "expected string, got %s", describe(v))
	}
	return &s, nil
}

func optionalBool(m map[string]any, key, path string) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, mismatch(joinPath(path, key), "expected bool, got %s", describe(v))
	}
	return b, nil
}

func requireArray(m map[string]any, key, path string) ([]any, error) {
	v, ok := m[key]
	if !ok {
		return nil, mismatch(joinPath(path, key), "missing required key")
	}
	items, ok := v.([]any)
	if !ok {
		return nil, mismatch(joinPath(path, key), "expected array, got %s", describe(v))
	}
	return items, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// checkTypeTag fails when a "type" key is present and differs from want.
func checkTypeTag(m map[string]any, want, path string) error {
	v, ok := m["type"]
	if !ok || v == nil {
		return nil
	}
	got, ok := v.(string)
	if !ok {
		return mismatch(joinPath(path, "type"), "expected string, got %s", describe(v))
	}
	if got != want {
		return mismatch(joinPath(path, "type"), "type %q does not match %q", got, want)
	}
	return nil
}
