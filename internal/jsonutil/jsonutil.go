// Package jsonutil provides typed accessors over unstructured JSON maps
// (map[string]any), as produced by decoding telemetry and PubSub payloads
// whose shape is not fully known ahead of time.
package jsonutil

import "encoding/json"

// IntFromAny converts the numeric representations JSON decoding can
// produce to int. Non-numeric values yield 0.
func IntFromAny(value any) int {
	switch num := value.(type) {
	case float64:
		return int(num)
	case int:
		return num
	case int64:
		return int(num)
	case json.Number:
		i, _ := num.Int64()
		return int(i)
	default:
		return 0
	}
}

// IntFromMap extracts an int from a map by key.
func IntFromMap(data map[string]any, key string) int {
	return IntFromAny(data[key])
}

// StringFromMap extracts a string from a map by key. Missing keys and
// non-string values yield "".
func StringFromMap(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// BoolFromMap extracts a bool from a map by key.
func BoolFromMap(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}

// MapFromMap extracts a nested object from a map by key. Returns nil when
// the key is absent or not an object.
func MapFromMap(data map[string]any, key string) map[string]any {
	m, _ := data[key].(map[string]any)
	return m
}
