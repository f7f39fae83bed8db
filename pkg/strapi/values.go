package strapi

import (
	"encoding/json"
	"math"
	"strconv"
)

// AsID converts a decoded JSON value to an integer ID. JSON numbers decode as
// float64; json.Number and numeric strings are accepted too.
func AsID(value interface{}) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case int32:
		return int(typed), true
	case float64:
		if typed != math.Trunc(typed) {
			return 0, false
		}

		return int(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}

		return int(parsed), true
	case string:
		parsed, err := strconv.Atoi(typed)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

// AsMap returns value as a JSON object.
func AsMap(value interface{}) (map[string]interface{}, bool) {
	typed, ok := value.(map[string]interface{})

	return typed, ok
}

// AsSlice returns value as a JSON array.
func AsSlice(value interface{}) ([]interface{}, bool) {
	typed, ok := value.([]interface{})

	return typed, ok
}

// AsString returns value as a string.
func AsString(value interface{}) (string, bool) {
	typed, ok := value.(string)

	return typed, ok
}

// CloneMap deep-copies a decoded JSON object.
func CloneMap(source map[string]interface{}) map[string]interface{} {
	if source == nil {
		return nil
	}

	clone := make(map[string]interface{}, len(source))
	for key, value := range source {
		clone[key] = CloneValue(value)
	}

	return clone
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return CloneMap(typed)
	case []interface{}:
		clone := make([]interface{}, len(typed))
		for i, item := range typed {
			clone[i] = CloneValue(item)
		}

		return clone
	default:
		return value
	}
}

func itoa(value int) string {
	return strconv.Itoa(value)
}
