package task

import (
	"math"

	"github.com/1ureka/webrtc-task/internal/protocol"
)

// Decoded payloads come from JSON or CBOR, so maps, lists and numbers arrive
// in several concrete types. The helpers below normalise them.

func mapValue(v any, field string) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, protocol.Validationf("%s must be a map with string keys", field)
			}
			out[key] = val
		}
		return out, nil
	case nil:
		return nil, protocol.Validationf("%s must not be null", field)
	}
	return nil, protocol.Validationf("%s must be a map, got %T", field, v)
}

func listValue(v any, field string) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case nil:
		return nil, protocol.Validationf("%s must not be null", field)
	}
	return nil, protocol.Validationf("%s must be a list, got %T", field, v)
}

func stringValue(v any, field string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", protocol.Validationf("%s must be a string, got %T", field, v)
	}
	return s, nil
}

func boolValue(v any, field string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, protocol.Validationf("%s must be a boolean, got %T", field, v)
	}
	return b, nil
}

// uintValue accepts any integral, non-negative number not above max.
func uintValue(v any, field string, max uint64) (uint64, error) {
	var (
		n      uint64
		signed int64
		isInt  bool
	)
	switch x := v.(type) {
	case int:
		signed, isInt = int64(x), true
	case int8:
		signed, isInt = int64(x), true
	case int16:
		signed, isInt = int64(x), true
	case int32:
		signed, isInt = int64(x), true
	case int64:
		signed, isInt = x, true
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case float64:
		if x < 0 || x != math.Trunc(x) || x >= math.MaxUint64 {
			return 0, protocol.Validationf("%s must be a non-negative integer", field)
		}
		n = uint64(x)
	default:
		return 0, protocol.Validationf("%s must be an integer, got %T", field, v)
	}
	if isInt {
		if signed < 0 {
			return 0, protocol.Validationf("%s must not be negative", field)
		}
		n = uint64(signed)
	}
	if n > max {
		return 0, protocol.Validationf("%s must be at most %d, got %d", field, max, n)
	}
	return n, nil
}
