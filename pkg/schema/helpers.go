package schema

import (
	"encoding/json"
	"strconv"
	"strings"
)

// asString extracts a string value.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asNumber extracts a numeric value. JSON decoding yields float64, but
// repaired candidates may carry native ints.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asArray extracts an array value.
func asArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

// deepCopy clones a candidate so repair never mutates the caller's value.
func deepCopy(candidate map[string]any) map[string]any {
	out := make(map[string]any, len(candidate))
	for k, v := range candidate {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// pathSegment is one step of a dotted field path. Index is -1 for map keys.
type pathSegment struct {
	key   string
	index int
}

// parsePath splits a dotted path like "scenes[0].objects" into segments.
func parsePath(field string) []pathSegment {
	var segs []pathSegment
	for _, part := range strings.Split(field, ".") {
		if open := strings.IndexByte(part, '['); open >= 0 && strings.HasSuffix(part, "]") {
			key := part[:open]
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				segs = append(segs, pathSegment{key: part, index: -1})
				continue
			}
			segs = append(segs, pathSegment{key: key, index: idx})
		} else {
			segs = append(segs, pathSegment{key: part, index: -1})
		}
	}
	return segs
}

// getPath resolves a dotted path in a candidate. Returns false if any step
// is missing or mistyped.
func getPath(candidate map[string]any, field string) (any, bool) {
	var current any = candidate
	for _, seg := range parsePath(field) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg.key]
		if !ok {
			return nil, false
		}
		if seg.index >= 0 {
			arr, ok := current.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
		}
	}
	return current, true
}

// setPath writes a value at a dotted path, creating intermediate objects as
// needed. Array hops must already exist; setPath will not grow arrays.
// Returns false if the path cannot be written.
func setPath(candidate map[string]any, field string, value any) bool {
	segs := parsePath(field)
	var current any = candidate

	for i, seg := range segs {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		last := i == len(segs)-1

		if seg.index < 0 {
			if last {
				m[seg.key] = value
				return true
			}
			next, exists := m[seg.key]
			if !exists || next == nil {
				created := make(map[string]any)
				m[seg.key] = created
				current = created
				continue
			}
			current = next
			continue
		}

		arr, ok := m[seg.key].([]any)
		if !ok || seg.index >= len(arr) {
			return false
		}
		if last {
			arr[seg.index] = value
			return true
		}
		current = arr[seg.index]
	}
	return false
}

// clampString trims a string to max or pads it to min, preserving content.
// Padding repeats the pad string; trimming cuts at a rune boundary.
func clampString(s string, min, max int, pad string) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	for len(runes) < min {
		runes = append(runes, []rune(pad)...)
	}
	if len(runes) > max {
		runes = runes[:max]
	}
	return string(runes)
}
