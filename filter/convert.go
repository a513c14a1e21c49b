package filter

import (
	"strconv"
	"strings"
	"time"
)

// toStringSafe coerces an untrusted decoded JSON scalar into a string.
// Strings pass through; numbers are formatted. Anything else yields
// ("", false).
func toStringSafe(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// toTimestampSafe coerces an untrusted value into an epoch-millisecond
// timestamp. Numbers are taken as epoch millis; strings are parsed as
// RFC 3339. Anything else yields (0, false).
func toTimestampSafe(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return int64(val), true
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return 0, false
		}
		return t.UnixMilli(), true
	default:
		return 0, false
	}
}

// toBool returns the value when it is a JSON boolean.
func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// toStringSlice collects the valid, trimmed, non-empty, deduplicated string
// members of an untrusted array. Returns nil when v is not an array.
func toStringSlice(v any, keep func(string) bool) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := toStringSafe(item)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || (keep != nil && !keep(s)) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
