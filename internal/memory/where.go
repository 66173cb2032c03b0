package memory

import (
	"fmt"
	"strings"
	"time"
)

// equalValues compares two row values for equality, normalizing the
// date/JSON representations an adapter may hand back (time.Time vs.
// RFC3339 string, numeric vs. string ids) so callers never have to care
// which concrete adapter produced the row.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		if bs, ok := b.(string); ok {
			bt, err := time.Parse(time.RFC3339Nano, bs)
			return err == nil && at.Equal(bt)
		}
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func stringContains(actual, value any, test func(s, sub string) bool) bool {
	s, ok := actual.(string)
	if !ok {
		return false
	}
	sub, ok := value.(string)
	if !ok {
		return false
	}
	return test(s, sub)
}

func stringIndex(s, sub string) int {
	return strings.Index(s, sub)
}

func hasPrefix(s, sub string) bool {
	return strings.HasPrefix(s, sub)
}

func hasSuffix(s, sub string) bool {
	return strings.HasSuffix(s, sub)
}

// compareOrdered compares two values that support ordering: time.Time,
// any numeric kind (compared as float64), or string (lexicographic).
func compareOrdered(a, b any) (int, bool) {
	if at, ok := a.(time.Time); ok {
		bt, ok := toTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), true
		}
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
