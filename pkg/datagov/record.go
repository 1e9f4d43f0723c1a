package datagov

import (
	"strconv"
	"strings"
)

// Record is one raw dataset row. Field names come from the upstream schema
// and are passed through opaquely; the typed accessors below encapsulate the
// default-on-missing behavior so callers never coerce inline.
type Record map[string]any

// String returns the field as a trimmed string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// Number returns the field parsed as a number, or 0 when absent or
// non-numeric. The dataset mixes JSON numbers and numeric strings.
func (r Record) Number(field string) float64 {
	v, ok := r[field]
	if !ok {
		return 0
	}
	n, _ := coerceNumber(v)
	return n
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
