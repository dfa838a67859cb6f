package store

import (
	"encoding/json"
	"strconv"
	"time"
)

// Record is one row of the external store: an id plus a loosely typed field map.
// Values decoded from JSON are float64, string, bool, []any or map[string]any.
type Record struct {
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

func (r Record) String(field string) string {
	switch v := r.Fields[field].(type) {
	case string:
		return v
	case []any:
		// lookup fields arrive as single-element arrays
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func (r Record) Int(field string) int {
	switch v := r.Fields[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case []any:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return int(f)
			}
		}
	}
	return 0
}

// IntPtr is Int for optional numeric fields; nil when the field is absent.
func (r Record) IntPtr(field string) *int {
	if _, ok := r.Fields[field]; !ok {
		return nil
	}
	n := r.Int(field)
	return &n
}

func (r Record) Bool(field string) bool {
	b, _ := r.Fields[field].(bool)
	return b
}

func (r Record) Strings(field string) []string {
	switch v := r.Fields[field].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Time parses an ISO-8601 instant. The second result is false when the field
// is missing or malformed.
func (r Record) Time(field string) (time.Time, bool) {
	var s string
	switch v := r.Fields[field].(type) {
	case string:
		s = v
	case time.Time:
		return v, !v.IsZero()
	case []any:
		if len(v) > 0 {
			s, _ = v[0].(string)
		}
	}
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
