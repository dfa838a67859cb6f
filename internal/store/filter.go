package store

import (
	"strings"
	"time"
)

// Filter expressions use the store's formula language.

// MaxIDsPerQuery caps the ids one RecordIDIn filter names. Filters travel in
// the query string, and the store rejects URLs past roughly 16k characters.
const MaxIDsPerQuery = 100

// ChunkIDs splits ids into runs of at most MaxIDsPerQuery, preserving order.
func ChunkIDs(ids []string) [][]string {
	var out [][]string
	for len(ids) > MaxIDsPerQuery {
		out = append(out, ids[:MaxIDsPerQuery:MaxIDsPerQuery])
		ids = ids[MaxIDsPerQuery:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func RecordIDIn(ids []string) string {
	if len(ids) == 0 {
		return "FALSE()"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "RECORD_ID()=" + quote(id)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "OR(" + strings.Join(parts, ",") + ")"
}

func FieldIs(field string, value bool) string {
	if value {
		return "{" + field + "}=TRUE()"
	}
	return "NOT({" + field + "})"
}

func FieldEquals(field, value string) string {
	return "{" + field + "}=" + quote(value)
}

func OnOrAfter(field string, t time.Time) string {
	return "NOT(IS_BEFORE({" + field + "}," + quote(t.UTC().Format(time.RFC3339)) + "))"
}

func SameInstant(field string, t time.Time) string {
	return "IS_SAME({" + field + "}," + quote(t.UTC().Format(time.RFC3339)) + ",'second')"
}

func HasValue(field, value string) string {
	return "FIND(" + quote(value) + ",ARRAYJOIN({" + field + "}))"
}

func And(exprs ...string) string {
	return join("AND", exprs)
}

func Or(exprs ...string) string {
	return join("OR", exprs)
}

func join(op string, exprs []string) string {
	kept := exprs[:0:0]
	for _, e := range exprs {
		if e != "" {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	}
	return op + "(" + strings.Join(kept, ",") + ")"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}
