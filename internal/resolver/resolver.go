// Package resolver turns foreign-key id arrays into display values by querying
// the referenced table once per parent collection.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/store"
)

// Placeholder is shown for ids that the target table does not contain.
const Placeholder = "Unknown"

type Fetcher interface {
	FetchRows(ctx context.Context, cred auth.Credential, table string, q store.Query) ([]store.Record, error)
}

// Resolver maps ids of one table to the value of one display field.
type Resolver struct {
	fetcher Fetcher
	table   string
	field   string
	log     *zerolog.Logger
}

func New(fetcher Fetcher, table, displayField string, log *zerolog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, table: table, field: displayField, log: log}
}

// Resolve looks up exactly ids and returns an id -> display value map. Id sets
// larger than store.MaxIDsPerQuery are fetched in several calls.
//
// Only ids that exist in the table appear in the result; callers treat a
// missing key as unresolved. If the lookup fails the error is returned and no
// map is produced, so callers never render a partially enriched collection.
func (r *Resolver) Resolve(ctx context.Context, cred auth.Credential, ids []string) (map[string]string, error) {
	ids = dedupe(ids)
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var recs []store.Record
	for _, chunk := range store.ChunkIDs(ids) {
		page, err := r.fetcher.FetchRows(ctx, cred, r.table, store.Query{
			Filter: store.RecordIDIn(chunk),
			Fields: []string{r.field},
		})
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r.table, err)
		}
		recs = append(recs, page...)
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for _, rec := range recs {
		if _, ok := wanted[rec.ID]; !ok {
			continue
		}
		out[rec.ID] = rec.String(r.field)
	}

	if missing := len(ids) - len(out); missing > 0 {
		r.log.Debug().
			Str("table", r.table).
			Int("requested", len(ids)).
			Int("unresolved", missing).
			Msg("some references did not resolve")
	}
	return out, nil
}

// CollectIDs returns the sorted, de-duplicated union of the ids referenced by
// rows.
func CollectIDs[T any](rows []T, refs func(T) []string) []string {
	var all []string
	for _, row := range rows {
		all = append(all, refs(row)...)
	}
	return dedupe(all)
}

// Names maps ids through resolved in order, substituting Placeholder for
// unresolved ids.
func Names(resolved map[string]string, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := resolved[id]
		if !ok {
			name = Placeholder
		}
		out = append(out, name)
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
