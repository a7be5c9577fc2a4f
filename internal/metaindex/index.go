package metaindex

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/brainy/brainy/internal/storage"
)

// indexKeyPrefix namespaces reserved metadata keys used to persist the
// (field, value) -> set<nounID> secondary index.
const indexKeyPrefix = "__index__."

// Index accelerates equality lookups over noun metadata. It indexes every
// top-level-or-dotted field added via Add, keyed by the value's string
// form (strings as-is, any other value, arrays and booleans included, as
// its JSON text); other filter operators (gt/lt/contains/...) fall back
// to a full scan scored with Evaluate.
type Index struct {
	mu      sync.RWMutex
	adapter storage.Adapter

	// field -> value (stringified) -> set of noun IDs
	entries map[string]map[string]map[string]struct{}
}

// New returns an Index backed by adapter. Call Rebuild before relying
// on Lookup.
func New(adapter storage.Adapter) *Index {
	return &Index{adapter: adapter, entries: make(map[string]map[string]map[string]struct{})}
}

func indexKey(field, value string) string {
	return indexKeyPrefix + field + "." + value
}

// Add records that noun id has field=value in its metadata.
func (idx *Index) Add(field string, value any, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	v := stringify(value)
	byValue, ok := idx.entries[field]
	if !ok {
		byValue = make(map[string]map[string]struct{})
		idx.entries[field] = byValue
	}
	set, ok := byValue[v]
	if !ok {
		set = make(map[string]struct{})
		byValue[v] = set
	}
	set[id] = struct{}{}
}

// Remove undoes a prior Add for the same (field, value, id).
func (idx *Index) Remove(field string, value any, id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	v := stringify(value)
	if byValue, ok := idx.entries[field]; ok {
		if set, ok := byValue[v]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(byValue, v)
			}
		}
	}
}

// Lookup returns every noun ID indexed under field=value.
func (idx *Index) Lookup(field string, value any) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v := stringify(value)
	set, ok := idx.entries[field][v]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IndexMetadata walks flattenable top-level metadata fields for id and
// records every non-object value in the index. Nested objects are flattened
// with dotted keys, matching the filter grammar's field addressing.
func (idx *Index) IndexMetadata(id string, metadata map[string]any) {
	for field, value := range flatten("", metadata) {
		idx.Add(field, value, id)
	}
}

// UnindexMetadata removes every entry IndexMetadata would have added.
func (idx *Index) UnindexMetadata(id string, metadata map[string]any) {
	for field, value := range flatten("", metadata) {
		idx.Remove(field, value, id)
	}
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		field := k
		if prefix != "" {
			field = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(field, nested) {
				out[nk] = nv
			}
			continue
		}
		out[field] = v
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Persist saves the current in-memory index to the storage adapter under
// reserved metadata keys, one per (field, value) pair.
func (idx *Index) Persist(ctx context.Context) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for field, byValue := range idx.entries {
		for value, set := range byValue {
			ids := make([]string, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			data, err := json.Marshal(ids)
			if err != nil {
				continue
			}
			if err := idx.adapter.SaveMetadata(ctx, indexKey(field, value), data); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rebuild clears the in-memory index and repopulates it from a full scan
// of every noun, via the fetch callback (the root store knows how to
// decode Noun.Metadata; this package stays storage/noun-agnostic).
func (idx *Index) Rebuild(ctx context.Context, fetch func(ctx context.Context) (map[string]map[string]any, error)) error {
	all, err := fetch(ctx)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.entries = make(map[string]map[string]map[string]struct{})
	idx.mu.Unlock()
	for id, metadata := range all {
		idx.IndexMetadata(id, metadata)
	}
	return nil
}

// IsReservedKey reports whether a metadata storage key belongs to the
// index's own namespace, so callers iterating raw metadata keys can
// exclude index bookkeeping from user-visible results.
func IsReservedKey(key string) bool {
	return strings.HasPrefix(key, indexKeyPrefix)
}
