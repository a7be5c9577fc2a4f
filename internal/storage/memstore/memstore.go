// Package memstore implements storage.Adapter entirely in process memory.
// It is the zero-configuration backend: every write is a map assignment
// under an exclusive lock, so it is trivially atomic at entity granularity.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/brainy/brainy/internal/storage"
)

// Store is an in-memory storage.Adapter implementation.
type Store struct {
	mu sync.RWMutex

	nouns    map[string][]byte // partition/id -> data
	verbs    map[string][]byte
	metadata map[string][]byte
	stats    map[string][]byte
	changes  []storage.ChangeEntry
	seq      uint64

	// secondary indexes kept for the verb lookups the interface requires;
	// updated on every SaveVerb and DeleteVerb, which is cheap at
	// in-memory scale.
	verbsBySource map[string][]string // sourceID -> verb keys
	verbsByTarget map[string][]string
	verbsByType   map[string][]string
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		nouns:         make(map[string][]byte),
		verbs:         make(map[string][]byte),
		metadata:      make(map[string][]byte),
		stats:         make(map[string][]byte),
		verbsBySource: make(map[string][]string),
		verbsByTarget: make(map[string][]string),
		verbsByType:   make(map[string][]string),
	}
}

func key(partition, id string) string { return partition + "/" + id }

func (s *Store) Init(ctx context.Context) error { return nil }

func (s *Store) SaveNoun(ctx context.Context, partition, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), data...)
	s.nouns[key(partition, id)] = cp
	return nil
}

func (s *Store) GetNoun(ctx context.Context, partition, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.nouns[key(partition, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) DeleteNoun(ctx context.Context, partition, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nouns, key(partition, id))
	return nil
}

func (s *Store) GetNouns(ctx context.Context, opts storage.ListOptions) (storage.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.nouns))
	for k := range s.nouns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return paginate(keys, opts, func(k string) []byte { return s.nouns[k] }), nil
}

func (s *Store) SaveVerb(ctx context.Context, partition, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(partition, id)
	s.verbs[k] = append([]byte(nil), data...)
	idx, ok := decodeVerbIndex(data)
	if ok {
		s.verbsBySource[idx.source] = appendUnique(s.verbsBySource[idx.source], k)
		s.verbsByTarget[idx.target] = appendUnique(s.verbsByTarget[idx.target], k)
		s.verbsByType[idx.verbType] = appendUnique(s.verbsByType[idx.verbType], k)
	}
	return nil
}

func (s *Store) GetVerb(ctx context.Context, partition, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.verbs[key(partition, id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) GetVerbsBySource(ctx context.Context, sourceID string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectVerbs(s.verbsBySource[sourceID]), nil
}

func (s *Store) GetVerbsByTarget(ctx context.Context, targetID string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectVerbs(s.verbsByTarget[targetID]), nil
}

func (s *Store) GetVerbsByType(ctx context.Context, verbType string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectVerbs(s.verbsByType[verbType]), nil
}

func (s *Store) collectVerbs(keys []string) [][]byte {
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if data, ok := s.verbs[k]; ok {
			out = append(out, append([]byte(nil), data...))
		}
	}
	return out
}

func (s *Store) DeleteVerb(ctx context.Context, partition, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(partition, id)
	data, ok := s.verbs[k]
	if !ok {
		return nil
	}
	delete(s.verbs, k)
	if idx, ok := decodeVerbIndex(data); ok {
		s.verbsBySource[idx.source] = removeValue(s.verbsBySource[idx.source], k)
		s.verbsByTarget[idx.target] = removeValue(s.verbsByTarget[idx.target], k)
		s.verbsByType[idx.verbType] = removeValue(s.verbsByType[idx.verbType], k)
	}
	return nil
}

func (s *Store) SaveMetadata(ctx context.Context, mkey string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[mkey] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, mkey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.metadata[mkey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) AppendChange(ctx context.Context, e storage.ChangeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Sequence = s.seq
	s.changes = append(s.changes, e)
	return nil
}

func (s *Store) GetChangesSince(ctx context.Context, t time.Time) ([]storage.ChangeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ChangeEntry, 0)
	for _, e := range s.changes {
		if e.Timestamp.After(t) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) CompactChangesBefore(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.changes[:0]
	for _, e := range s.changes {
		if !e.Timestamp.Before(t) {
			kept = append(kept, e)
		}
	}
	s.changes = kept
	return nil
}

func (s *Store) SaveStatistics(ctx context.Context, day string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[day] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetStatistics(ctx context.Context, day string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.stats[day]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) GetStorageStatus(ctx context.Context) (storage.Status, error) {
	return storage.Status{Healthy: true, Detail: "memory"}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nouns = make(map[string][]byte)
	s.verbs = make(map[string][]byte)
	s.metadata = make(map[string][]byte)
	s.stats = make(map[string][]byte)
	s.changes = nil
	s.verbsBySource = make(map[string][]string)
	s.verbsByTarget = make(map[string][]string)
	s.verbsByType = make(map[string][]string)
	return nil
}

func paginate(keys []string, opts storage.ListOptions, fetch func(string) []byte) storage.Page {
	start := 0
	if opts.Cursor != "" {
		for i, k := range keys {
			if k > opts.Cursor {
				start = i
				break
			}
			start = i + 1
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = len(keys) - start
	}
	end := start + limit
	if end > len(keys) {
		end = len(keys)
	}
	if start > len(keys) {
		start = len(keys)
	}

	items := make([]storage.Record, 0, end-start)
	for _, k := range keys[start:end] {
		items = append(items, storage.Record{ID: k, Data: append([]byte(nil), fetch(k)...)})
	}

	var cursor string
	hasMore := end < len(keys)
	if hasMore {
		cursor = keys[end-1]
	}

	return storage.Page{
		Items: items,
		Pagination: storage.Pagination{
			Cursor:  cursor,
			Limit:   limit,
			Total:   len(keys),
			HasMore: hasMore,
		},
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func removeValue(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
