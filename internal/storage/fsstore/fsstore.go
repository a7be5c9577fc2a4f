// Package fsstore implements storage.Adapter over the local filesystem,
// one JSON file per entity, laid out as specified in §4.B:
// nouns/<partition>/<id>.json, verbs/<partition>/<id>.json,
// metadata/<key>.json, index/statistics_<day>.json,
// index/changes/<timestamp>-<seq>.json.
package fsstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brainy/brainy/internal/storage"
)

// Store is a filesystem-backed storage.Adapter.
type Store struct {
	root string
	mu   sync.Mutex // serializes change-log sequence allocation and Clear
	seq  uint64
}

// New returns a Store rooted at root. The directory tree is created lazily
// by Init.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Init(ctx context.Context) error {
	for _, dir := range []string{"nouns", "verbs", "metadata", "index/changes"} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return storage.ErrUnavailable
		}
	}
	return nil
}

// writeAtomic writes data to path via a temp file + rename, so a crash
// mid-write never leaves a torn file (§4.B atomicity contract).
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return storage.ErrUnavailable
	}
	tmp := path + ".tmp-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return storage.ErrUnavailable
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return storage.ErrUnavailable
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.ErrUnavailable
	}
	return data, nil
}

func (s *Store) nounPath(partition, id string) string {
	return filepath.Join(s.root, "nouns", partition, id+".json")
}
func (s *Store) verbPath(partition, id string) string {
	return filepath.Join(s.root, "verbs", partition, id+".json")
}
func (s *Store) metadataPath(mkey string) string {
	return filepath.Join(s.root, "metadata", sanitize(mkey)+".json")
}
func (s *Store) statsPath(day string) string {
	return filepath.Join(s.root, "index", "statistics_"+day+".json")
}

func sanitize(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func (s *Store) SaveNoun(ctx context.Context, partition, id string, data []byte) error {
	return writeAtomic(s.nounPath(partition, id), data)
}

func (s *Store) GetNoun(ctx context.Context, partition, id string) ([]byte, error) {
	return readFile(s.nounPath(partition, id))
}

func (s *Store) DeleteNoun(ctx context.Context, partition, id string) error {
	if err := os.Remove(s.nounPath(partition, id)); err != nil && !os.IsNotExist(err) {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetNouns(ctx context.Context, opts storage.ListOptions) (storage.Page, error) {
	base := filepath.Join(s.root, "nouns")
	var keys []string
	partitions := []string{opts.Partition}
	if opts.Partition == "" {
		entries, err := os.ReadDir(base)
		if err != nil {
			return storage.Page{}, nil
		}
		partitions = partitions[:0]
		for _, e := range entries {
			if e.IsDir() {
				partitions = append(partitions, e.Name())
			}
		}
	}
	for _, p := range partitions {
		entries, err := os.ReadDir(filepath.Join(base, p))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				keys = append(keys, filepath.Join(p, strings.TrimSuffix(e.Name(), ".json")))
			}
		}
	}
	sort.Strings(keys)

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
		parts := strings.SplitN(k, string(filepath.Separator), 2)
		if len(parts) != 2 {
			continue
		}
		data, err := readFile(filepath.Join(base, parts[0], parts[1]+".json"))
		if err != nil {
			continue
		}
		items = append(items, storage.Record{Partition: parts[0], ID: parts[1], Data: data})
	}

	var cursor string
	hasMore := end < len(keys)
	if hasMore {
		cursor = keys[end-1]
	}
	return storage.Page{
		Items:      items,
		Pagination: storage.Pagination{Cursor: cursor, Limit: limit, Total: len(keys), HasMore: hasMore},
	}, nil
}

func (s *Store) SaveVerb(ctx context.Context, partition, id string, data []byte) error {
	return writeAtomic(s.verbPath(partition, id), data)
}

func (s *Store) GetVerb(ctx context.Context, partition, id string) ([]byte, error) {
	return readFile(s.verbPath(partition, id))
}

// scanVerbs walks every verb file; used by the By* lookups. Filesystem
// scale is assumed small enough (embeddable store) that a full scan per
// lookup is acceptable — the sqlite backend indexes these lookups; the
// objectStore backend scans every verb object as well.
func (s *Store) scanVerbs(ctx context.Context, match func(verbIndexFields) bool) ([][]byte, error) {
	base := filepath.Join(s.root, "verbs")
	var out [][]byte
	partitions, err := os.ReadDir(base)
	if err != nil {
		return out, nil
	}
	for _, p := range partitions {
		if !p.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(base, p.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			data, err := readFile(filepath.Join(base, p.Name(), f.Name()))
			if err != nil {
				continue
			}
			var fields verbIndexFields
			if err := json.Unmarshal(data, &fields); err != nil {
				continue
			}
			if match(fields) {
				out = append(out, data)
			}
		}
	}
	return out, nil
}

type verbIndexFields struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Verb   string `json:"verb"`
}

func (s *Store) GetVerbsBySource(ctx context.Context, sourceID string) ([][]byte, error) {
	return s.scanVerbs(ctx, func(f verbIndexFields) bool { return f.Source == sourceID })
}

func (s *Store) GetVerbsByTarget(ctx context.Context, targetID string) ([][]byte, error) {
	return s.scanVerbs(ctx, func(f verbIndexFields) bool { return f.Target == targetID })
}

func (s *Store) GetVerbsByType(ctx context.Context, verbType string) ([][]byte, error) {
	return s.scanVerbs(ctx, func(f verbIndexFields) bool { return f.Verb == verbType })
}

func (s *Store) DeleteVerb(ctx context.Context, partition, id string) error {
	if err := os.Remove(s.verbPath(partition, id)); err != nil && !os.IsNotExist(err) {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) SaveMetadata(ctx context.Context, mkey string, data []byte) error {
	return writeAtomic(s.metadataPath(mkey), data)
}

func (s *Store) GetMetadata(ctx context.Context, mkey string) ([]byte, error) {
	return readFile(s.metadataPath(mkey))
}

func (s *Store) AppendChange(ctx context.Context, e storage.ChangeEntry) error {
	s.mu.Lock()
	s.seq++
	e.Sequence = s.seq
	s.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return storage.ErrUnavailable
	}
	name := strconv.FormatInt(e.Timestamp.UnixNano(), 10) + "-" + strconv.FormatUint(e.Sequence, 10) + ".json"
	return writeAtomic(filepath.Join(s.root, "index", "changes", name), data)
}

func (s *Store) GetChangesSince(ctx context.Context, t time.Time) ([]storage.ChangeEntry, error) {
	dir := filepath.Join(s.root, "index", "changes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	var out []storage.ChangeEntry
	for _, e := range entries {
		data, err := readFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var ce storage.ChangeEntry
		if err := json.Unmarshal(data, &ce); err != nil {
			continue
		}
		if ce.Timestamp.After(t) {
			out = append(out, ce)
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
	dir := filepath.Join(s.root, "index", "changes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		data, err := readFile(path)
		if err != nil {
			continue
		}
		var ce storage.ChangeEntry
		if err := json.Unmarshal(data, &ce); err != nil {
			continue
		}
		if ce.Timestamp.Before(t) {
			_ = os.Remove(path)
		}
	}
	return nil
}

func (s *Store) SaveStatistics(ctx context.Context, day string, data []byte) error {
	return writeAtomic(s.statsPath(day), data)
}

func (s *Store) GetStatistics(ctx context.Context, day string) ([]byte, error) {
	return readFile(s.statsPath(day))
}

func (s *Store) GetStorageStatus(ctx context.Context) (storage.Status, error) {
	if _, err := os.Stat(s.root); err != nil {
		return storage.Status{Healthy: false, Detail: err.Error()}, nil
	}
	return storage.Status{Healthy: true, Detail: s.root}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.root); err != nil {
		return storage.ErrUnavailable
	}
	return s.Init(ctx)
}
