package hnsw

import (
	"bytes"
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config bounds every graph a TypeIndex lazily creates.
type Config struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// TypeIndex is a set of independent HNSW graphs, one per noun type,
// created lazily on first insert so that rarely-used types never pay
// for an empty graph's bookkeeping. Each graph is guarded by its own
// lock (inherited from HNSW), so inserts into one type never block
// searches against another.
type TypeIndex struct {
	mu     sync.RWMutex
	graphs map[string]*HNSW
	cfg    Config
	dist   Kernel

	// coldStartCache remembers each vector RebuildFromNouns inserts, so
	// an ID that comes up again in the same pass reuses the remembered
	// vector. RebuildFromNouns clears it when it starts.
	coldStartCache *lru.Cache[string, []float32]
}

// NewTypeIndex returns an empty TypeIndex.
func NewTypeIndex(cfg Config, dist Kernel) *TypeIndex {
	cache, _ := lru.New[string, []float32](1024)
	return &TypeIndex{graphs: make(map[string]*HNSW), cfg: cfg, dist: dist, coldStartCache: cache}
}

func (t *TypeIndex) graphFor(typeKey string, create bool) *HNSW {
	t.mu.RLock()
	g, ok := t.graphs[typeKey]
	t.mu.RUnlock()
	if ok || !create {
		return g
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.graphs[typeKey]; ok {
		return g
	}
	g = New(t.cfg.M, t.cfg.EfConstruction, t.cfg.EfSearch, t.dist)
	t.graphs[typeKey] = g
	return g
}

// Insert adds vector under id to the graph for typeKey, creating that
// graph on first use.
func (t *TypeIndex) Insert(typeKey, id string, vector []float32) error {
	return t.graphFor(typeKey, true).Insert(id, vector)
}

// Search returns up to k nearest neighbors within typeKey's graph. It
// returns nil without error if the type has never been indexed.
func (t *TypeIndex) Search(typeKey string, query []float32, k, ef int) []Result {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return nil
	}
	return g.Search(query, k, ef)
}

// SearchFiltered runs a filter-aware expanding search within typeKey's
// graph: only candidates accepted by accept are returned, and ef widens
// and retries when the accepted set comes back short of k. It returns
// nil without error if the type has never been indexed.
func (t *TypeIndex) SearchFiltered(typeKey string, query []float32, k, ef int, accept func(id string) bool) []Result {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return nil
	}
	return g.SearchFiltered(query, k, ef, accept)
}

// Delete soft-deletes id within typeKey's graph.
func (t *TypeIndex) Delete(typeKey, id string) error {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return ErrNodeNotFound
	}
	return g.Delete(id)
}

// HardDelete permanently removes id from typeKey's graph: unlinked from
// every neighbor's adjacency list and dropped from the node table, so it
// never persists through SaveType.
func (t *TypeIndex) HardDelete(typeKey, id string) error {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return ErrNodeNotFound
	}
	return g.HardDelete(id)
}

// ActiveTypes returns every type key with at least one indexed node,
// sorted for deterministic iteration.
func (t *TypeIndex) ActiveTypes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.graphs))
	for k, g := range t.graphs {
		if g.Size() > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Size returns the node count for typeKey's graph, or 0 if unindexed.
func (t *TypeIndex) Size(typeKey string) int {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return 0
	}
	return g.Size()
}

// SaveType serializes typeKey's graph to bytes via encoding/gob, for the
// caller to persist through a storage.Adapter's metadata slot.
func (t *TypeIndex) SaveType(typeKey string) ([]byte, error) {
	g := t.graphFor(typeKey, false)
	if g == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadType replaces typeKey's graph with the contents of data.
func (t *TypeIndex) LoadType(typeKey string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	g := t.graphFor(typeKey, true)
	return g.Load(bytes.NewReader(data))
}

// CacheVector remembers id's vector for the duration of a cold-start
// rebuild; the next RebuildFromNouns clears it.
func (t *TypeIndex) CacheVector(id string, vector []float32) {
	t.coldStartCache.Add(id, vector)
}

// CachedVector returns a vector remembered via CacheVector.
func (t *TypeIndex) CachedVector(id string) ([]float32, bool) {
	return t.coldStartCache.Get(id)
}

// RebuildFromNouns reinserts every (typeKey, id, vector) yielded by fetch
// into fresh graphs, replacing whatever was indexed before. Used to
// recover from a missing or corrupt persisted graph.
func (t *TypeIndex) RebuildFromNouns(ctx context.Context, fetch func(ctx context.Context) (map[string][]NounVector, error)) error {
	byType, err := fetch(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.graphs = make(map[string]*HNSW)
	t.mu.Unlock()
	t.coldStartCache.Purge()

	for typeKey, nouns := range byType {
		for _, n := range nouns {
			if cached, ok := t.CachedVector(n.ID); ok {
				n.Vector = cached
			} else {
				t.CacheVector(n.ID, n.Vector)
			}
			if err := t.Insert(typeKey, n.ID, n.Vector); err != nil {
				return err
			}
		}
	}
	return nil
}

// NounVector is the minimal (ID, Vector) pair RebuildFromNouns needs;
// kept local to avoid importing the root noun type into this package.
type NounVector struct {
	ID     string
	Vector []float32
}
