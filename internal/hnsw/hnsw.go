// Package hnsw implements a Hierarchical Navigable Small World index,
// generalized from a single flat index into one graph per noun type
// (see TypeIndex in typeindex.go). The core algorithm — level
// assignment, layered greedy search, and the diversity-preserving
// neighbor-selection heuristic — follows the standard HNSW construction
// directly.
package hnsw

import (
	"container/heap"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// ErrNodeExists is returned by Insert when the ID is already present.
var ErrNodeExists = errors.New("hnsw: node already exists")

// ErrNodeNotFound is returned by Delete for an unknown ID.
var ErrNodeNotFound = errors.New("hnsw: node not found")

// Kernel computes a distance between two vectors; smaller is closer.
type Kernel func(a, b []float32) (float32, error)

// Node is one vertex of the graph, serialized with encoding/gob when
// the index is persisted through a storage adapter.
type Node struct {
	ID        string
	Vector    []float32
	Level     int
	Neighbors [][]string // neighbor IDs at each level, 0 = base layer
	Deleted   bool
}

// HNSW is a single type's proximity graph.
type HNSW struct {
	M              int
	MaxM           int
	EfConstruction int
	efSearch       int

	mu         sync.RWMutex
	nodes      map[string]*Node
	entryPoint string
	dist       Kernel
	rng        *rand.Rand
}

// New returns an empty HNSW graph. M bounds per-layer degree (base layer
// uses 2*M), efConstruction bounds the candidate list built during
// insertion, and efSearch is the default candidate-list size for Search
// when the caller does not override it.
func New(m, efConstruction, efSearch int, dist Kernel) *HNSW {
	return &HNSW{
		M:              m,
		MaxM:           m * 2,
		EfConstruction: efConstruction,
		efSearch:       efSearch,
		nodes:          make(map[string]*Node),
		dist:           dist,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *HNSW) calcDistance(query []float32, n *Node) float32 {
	d, err := h.dist(query, n.Vector)
	if err != nil {
		return float32(math.MaxFloat32)
	}
	return d
}

// selectLevel draws a node's top level with exponential decay (50% per
// level, capped at 16 to bound worst-case fan-out).
func (h *HNSW) selectLevel() int {
	level := 0
	for h.rng.Float64() < 0.5 && level < 16 {
		level++
	}
	return level
}

// Insert adds vector under id. Ties at equal distance during neighbor
// selection break by ID. The node's top layer is drawn at random, so
// repeated inserts of identical vectors do not always produce the same
// graph.
func (h *HNSW) Insert(id string, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrNodeExists, id)
	}

	level := h.selectLevel()
	node := &Node{ID: id, Vector: vector, Level: level, Neighbors: make([][]string, level+1)}
	for i := range node.Neighbors {
		node.Neighbors[i] = make([]string, 0)
	}
	h.nodes[id] = node

	if h.entryPoint == "" {
		h.entryPoint = id
		return nil
	}

	currNearest := []string{h.entryPoint}
	entryNode := h.nodes[h.entryPoint]
	for lc := entryNode.Level; lc > level; lc-- {
		currNearest = h.searchLayerClosest(vector, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		m := h.M
		if lc == 0 {
			m = h.MaxM
		}

		candidates := h.searchLayer(vector, currNearest, h.EfConstruction, lc)
		neighbors := h.selectNeighborsHeuristic(vector, candidates, m)

		node.Neighbors[lc] = neighbors
		for _, neighbor := range neighbors {
			h.addConnection(neighbor, id, lc)

			neighborNode := h.nodes[neighbor]
			maxConn := h.M
			if lc == 0 {
				maxConn = h.MaxM
			}
			if lc < len(neighborNode.Neighbors) && len(neighborNode.Neighbors[lc]) > maxConn {
				neighborNode.Neighbors[lc] = h.selectNeighborsHeuristic(neighborNode.Vector, neighborNode.Neighbors[lc], maxConn)
			}
		}
		currNearest = neighbors
	}

	if level > h.nodes[h.entryPoint].Level {
		h.entryPoint = id
	}
	return nil
}

func (h *HNSW) searchLayer(query []float32, entryPoints []string, ef int, layer int) []string {
	visited := make(map[string]bool)
	candidates := &distHeap{}
	dynamicList := &distHeap{}

	for _, point := range entryPoints {
		n, ok := h.nodes[point]
		if !ok {
			continue
		}
		dist := h.calcDistance(query, n)
		heap.Push(candidates, &heapItem{id: point, dist: dist})
		heap.Push(dynamicList, &heapItem{id: point, dist: -dist})
		visited[point] = true
	}

	for candidates.Len() > 0 {
		if dynamicList.Len() > 0 {
			lowerBound := (*candidates)[0].dist
			if lowerBound > -(*dynamicList)[0].dist {
				break
			}
		}

		current := heap.Pop(candidates).(*heapItem)
		currentNode, ok := h.nodes[current.id]
		if !ok || layer >= len(currentNode.Neighbors) {
			continue
		}

		for _, neighbor := range currentNode.Neighbors[layer] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			neighborNode, ok := h.nodes[neighbor]
			if !ok {
				continue
			}
			dist := h.calcDistance(query, neighborNode)
			if dynamicList.Len() < ef || dist < -(*dynamicList)[0].dist {
				heap.Push(candidates, &heapItem{id: neighbor, dist: dist})
				heap.Push(dynamicList, &heapItem{id: neighbor, dist: -dist})
				if dynamicList.Len() > ef {
					heap.Pop(dynamicList)
				}
			}
		}
	}

	result := make([]string, 0, dynamicList.Len())
	for dynamicList.Len() > 0 {
		result = append(result, heap.Pop(dynamicList).(*heapItem).id)
	}
	for i := 0; i < len(result)/2; i++ {
		result[i], result[len(result)-1-i] = result[len(result)-1-i], result[i]
	}
	return result
}

func (h *HNSW) searchLayerClosest(query []float32, entryPoints []string, num int, layer int) []string {
	candidates := h.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

// selectNeighborsHeuristic picks up to m candidates, preferring a
// diverse spread over raw nearest-first packing: a candidate is skipped
// if it is closer to an already-selected neighbor than it is to the
// query, which avoids clustering all edges on one side of the node.
func (h *HNSW) selectNeighborsHeuristic(query []float32, candidates []string, m int) []string {
	type distPair struct {
		id   string
		dist float32
	}
	pairs := make([]distPair, 0, len(candidates))
	for _, c := range candidates {
		n, ok := h.nodes[c]
		if !ok {
			continue
		}
		pairs = append(pairs, distPair{id: c, dist: h.calcDistance(query, n)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].dist == pairs[j].dist {
			return pairs[i].id < pairs[j].id
		}
		return pairs[i].dist < pairs[j].dist
	})

	selected := make([]string, 0, m)
	for _, p := range pairs {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			sNode := h.nodes[s]
			distToSelected := h.calcDistance(h.nodes[p.id].Vector, sNode)
			if distToSelected < p.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, p.id)
		}
	}
	// Degree bound is never exceeded: if the diversity heuristic rejects
	// too many candidates, backfill with the remaining nearest ones.
	if len(selected) < m {
		have := make(map[string]bool, len(selected))
		for _, s := range selected {
			have[s] = true
		}
		for _, p := range pairs {
			if len(selected) >= m {
				break
			}
			if !have[p.id] {
				selected = append(selected, p.id)
			}
		}
	}
	return selected
}

func (h *HNSW) addConnection(from, to string, layer int) {
	fromNode, exists := h.nodes[from]
	if !exists || layer >= len(fromNode.Neighbors) {
		return
	}
	for _, n := range fromNode.Neighbors[layer] {
		if n == to {
			return
		}
	}
	fromNode.Neighbors[layer] = append(fromNode.Neighbors[layer], to)
}

// Result is one scored hit from Search.
type Result struct {
	ID       string
	Distance float32
}

// Search returns up to k nearest non-deleted neighbors of query. ef
// overrides the index's configured efSearch when positive.
func (h *HNSW) Search(query []float32, k, ef int) []Result {
	return h.SearchFiltered(query, k, ef, nil)
}

// SearchFiltered behaves like Search but only accepts candidates for
// which accept returns true (a nil accept matches everything). When the
// accepted result set comes back shorter than k, ef is doubled and the
// search retried against a fresh, wider candidate list, up to a few
// rounds capped at the graph's node count — the fallback-widen-ef rule
// for filter-aware expanding search.
func (h *HNSW) SearchFiltered(query []float32, k, ef int, accept func(id string) bool) []Result {
	h.mu.RLock()
	if ef <= 0 {
		ef = h.efSearch
	}
	total := len(h.nodes)
	h.mu.RUnlock()
	if ef < k {
		ef = k
	}

	const maxRounds = 4
	var results []Result
	for round := 0; round < maxRounds; round++ {
		results = h.searchOnce(query, k, ef, accept)
		if len(results) >= k || ef >= total {
			break
		}
		ef *= 2
		if ef > total {
			ef = total
		}
	}
	return results
}

func (h *HNSW) searchOnce(query []float32, k, ef int, accept func(id string) bool) []Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == "" {
		return nil
	}

	entryNode := h.nodes[h.entryPoint]
	currNearest := []string{h.entryPoint}
	for layer := entryNode.Level; layer > 0; layer-- {
		currNearest = h.searchLayerClosest(query, currNearest, 1, layer)
	}

	candidates := h.searchLayer(query, currNearest, ef, 0)

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		n, ok := h.nodes[c]
		if !ok || n.Deleted {
			continue
		}
		if accept != nil && !accept(c) {
			continue
		}
		results = append(results, Result{ID: c, Distance: h.calcDistance(query, n)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].ID < results[j].ID
		}
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Delete soft-deletes id: the node stays in the graph (still traversed
// by other nodes' searches) but Search filters it from results, and a
// new entry point is chosen if needed.
func (h *HNSW) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, exists := h.nodes[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Deleted = true

	if h.entryPoint == id {
		h.entryPoint = h.pickEntryPointLocked(id)
	}
	return nil
}

// HardDelete permanently removes id: it is unlinked from every neighbor's
// adjacency list at every layer it participated in, then dropped from
// the node table outright. Unlike Delete, the node's memory footprint
// does not persist and it is never re-serialized by Save.
func (h *HNSW) HardDelete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, exists := h.nodes[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if h.entryPoint == id {
		h.entryPoint = h.pickEntryPointLocked(id)
	}

	for layer, neighbors := range node.Neighbors {
		for _, neighborID := range neighbors {
			neighborNode, ok := h.nodes[neighborID]
			if !ok || layer >= len(neighborNode.Neighbors) {
				continue
			}
			neighborNode.Neighbors[layer] = removeID(neighborNode.Neighbors[layer], id)
		}
	}

	delete(h.nodes, id)
	return nil
}

// pickEntryPointLocked returns the surviving, non-deleted node (other
// than exclude) with the highest level, breaking ties by the smallest
// ID so entry-point reassignment is deterministic. Callers must already
// hold h.mu.
func (h *HNSW) pickEntryPointLocked(exclude string) string {
	best := ""
	bestLevel := -1
	for nodeID, n := range h.nodes {
		if nodeID == exclude || n.Deleted {
			continue
		}
		if n.Level > bestLevel || (n.Level == bestLevel && nodeID < best) {
			best = nodeID
			bestLevel = n.Level
		}
	}
	return best
}

// removeID returns ids with every occurrence of target removed,
// reusing the backing array.
func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// Size returns the count of non-deleted nodes.
func (h *HNSW) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, n := range h.nodes {
		if !n.Deleted {
			count++
		}
	}
	return count
}

// Save serializes the graph with encoding/gob.
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	enc := gob.NewEncoder(w)
	if err := enc.Encode(h.M); err != nil {
		return err
	}
	if err := enc.Encode(h.EfConstruction); err != nil {
		return err
	}
	if err := enc.Encode(h.efSearch); err != nil {
		return err
	}
	if err := enc.Encode(h.entryPoint); err != nil {
		return err
	}
	if err := enc.Encode(len(h.nodes)); err != nil {
		return err
	}
	for _, node := range h.nodes {
		if err := enc.Encode(node); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the graph's contents by deserializing from r.
func (h *HNSW) Load(r io.Reader) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	dec := gob.NewDecoder(r)
	if err := dec.Decode(&h.M); err != nil {
		return err
	}
	h.MaxM = h.M * 2
	if err := dec.Decode(&h.EfConstruction); err != nil {
		return err
	}
	if err := dec.Decode(&h.efSearch); err != nil {
		return err
	}
	if err := dec.Decode(&h.entryPoint); err != nil {
		return err
	}
	var count int
	if err := dec.Decode(&count); err != nil {
		return err
	}
	h.nodes = make(map[string]*Node, count)
	for i := 0; i < count; i++ {
		var node Node
		if err := dec.Decode(&node); err != nil {
			return err
		}
		h.nodes[node.ID] = &node
	}
	return nil
}

type heapItem struct {
	id   string
	dist float32
}

type distHeap []*heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
