// Package graph maintains the in-memory adjacency bookkeeping over verbs
// (bySource/byTarget/byType) and bounded BFS traversal, as a pure
// in-memory index kept in sync by the root store as verbs are added and
// removed.
package graph

import "sync"

// Edge is the minimal verb shape the graph needs for adjacency and
// traversal; it deliberately omits vector/metadata fields the root
// Verb type carries, to keep this package domain-agnostic.
type Edge struct {
	ID       string
	Source   string
	Target   string
	VerbType string
	Weight   float64
}

// Graph holds directed adjacency over a set of edges.
type Graph struct {
	mu sync.RWMutex

	edges     map[string]Edge    // edge ID -> edge
	bySource  map[string][]string // nounID -> edge IDs where it is Source
	byTarget  map[string][]string // nounID -> edge IDs where it is Target
	byType    map[string][]string // verbType -> edge IDs
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		edges:    make(map[string]Edge),
		bySource: make(map[string][]string),
		byTarget: make(map[string][]string),
		byType:   make(map[string][]string),
	}
}

// AddEdge inserts or replaces e, maintaining all three adjacency indexes.
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, exists := g.edges[e.ID]; exists {
		g.removeFromIndex(old)
	}
	g.edges[e.ID] = e
	g.bySource[e.Source] = appendUnique(g.bySource[e.Source], e.ID)
	g.byTarget[e.Target] = appendUnique(g.byTarget[e.Target], e.ID)
	g.byType[e.VerbType] = appendUnique(g.byType[e.VerbType], e.ID)
}

// RemoveEdge deletes the edge with id, if present.
func (g *Graph) RemoveEdge(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, exists := g.edges[id]
	if !exists {
		return
	}
	delete(g.edges, id)
	g.removeFromIndex(e)
}

func (g *Graph) removeFromIndex(e Edge) {
	g.bySource[e.Source] = removeValue(g.bySource[e.Source], e.ID)
	g.byTarget[e.Target] = removeValue(g.byTarget[e.Target], e.ID)
	g.byType[e.VerbType] = removeValue(g.byType[e.VerbType], e.ID)
}

// RemoveNoun deletes every edge touching id, cascading the graph-side
// effects of a noun delete (it does not touch verb storage, which the
// root store handles separately).
func (g *Graph) RemoveNoun(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	touched := append(append([]string{}, g.bySource[id]...), g.byTarget[id]...)
	removed := make(map[string]bool)
	for _, edgeID := range touched {
		if removed[edgeID] {
			continue
		}
		removed[edgeID] = true
		if e, ok := g.edges[edgeID]; ok {
			delete(g.edges, edgeID)
			g.removeFromIndex(e)
		}
	}
	out := make([]string, 0, len(removed))
	for id := range removed {
		out = append(out, id)
	}
	return out
}

// EdgesFrom returns every edge with Source == id.
func (g *Graph) EdgesFrom(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.bySource[id])
}

// EdgesTo returns every edge with Target == id.
func (g *Graph) EdgesTo(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.byTarget[id])
}

// EdgesOfType returns every edge with VerbType == verbType.
func (g *Graph) EdgesOfType(verbType string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.byType[verbType])
}

func (g *Graph) collect(ids []string) []Edge {
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := g.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
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
