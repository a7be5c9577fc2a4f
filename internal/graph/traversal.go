package graph

// NeighborResult is one node reached during a bounded traversal, along
// with its shortest distance (in edge hops) from the start node.
type NeighborResult struct {
	NounID   string
	Distance int
}

// Neighbors performs a bounded BFS from start, returning every distinct
// noun reached within maxDepth hops (1-indexed: maxDepth=1 returns only
// direct neighbors). verbTypes, if non-empty, restricts which edges are
// followed in either direction.
func (g *Graph) Neighbors(start string, maxDepth int, verbTypes []string) []NeighborResult {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	allowed := toSet(verbTypes)

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{start: true}
	type queued struct {
		id    string
		depth int
	}
	queue := []queued{{start, 0}}
	var out []NeighborResult

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		for _, neighborID := range g.adjacentNouns(cur.id, allowed) {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			out = append(out, NeighborResult{NounID: neighborID, Distance: cur.depth + 1})
			queue = append(queue, queued{neighborID, cur.depth + 1})
		}
	}
	return out
}

// adjacentNouns returns the distinct noun IDs directly connected to id
// via an edge in either direction, filtered by allowed verb types when
// non-empty. Caller must hold g.mu.
func (g *Graph) adjacentNouns(id string, allowed map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, edgeID := range g.bySource[id] {
		e := g.edges[edgeID]
		if len(allowed) > 0 && !allowed[e.VerbType] {
			continue
		}
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	for _, edgeID := range g.byTarget[id] {
		e := g.edges[edgeID]
		if len(allowed) > 0 && !allowed[e.VerbType] {
			continue
		}
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}

// ShortestPathLength returns the hop distance from start to target, or
// -1 if unreachable within maxDepth.
func (g *Graph) ShortestPathLength(start, target string, maxDepth int) int {
	if start == target {
		return 0
	}
	for _, n := range g.Neighbors(start, maxDepth, nil) {
		if n.NounID == target {
			return n.Distance
		}
	}
	return -1
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]bool, len(items))
	for _, i := range items {
		out[i] = true
	}
	return out
}
