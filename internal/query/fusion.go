// Package query implements the triple-intelligence fusion, pagination,
// fingerprinting, and result-caching pieces of the query planner
// (§4.I). It is deliberately decoupled from how candidates are produced
// (HNSW search, graph traversal, metadata filtering): callers assemble
// a []Candidate and hand it to Fuse, so this package has no dependency
// on the root entity types and no import-cycle risk.
//
// The scoring shape (vector/graph/field component scores combined by a
// weighted sum, normalized to 1.0) mirrors a hybrid-search weights/result
// combination.
package query

// Weights holds the three fusion component weights. They are
// normalized to sum to 1.0 before use; an all-zero Weights falls back
// to DefaultWeights.
type Weights struct {
	Vector float64
	Graph  float64
	Field  float64
}

// DefaultWeights returns the 0.6/0.2/0.2 default split (§4.I step 3).
func DefaultWeights() Weights {
	return Weights{Vector: 0.6, Graph: 0.2, Field: 0.2}
}

// Normalize returns w scaled so its components sum to 1.0. An all-zero
// Weights returns DefaultWeights.
func (w Weights) Normalize() Weights {
	total := w.Vector + w.Graph + w.Field
	if total == 0 {
		return DefaultWeights()
	}
	return Weights{
		Vector: w.Vector / total,
		Graph:  w.Graph / total,
		Field:  w.Field / total,
	}
}

// Candidate is one entity under consideration for a ranked result,
// carrying its three raw component scores (each already normalized to
// [0, 1] by the caller per §4.I step 3).
type Candidate struct {
	ID          string
	VectorScore float64 // s_vec = 1 - distance_normalized
	GraphScore  float64 // s_graph, inverse path length
	FieldScore  float64 // s_field, satisfied / requested predicates
}

// Result is a fused, scored candidate ready for pagination.
type Result struct {
	ID          string
	Score       float64
	VectorScore float64
	GraphScore  float64
	FieldScore  float64
}

// Fuse combines every candidate's component scores into a final score
// using w (normalized internally), sorts descending by score with a
// tie-break on ID ascending for determinism (§4.I step 3).
func Fuse(candidates []Candidate, w Weights) []Result {
	w = w.Normalize()
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			ID:          c.ID,
			VectorScore: c.VectorScore,
			GraphScore:  c.GraphScore,
			FieldScore:  c.FieldScore,
			Score:       c.VectorScore*w.Vector + c.GraphScore*w.Graph + c.FieldScore*w.Field,
		}
	}
	sortResults(results)
	return results
}

func sortResults(results []Result) {
	// insertion sort is fine at the candidate-set sizes this planner
	// deals with (bounded by limit+offset per §4.I step 2); avoids
	// pulling in sort.Slice's reflection overhead for a tiny N.
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && less(results[j], results[j-1]) {
			results[j], results[j-1] = results[j-1], results[j]
			j--
		}
	}
}

func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// Paginate applies offset then limit to an already-fused, sorted
// ranking. Contiguous windows of the same ranking are disjoint by
// construction (§4.I step 4).
func Paginate(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}
