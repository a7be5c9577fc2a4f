package brainy

import (
	"context"
	"time"

	"github.com/brainy/brainy/internal/distance"
	"github.com/brainy/brainy/internal/hnsw"
	"github.com/brainy/brainy/internal/metaindex"
	"github.com/brainy/brainy/internal/query"
)

// Query names what to search for: a raw vector, a noun whose own vector
// is used as the query (NounID), or free text resolved through an
// Embedder (§4.I step 0). Exactly one of Vector/NounID/Text should be
// set; Vector takes precedence if more than one is.
type Query struct {
	Vector []float32
	NounID string
	Text   string
}

// FindOptions bounds and shapes a Find call (§4.I).
type FindOptions struct {
	NounTypes []NounType
	VerbTypes []VerbType
	Where     *metaindex.Filter

	SourceID string
	Depth    int

	Limit  int
	Offset int

	FusionWeights  FusionWeights
	SkipCache      bool
	IncludeDeleted bool
}

// FindResult is one ranked noun and its component scores (§4.I step 3).
type FindResult struct {
	Noun        *Noun
	Score       float64
	VectorScore float64
	GraphScore  float64
	FieldScore  float64
}

// Find runs the triple-intelligence query: a vector phase (HNSW search
// per requested noun type), a graph phase (bounded BFS from SourceID),
// and a field phase (the metadata filter), fused into one ranking,
// paginated, and cached by fingerprint (§4.I steps 1-5).
func (s *Store) Find(ctx context.Context, q Query, opts FindOptions) (results []FindResult, err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckSearch("find"); err != nil {
		return nil, err
	}

	queryVector, err := s.resolveQueryVector(ctx, q)
	if err != nil {
		return nil, err
	}

	weights := query.Weights{Vector: opts.FusionWeights.Vector, Graph: opts.FusionWeights.Graph, Field: opts.FusionWeights.Field}
	fp := query.Fingerprint(query.FingerprintParams{
		QueryVector:   queryVector,
		QueryText:     q.Text,
		NounID:        q.NounID,
		Where:         filterFingerprint(opts.Where),
		NounTypes:     nounTypeStrings(opts.NounTypes),
		VerbTypes:     verbTypeStrings(opts.VerbTypes),
		SourceID:      opts.SourceID,
		Depth:         opts.Depth,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
		FusionWeights: weights,
	})

	if s.cache != nil && !opts.SkipCache {
		_, hit := s.cache.Get(fp)
		s.health.RecordCacheAccess(hit)
	}
	fused, err := s.planner.Execute(fp, opts.SkipCache, func() ([]query.Result, error) {
		return s.computeCandidates(ctx, queryVector, opts, weights)
	})
	if err != nil {
		return nil, wrapErr("find", KindStorageUnavailable, "", err)
	}

	page := query.Paginate(fused, opts.Offset, opts.Limit)
	out := make([]FindResult, 0, len(page))
	for _, r := range page {
		n, err := s.Get(ctx, r.ID)
		if err != nil {
			continue
		}
		if n.IsSoftDeleted() && !opts.IncludeDeleted {
			continue
		}
		out = append(out, FindResult{Noun: n, Score: r.Score, VectorScore: r.VectorScore, GraphScore: r.GraphScore, FieldScore: r.FieldScore})
	}
	return out, nil
}

func (s *Store) resolveQueryVector(ctx context.Context, q Query) ([]float32, error) {
	if len(q.Vector) > 0 {
		return q.Vector, nil
	}
	if q.NounID != "" {
		n, err := s.Get(ctx, q.NounID)
		if err != nil {
			return nil, err
		}
		return n.Vector, nil
	}
	if q.Text != "" {
		return s.embed(ctx, q.Text)
	}
	return nil, nil
}

// computeCandidates runs the prefilter (field and/or graph reachability),
// the vector phase, and fuses the results. It is the cold path behind
// the planner's singleflight+cache wrapper, so it always recomputes from
// live indexes (§4.I steps 1-3).
func (s *Store) computeCandidates(ctx context.Context, queryVector []float32, opts FindOptions, weights query.Weights) ([]query.Result, error) {
	whereActive := opts.Where != nil
	fieldMatches := s.fieldPhase(opts.Where)

	graphActive := opts.SourceID != ""
	var reachable map[string]float64
	if graphActive {
		reachable = s.graphPhase(opts.SourceID, opts.Depth, opts.VerbTypes)
	}

	var allowed func(id string) bool
	switch {
	case whereActive && graphActive:
		hasOverlap := false
		for id := range fieldMatches {
			if _, ok := reachable[id]; ok {
				hasOverlap = true
				break
			}
		}
		if !hasOverlap {
			return nil, nil
		}
		allowed = func(id string) bool {
			if !fieldMatches[id] {
				return false
			}
			_, ok := reachable[id]
			return ok
		}
	case whereActive:
		allowed = func(id string) bool { return fieldMatches[id] }
	case graphActive:
		allowed = func(id string) bool { _, ok := reachable[id]; return ok }
	}

	pageLimit := 0
	if opts.Limit > 0 {
		pageLimit = opts.Limit + opts.Offset
	}
	vectorScores := s.vectorPhase(queryVector, opts.NounTypes, pageLimit, allowed)

	ids := make(map[string]struct{}, len(vectorScores)+len(reachable)+len(fieldMatches))
	for id := range vectorScores {
		ids[id] = struct{}{}
	}
	for id := range reachable {
		ids[id] = struct{}{}
	}
	for id := range fieldMatches {
		ids[id] = struct{}{}
	}

	candidates := make([]query.Candidate, 0, len(ids))
	for id := range ids {
		if allowed != nil && !allowed(id) {
			continue
		}
		c := query.Candidate{ID: id, VectorScore: vectorScores[id]}
		if graphActive {
			c.GraphScore = reachable[id]
		}
		if whereActive {
			c.FieldScore = 1
		}
		candidates = append(candidates, c)
	}
	return query.Fuse(candidates, weights), nil
}

// vectorPhase runs an HNSW search per requested noun type (or every
// active type if none given) and returns similarity scores in [0, 1]
// (§4.I step 1). limit requests limit+offset candidates so pagination
// windows past the default ef still come back full, bounded below by
// the configured ef; when allowed is non-nil the search is filter-aware
// and widens ef to compensate for rejected candidates.
func (s *Store) vectorPhase(queryVector []float32, nounTypes []NounType, limit int, allowed func(id string) bool) map[string]float64 {
	out := make(map[string]float64)
	if len(queryVector) == 0 {
		return out
	}
	types := nounTypeStrings(nounTypes)
	if len(types) == 0 {
		types = s.typeIndex.ActiveTypes()
	}
	ef := s.config.HNSW.EfSearch
	k := limit
	if k < ef {
		k = ef
	}
	for _, t := range types {
		for _, r := range s.searchType(t, queryVector, k, ef, allowed) {
			score := distance.Normalize(s.metric, r.Distance)
			if existing, ok := out[r.ID]; !ok || score > existing {
				out[r.ID] = score
			}
		}
	}
	return out
}

func (s *Store) searchType(typeKey string, queryVector []float32, k, ef int, allowed func(id string) bool) []hnsw.Result {
	if allowed != nil {
		return s.typeIndex.SearchFiltered(typeKey, queryVector, k, ef, allowed)
	}
	return s.typeIndex.Search(typeKey, queryVector, k, ef)
}

// graphPhase runs a bounded BFS from SourceID and scores each reached
// noun inversely by hop distance (§4.I step 2, s_graph).
func (s *Store) graphPhase(sourceID string, depth int, verbTypes []VerbType) map[string]float64 {
	out := make(map[string]float64)
	if sourceID == "" {
		return out
	}
	for _, n := range s.graph.Neighbors(sourceID, depth, verbTypeStrings(verbTypes)) {
		out[n.NounID] = 1 / float64(n.Distance+1)
	}
	return out
}

// fieldPhase evaluates the metadata filter, preferring the secondary
// index for simple equality leaves and falling back to a full scan
// with Evaluate otherwise (§4.D).
func (s *Store) fieldPhase(where *metaindex.Filter) map[string]bool {
	out := make(map[string]bool)
	if where == nil {
		return out
	}
	if where.Operator == metaindex.OpEq {
		for _, id := range s.metaIndex.Lookup(where.Field, where.Value) {
			out[id] = true
		}
		return out
	}
	nouns, err := s.loadAllNouns(context.Background())
	if err != nil {
		return out
	}
	for _, n := range nouns {
		if metaindex.Evaluate(where, n.Metadata) {
			out[n.ID] = true
		}
	}
	return out
}

func filterFingerprint(f *metaindex.Filter) string {
	if f == nil {
		return ""
	}
	return filterString(f)
}

func filterString(f *metaindex.Filter) string {
	if f == nil {
		return ""
	}
	if len(f.Children) == 0 {
		return string(f.Operator) + "(" + f.Field + ")"
	}
	s := string(f.Operator) + "["
	for _, c := range f.Children {
		s += filterString(c) + ","
	}
	return s + "]"
}

func nounTypeStrings(types []NounType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func verbTypeStrings(types []VerbType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
