package brainy

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/brainy/brainy/internal/graph"
	"github.com/brainy/brainy/internal/storage"
)

// Add inserts or replaces a noun (§3 Noun, §8 round-trip property). A
// blank ID is generated. Vector dimension, noun type, and finite
// components are validated before anything touches storage.
func (s *Store) Add(ctx context.Context, n *Noun) (err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckMutate("add"); err != nil {
		return err
	}
	if n == nil {
		return wrapErr("add", KindInvalidInput, "", errors.New("noun is nil"))
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := s.validateVector(n.Vector); err != nil {
		return wrapErr("add", KindInvalidVector, n.ID, err)
	}
	if len(n.Vector) != s.config.Dimensions {
		return wrapErr("add", KindDimensionMismatch, n.ID, nil)
	}
	if !IsValidNounType(n.Type) {
		return wrapErr("add", KindUnknownNounType, n.ID, nil)
	}

	now := nowTimestamp()
	n.CreatedAt, n.UpdatedAt = now, now
	n.SchemaVersion = SchemaVersion

	if err := s.putNoun(ctx, n); err != nil {
		return err
	}

	s.typeIndex.Insert(string(n.Type), n.ID, n.Vector)
	s.metaIndex.IndexMetadata(n.ID, n.Metadata)
	if err := s.changeLog.RecordUpsert(ctx, storage.KindNoun, n.ID); err != nil {
		s.logger.Warn("change log append failed", "op", "add", "id", n.ID, "error", err)
	}
	s.planner.InvalidateCache()
	s.bumpStats(&s.stats.nounCount, serviceOf(n.CreatedBy), 1)
	if len(n.Metadata) > 0 {
		s.bumpStats(&s.stats.metadataCount, serviceOf(n.CreatedBy), 1)
	}
	return nil
}

// Get returns the noun with id, or ErrNotFound. Point lookups by ID are
// permitted regardless of role (§4.J names search, not get, as the
// operation a writer may reject).
func (s *Store) Get(ctx context.Context, id string) (n *Noun, err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	data, err := s.adapter.GetNoun(ctx, s.partitioner.Path(id), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, wrapErr("get", KindNotFound, id, nil)
	}
	if err != nil {
		return nil, wrapErr("get", KindStorageUnavailable, id, err)
	}
	var noun Noun
	if err := json.Unmarshal(data, &noun); err != nil {
		return nil, wrapErr("get", KindStorageUnavailable, id, err)
	}
	return &noun, nil
}

// Update replaces an existing noun's vector/type/metadata in place,
// re-indexing HNSW and the metadata index against the new values.
func (s *Store) Update(ctx context.Context, n *Noun) (err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckMutate("update"); err != nil {
		return err
	}
	if n == nil || n.ID == "" {
		return wrapErr("update", KindInvalidInput, "", errors.New("noun or noun.id is empty"))
	}
	existing, err := s.Get(ctx, n.ID)
	if err != nil {
		return err
	}
	if len(n.Vector) != s.config.Dimensions {
		return wrapErr("update", KindDimensionMismatch, n.ID, nil)
	}
	if err := s.validateVector(n.Vector); err != nil {
		return wrapErr("update", KindInvalidVector, n.ID, err)
	}
	if !IsValidNounType(n.Type) {
		return wrapErr("update", KindUnknownNounType, n.ID, nil)
	}

	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = nowTimestamp()
	n.SchemaVersion = SchemaVersion

	if err := s.putNoun(ctx, n); err != nil {
		return err
	}

	if existing.Type != n.Type {
		_ = s.typeIndex.HardDelete(string(existing.Type), n.ID)
	}
	s.typeIndex.Insert(string(n.Type), n.ID, n.Vector)
	s.metaIndex.UnindexMetadata(n.ID, existing.Metadata)
	s.metaIndex.IndexMetadata(n.ID, n.Metadata)
	if err := s.changeLog.RecordUpsert(ctx, storage.KindNoun, n.ID); err != nil {
		s.logger.Warn("change log append failed", "op", "update", "id", n.ID, "error", err)
	}
	s.planner.InvalidateCache()
	return nil
}

// DeleteOptions controls whether Delete removes a noun's data outright
// or only marks it soft-deleted, and whether a hard delete cascades to
// every verb touching it (§3 Verb invariants, §8 scenario 4).
type DeleteOptions struct {
	Soft    bool
	Cascade bool
}

// Delete removes (or soft-marks) the noun with id. A hard delete with
// Cascade also removes every verb where the noun appears as source or
// target (§8 scenario 4 "graph cascade").
func (s *Store) Delete(ctx context.Context, id string, opts DeleteOptions) (err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckMutate("delete"); err != nil {
		return err
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if opts.Soft {
		n.MarkSoftDeleted(true)
		n.UpdatedAt = nowTimestamp()
		if err := s.putNoun(ctx, n); err != nil {
			return err
		}
		if err := s.changeLog.RecordUpsert(ctx, storage.KindNoun, id); err != nil {
			s.logger.Warn("change log append failed", "op", "delete", "id", id, "error", err)
		}
		s.planner.InvalidateCache()
		return nil
	}

	if opts.Cascade {
		for _, edgeID := range s.graph.RemoveNoun(id) {
			if err := s.adapter.DeleteVerb(ctx, s.partitioner.Path(edgeID), edgeID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("cascade verb delete failed", "id", edgeID, "error", err)
			}
			if err := s.changeLog.RecordDelete(ctx, storage.KindVerb, edgeID); err != nil {
				s.logger.Warn("change log append failed", "op", "delete", "id", edgeID, "error", err)
			}
		}
	}

	if err := s.adapter.DeleteNoun(ctx, s.partitioner.Path(id), id); err != nil {
		return wrapErr("delete", KindStorageUnavailable, id, err)
	}
	_ = s.typeIndex.HardDelete(string(n.Type), id)
	s.metaIndex.UnindexMetadata(id, n.Metadata)
	if err := s.changeLog.RecordDelete(ctx, storage.KindNoun, id); err != nil {
		s.logger.Warn("change log append failed", "op", "delete", "id", id, "error", err)
	}
	s.planner.InvalidateCache()
	s.bumpStats(&s.stats.nounCount, serviceOf(n.CreatedBy), -1)
	return nil
}

// AddVerb inserts a new typed, weighted, directed edge between two
// nouns. Both endpoints must already exist unless v.AutoCreateMissingNouns
// is set, in which case missing endpoints are created as minimal
// placeholder nouns first. Duplicate (source, target, verb) triples are
// allowed and each receives a distinct ID (§3 Verb invariants).
func (s *Store) AddVerb(ctx context.Context, v *Verb) (err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckMutate("addVerb"); err != nil {
		return err
	}
	if v == nil {
		return wrapErr("addVerb", KindInvalidInput, "", errors.New("verb is nil"))
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Source == "" || v.Target == "" {
		return wrapErr("addVerb", KindInvalidInput, v.ID, errors.New("source and target are required"))
	}
	if !IsValidVerbType(v.Verb) {
		return wrapErr("addVerb", KindUnknownVerbType, v.ID, nil)
	}
	if v.Weight == 0 {
		v.Weight = DefaultWeight
	}
	if v.Weight < s.config.MinWeight || v.Weight > s.config.MaxWeight {
		return wrapErr("addVerb", KindInvalidInput, v.ID, errors.New("weight out of range"))
	}
	if len(v.Vector) > 0 {
		if len(v.Vector) != s.config.Dimensions {
			return wrapErr("addVerb", KindDimensionMismatch, v.ID, nil)
		}
		if err := s.validateVector(v.Vector); err != nil {
			return wrapErr("addVerb", KindInvalidVector, v.ID, err)
		}
	}
	if _, err := s.Get(ctx, v.Source); err != nil {
		if !v.AutoCreateMissingNouns {
			return wrapErr("addVerb", KindNotFound, v.Source, errors.New("source noun does not exist"))
		}
		if err := s.createPlaceholderNoun(ctx, v.Source); err != nil {
			return err
		}
	}
	if _, err := s.Get(ctx, v.Target); err != nil {
		if !v.AutoCreateMissingNouns {
			return wrapErr("addVerb", KindNotFound, v.Target, errors.New("target noun does not exist"))
		}
		if err := s.createPlaceholderNoun(ctx, v.Target); err != nil {
			return err
		}
	}

	now := nowTimestamp()
	v.CreatedAt, v.UpdatedAt = now, now
	v.SchemaVersion = SchemaVersion

	if err := s.putVerb(ctx, v); err != nil {
		return err
	}

	s.graph.AddEdge(graph.Edge{ID: v.ID, Source: v.Source, Target: v.Target, VerbType: string(v.Verb), Weight: v.Weight})
	if err := s.changeLog.RecordUpsert(ctx, storage.KindVerb, v.ID); err != nil {
		s.logger.Warn("change log append failed", "op", "addVerb", "id", v.ID, "error", err)
	}
	s.planner.InvalidateCache()
	s.bumpStats(&s.stats.verbCount, serviceOf(v.CreatedBy), 1)
	return nil
}

// GetVerb returns the verb with id, or ErrNotFound.
func (s *Store) GetVerb(ctx context.Context, id string) (v *Verb, err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()
	return s.getVerbRaw(ctx, id)
}

func (s *Store) getVerbRaw(ctx context.Context, id string) (*Verb, error) {
	data, err := s.adapter.GetVerb(ctx, s.partitioner.Path(id), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, wrapErr("getVerb", KindNotFound, id, nil)
	}
	if err != nil {
		return nil, wrapErr("getVerb", KindStorageUnavailable, id, err)
	}
	var v Verb
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, wrapErr("getVerb", KindStorageUnavailable, id, err)
	}
	return &v, nil
}

// DeleteVerb removes a single verb and its graph adjacency.
func (s *Store) DeleteVerb(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.recordLatency(start, err) }()

	if err := s.mode.CheckMutate("deleteVerb"); err != nil {
		return err
	}
	v, err := s.getVerbRaw(ctx, id)
	if err != nil {
		return err
	}
	if err := s.adapter.DeleteVerb(ctx, s.partitioner.Path(id), id); err != nil {
		return wrapErr("deleteVerb", KindStorageUnavailable, id, err)
	}
	s.graph.RemoveEdge(id)
	if err := s.changeLog.RecordDelete(ctx, storage.KindVerb, id); err != nil {
		s.logger.Warn("change log append failed", "op", "deleteVerb", "id", id, "error", err)
	}
	s.planner.InvalidateCache()
	s.bumpStats(&s.stats.verbCount, serviceOf(v.CreatedBy), -1)
	return nil
}

// createPlaceholderNoun inserts a minimal, zero-vector noun under id so
// AddVerb can link to it when AutoCreateMissingNouns is set.
func (s *Store) createPlaceholderNoun(ctx context.Context, id string) error {
	return s.Add(ctx, &Noun{ID: id, Vector: make([]float32, s.config.Dimensions), Type: NounThing})
}

func (s *Store) putNoun(ctx context.Context, n *Noun) error {
	data, err := json.Marshal(n)
	if err != nil {
		return wrapErr("put", KindInvalidInput, n.ID, err)
	}
	if err := s.tripBreaker(func() error { return s.adapter.SaveNoun(ctx, s.partitioner.Path(n.ID), n.ID, data) }); err != nil {
		return wrapErr("put", KindStorageUnavailable, n.ID, err)
	}
	return nil
}

func (s *Store) putVerb(ctx context.Context, v *Verb) error {
	data, err := json.Marshal(v)
	if err != nil {
		return wrapErr("put", KindInvalidInput, v.ID, err)
	}
	if err := s.tripBreaker(func() error { return s.adapter.SaveVerb(ctx, s.partitioner.Path(v.ID), v.ID, data) }); err != nil {
		return wrapErr("put", KindStorageUnavailable, v.ID, err)
	}
	return nil
}

// tripBreaker runs a write through the instance's circuit breaker so a
// run of storage failures opens the breaker and fails fast with
// StorageUnavailable instead of continuing to hammer a sick backend
// (§5 backpressure; shared with the health monitor's trip-on-unhealthy
// path in internal/health).
func (s *Store) tripBreaker(fn func() error) error {
	_, err := s.breaker.Execute(func() (any, error) { return nil, fn() })
	return err
}

func (s *Store) validateVector(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("vector is empty")
	}
	for _, f := range vec {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return errors.New("vector contains NaN or Inf")
		}
	}
	return nil
}
