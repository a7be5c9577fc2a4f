package brainy

import (
	"context"
	"testing"
	"time"

	"github.com/brainy/brainy/internal/metaindex"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dimensions = 4
	cfg.Logger = NewNoopLogger()
	cfg.Distributed.HeartbeatInterval = time.Hour
	cfg.Distributed.PollInterval = time.Hour
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func unitVector(dim, idx int) []float32 {
	v := make([]float32, dim)
	v[idx] = 1
	return v
}

// Scenario 1: insert-then-find.
func TestScenarioInsertThenFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := &Noun{ID: "n1", Vector: unitVector(4, 0), Type: NounThing, Metadata: map[string]any{"label": "x"}}
	if err := s.Add(ctx, n); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := s.Find(ctx, Query{Vector: unitVector(4, 0)}, FindOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 1 || results[0].Noun.ID != "n1" {
		t.Fatalf("expected [n1], got %+v", results)
	}
}

// Scenario 2: type isolation.
func TestScenarioTypeIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := unitVector(4, 1)
	if err := s.Add(ctx, &Noun{ID: "p1", Vector: vec, Type: NounPerson}); err != nil {
		t.Fatalf("Add p1: %v", err)
	}
	if err := s.Add(ctx, &Noun{ID: "d1", Vector: vec, Type: NounDocument}); err != nil {
		t.Fatalf("Add d1: %v", err)
	}

	results, err := s.Find(ctx, Query{Vector: vec}, FindOptions{Limit: 10, NounTypes: []NounType{NounPerson}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 1 || results[0].Noun.ID != "p1" {
		t.Fatalf("expected only [p1], got %+v", results)
	}

	active := s.GetActiveTypes(ctx)
	seen := map[NounType]bool{}
	for _, a := range active {
		seen[a] = true
	}
	if !seen[NounPerson] || !seen[NounDocument] {
		t.Fatalf("expected Person and Document active, got %v", active)
	}
}

// Scenario 3: filter-aware search.
func TestScenarioFilterAwareSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		level := "junior"
		if i%2 == 0 {
			level = "senior"
		}
		n := &Noun{
			ID:       idFor(i),
			Vector:   unitVector(4, i%4),
			Type:     NounPerson,
			Metadata: map[string]any{"level": level},
		}
		if err := s.Add(ctx, n); err != nil {
			t.Fatalf("Add %s: %v", n.ID, err)
		}
	}

	results, err := s.Find(ctx, Query{Vector: unitVector(4, 0)}, FindOptions{
		Limit: 10,
		Where: metaindex.Eq("level", "senior"),
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Noun.Metadata["level"] != "senior" {
			t.Fatalf("expected level=senior, got %v on %s", r.Noun.Metadata["level"], r.Noun.ID)
		}
	}
}

func idFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "person-" + string(letters[i%26]) + string(rune('0'+i/26))
}

// Scenario 4: graph cascade delete.
func TestScenarioGraphCascadeDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Add(ctx, &Noun{ID: id, Vector: unitVector(4, 0), Type: NounPerson}); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	if err := s.AddVerb(ctx, &Verb{Source: "a", Target: "b", Verb: VerbWorksWith}); err != nil {
		t.Fatalf("AddVerb a->b: %v", err)
	}
	if err := s.AddVerb(ctx, &Verb{Source: "b", Target: "c", Verb: VerbWorksWith}); err != nil {
		t.Fatalf("AddVerb b->c: %v", err)
	}

	if err := s.Delete(ctx, "b", DeleteOptions{Cascade: true}); err != nil {
		t.Fatalf("Delete b: %v", err)
	}

	if _, err := s.Get(ctx, "b"); err == nil {
		t.Fatal("expected b to be gone")
	}
	if len(s.graph.EdgesFrom("a")) != 0 {
		t.Fatal("expected a's outgoing edge to b to be gone")
	}
	if len(s.graph.EdgesTo("c")) != 0 {
		t.Fatal("expected c's incoming edge from b to be gone")
	}
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("expected a to survive: %v", err)
	}
	if _, err := s.Get(ctx, "c"); err != nil {
		t.Fatalf("expected c to survive: %v", err)
	}
}

// Scenario 5: partition determinism.
func TestScenarioPartitionDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dimensions = 4
	cfg.Logger = NewNoopLogger()
	cfg.Distributed.PartitionCount = 10

	s1, err := New(cfg)
	if err != nil {
		t.Fatalf("New s1: %v", err)
	}
	defer s1.Close(context.Background())

	s2, err := New(cfg)
	if err != nil {
		t.Fatalf("New s2: %v", err)
	}
	defer s2.Close(context.Background())

	p1 := s1.partitioner.Path("vector-42")
	p2 := s2.partitioner.Path("vector-42")
	if p1 != p2 {
		t.Fatalf("expected equal partitions, got %s vs %s", p1, p2)
	}
}

// Scenario 6: reader rejects writes but permits search.
func TestScenarioReaderRejectsWrites(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dimensions = 4
	cfg.Logger = NewNoopLogger()
	cfg.Distributed.Role = RoleReader

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(context.Background())

	ctx := context.Background()
	err = s.Add(ctx, &Noun{ID: "n1", Vector: unitVector(4, 0), Type: NounThing})
	if se, ok := asStoreError(err); !ok || se.Kind != KindReadOnly {
		t.Fatalf("expected ReadOnly, got %v", err)
	}

	if _, err := s.Find(ctx, Query{Vector: unitVector(4, 0)}, FindOptions{Limit: 5}); err != nil {
		t.Fatalf("expected search to succeed on reader, got %v", err)
	}
}

// Boundary: search on an empty store returns no results.
func TestFindOnEmptyStoreReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	results, err := s.Find(context.Background(), Query{Vector: unitVector(4, 0)}, FindOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %+v", results)
	}
}

// Boundary: offset beyond result count returns no results.
func TestFindOffsetBeyondCountReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Add(ctx, &Noun{ID: "n1", Vector: unitVector(4, 0), Type: NounThing}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := s.Find(ctx, Query{Vector: unitVector(4, 0)}, FindOptions{Limit: 5, Offset: 50})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results past offset, got %+v", results)
	}
}

// Round-trip: soft delete hides from search but not from Get.
func TestSoftDeleteHidesFromFindNotFromGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Add(ctx, &Noun{ID: "n1", Vector: unitVector(4, 0), Type: NounThing}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Delete(ctx, "n1", DeleteOptions{Soft: true}); err != nil {
		t.Fatalf("Delete soft: %v", err)
	}

	results, err := s.Find(ctx, Query{Vector: unitVector(4, 0)}, FindOptions{Limit: 5})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected soft-deleted noun hidden from Find, got %+v", results)
	}

	n, err := s.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("expected Get to still find soft-deleted noun: %v", err)
	}
	if !n.IsSoftDeleted() {
		t.Fatal("expected soft-delete marker set")
	}
}

// Round-trip: duplicate triples get distinct verb IDs.
func TestDuplicateTriplesGetDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Add(ctx, &Noun{ID: "a", Vector: unitVector(4, 0), Type: NounPerson}); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := s.Add(ctx, &Noun{ID: "b", Vector: unitVector(4, 0), Type: NounPerson}); err != nil {
		t.Fatalf("Add b: %v", err)
	}

	v1 := &Verb{Source: "a", Target: "b", Verb: VerbWorksWith}
	v2 := &Verb{Source: "a", Target: "b", Verb: VerbWorksWith}
	if err := s.AddVerb(ctx, v1); err != nil {
		t.Fatalf("AddVerb v1: %v", err)
	}
	if err := s.AddVerb(ctx, v2); err != nil {
		t.Fatalf("AddVerb v2: %v", err)
	}
	if v1.ID == v2.ID {
		t.Fatal("expected distinct verb IDs for duplicate triples")
	}
	if len(s.graph.EdgesFrom("a")) != 2 {
		t.Fatalf("expected 2 outgoing edges from a, got %d", len(s.graph.EdgesFrom("a")))
	}
}
