package hnsw

import (
	"context"
	"testing"
)

func testConfig() Config { return Config{M: 8, EfConstruction: 32, EfSearch: 16} }

func TestTypeIndexIsolatesTypes(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	_ = ti.Insert("Person", "p1", []float32{0, 0})
	_ = ti.Insert("Organization", "o1", []float32{0, 0})

	results := ti.Search("Person", []float32{0, 0}, 5, 16)
	if len(results) != 1 || results[0].ID != "p1" {
		t.Fatalf("expected Person search to only see p1, got %+v", results)
	}

	results = ti.Search("Organization", []float32{0, 0}, 5, 16)
	if len(results) != 1 || results[0].ID != "o1" {
		t.Fatalf("expected Organization search to only see o1, got %+v", results)
	}
}

func TestTypeIndexSearchUnknownTypeReturnsNil(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	if results := ti.Search("Unused", []float32{0, 0}, 5, 16); results != nil {
		t.Fatalf("expected nil for unindexed type, got %+v", results)
	}
}

func TestTypeIndexActiveTypes(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	_ = ti.Insert("Person", "p1", []float32{0, 0})
	_ = ti.Insert("Event", "e1", []float32{1, 1})

	types := ti.ActiveTypes()
	if len(types) != 2 {
		t.Fatalf("expected 2 active types, got %v", types)
	}
}

func TestTypeIndexSaveLoadRoundTrip(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	_ = ti.Insert("Person", "p1", []float32{0, 0})
	_ = ti.Insert("Person", "p2", []float32{1, 1})

	data, err := ti.SaveType("Person")
	if err != nil {
		t.Fatal(err)
	}

	fresh := NewTypeIndex(testConfig(), euclidean)
	if err := fresh.LoadType("Person", data); err != nil {
		t.Fatal(err)
	}
	if fresh.Size("Person") != 2 {
		t.Fatalf("expected size 2 after load, got %d", fresh.Size("Person"))
	}
}

func TestRebuildFromNouns(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	_ = ti.Insert("Person", "stale", []float32{9, 9})

	err := ti.RebuildFromNouns(context.Background(), func(ctx context.Context) (map[string][]NounVector, error) {
		return map[string][]NounVector{
			"Person": {{ID: "p1", Vector: []float32{0, 0}}, {ID: "p2", Vector: []float32{1, 1}}},
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ti.Size("Person") != 2 {
		t.Fatalf("expected fresh graph with 2 nodes, got %d", ti.Size("Person"))
	}
}

func TestCacheVectorRoundTrip(t *testing.T) {
	ti := NewTypeIndex(testConfig(), euclidean)
	ti.CacheVector("n1", []float32{1, 2, 3})
	v, ok := ti.CachedVector("n1")
	if !ok || len(v) != 3 {
		t.Fatalf("expected cached vector, got %v ok=%v", v, ok)
	}
}
