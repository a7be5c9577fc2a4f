package hnsw

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
)

func euclidean(a, b []float32) (float32, error) {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum))), nil
}

func TestInsertAndSearchFindsExactMatch(t *testing.T) {
	h := New(8, 32, 16, euclidean)
	vectors := map[string][]float32{
		"a": {0, 0},
		"b": {1, 0},
		"c": {10, 10},
		"d": {10, 11},
	}
	for id, v := range vectors {
		if err := h.Insert(id, v); err != nil {
			t.Fatal(err)
		}
	}

	results := h.Search([]float32{0.1, 0}, 2, 16)
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].ID != "a" && results[0].ID != "b" {
		t.Fatalf("expected nearest to be a or b, got %s", results[0].ID)
	}
}

func TestInsertDuplicateIDErrors(t *testing.T) {
	h := New(8, 32, 16, euclidean)
	_ = h.Insert("a", []float32{0, 0})
	if err := h.Insert("a", []float32{1, 1}); err == nil {
		t.Fatal("expected error inserting duplicate id")
	}
}

func TestDeleteRemovesFromResults(t *testing.T) {
	h := New(8, 32, 16, euclidean)
	_ = h.Insert("a", []float32{0, 0})
	_ = h.Insert("b", []float32{1, 0})

	if err := h.Delete("a"); err != nil {
		t.Fatal(err)
	}
	results := h.Search([]float32{0, 0}, 2, 16)
	for _, r := range results {
		if r.ID == "a" {
			t.Fatal("deleted node should not appear in results")
		}
	}
	if h.Size() != 1 {
		t.Fatalf("expected size 1 after delete, got %d", h.Size())
	}
}

func TestDeleteUnknownErrors(t *testing.T) {
	h := New(8, 32, 16, euclidean)
	if err := h.Delete("missing"); err == nil {
		t.Fatal("expected error deleting unknown id")
	}
}

func TestDegreeBoundRespected(t *testing.T) {
	h := New(4, 32, 16, euclidean)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := []float32{float32(rng.NormFloat64()), float32(rng.NormFloat64())}
		_ = h.Insert(idFor(i), v)
	}
	for _, n := range h.nodes {
		for layer, neighbors := range n.Neighbors {
			maxConn := h.M
			if layer == 0 {
				maxConn = h.MaxM
			}
			if len(neighbors) > maxConn {
				t.Fatalf("node %s layer %d has %d neighbors, exceeds bound %d", n.ID, layer, len(neighbors), maxConn)
			}
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	h := New(8, 32, 16, euclidean)
	_ = h.Insert("a", []float32{0, 0})
	_ = h.Insert("b", []float32{1, 1})
	_ = h.Insert("c", []float32{5, 5})

	var buf bytes.Buffer
	if err := h.Save(&buf); err != nil {
		t.Fatal(err)
	}

	loaded := New(8, 32, 16, euclidean)
	if err := loaded.Load(&buf); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != h.Size() {
		t.Fatalf("expected size %d after load, got %d", h.Size(), loaded.Size())
	}
	results := loaded.Search([]float32{0, 0}, 1, 16)
	if len(results) != 1 || results[0].ID != "a" {
		t.Fatalf("unexpected search result after load: %+v", results)
	}
}

func idFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%26]) + string(rune('0'+i/26))
}
