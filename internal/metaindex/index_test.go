package metaindex

import (
	"context"
	"testing"

	"github.com/brainy/brainy/internal/storage/memstore"
)

func TestAddAndLookup(t *testing.T) {
	idx := New(memstore.New())
	idx.Add("type", "Person", "n1")
	idx.Add("type", "Person", "n2")
	idx.Add("type", "Organization", "n3")

	got := idx.Lookup("type", "Person")
	if len(got) != 2 {
		t.Fatalf("expected 2 ids, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	idx := New(memstore.New())
	idx.Add("type", "Person", "n1")
	idx.Remove("type", "Person", "n1")
	if got := idx.Lookup("type", "Person"); len(got) != 0 {
		t.Fatalf("expected empty after remove, got %v", got)
	}
}

func TestIndexMetadataFlattensNested(t *testing.T) {
	idx := New(memstore.New())
	idx.IndexMetadata("n1", map[string]any{
		"type":    "Person",
		"address": map[string]any{"city": "Boston"},
	})
	if got := idx.Lookup("type", "Person"); len(got) != 1 {
		t.Fatalf("expected 1 id for type, got %v", got)
	}
	if got := idx.Lookup("address.city", "Boston"); len(got) != 1 {
		t.Fatalf("expected 1 id for nested field, got %v", got)
	}
}

func TestRebuildRepopulatesFromScan(t *testing.T) {
	idx := New(memstore.New())
	idx.Add("stale", "value", "old")

	err := idx.Rebuild(context.Background(), func(ctx context.Context) (map[string]map[string]any, error) {
		return map[string]map[string]any{
			"n1": {"type": "Person"},
			"n2": {"type": "Person"},
		}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := idx.Lookup("stale", "value"); len(got) != 0 {
		t.Fatalf("expected stale entries cleared, got %v", got)
	}
	if got := idx.Lookup("type", "Person"); len(got) != 2 {
		t.Fatalf("expected 2 ids after rebuild, got %v", got)
	}
}

func TestIsReservedKey(t *testing.T) {
	if !IsReservedKey(indexKey("type", "Person")) {
		t.Fatal("expected index key to be reserved")
	}
	if IsReservedKey("plain-key") {
		t.Fatal("expected plain key to not be reserved")
	}
}
