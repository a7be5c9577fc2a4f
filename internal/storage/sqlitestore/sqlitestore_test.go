package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brainy/brainy/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "brainy.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveGetNoun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SaveNoun(ctx, "p0", "n1", []byte(`{"id":"n1"}`)); err != nil {
		t.Fatal(err)
	}
	data, err := s.GetNoun(ctx, "p0", "n1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":"n1"}` {
		t.Fatalf("unexpected data: %s", data)
	}
}

func TestSaveNounUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.SaveNoun(ctx, "p0", "n1", []byte(`{"v":1}`))
	_ = s.SaveNoun(ctx, "p0", "n1", []byte(`{"v":2}`))
	data, err := s.GetNoun(ctx, "p0", "n1")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"v":2}` {
		t.Fatalf("expected upsert to overwrite, got %s", data)
	}
}

func TestGetNounNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetNoun(context.Background(), "p0", "missing"); err != storage.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerbSecondaryIndexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := []byte(`{"id":"v1","source":"a","target":"b","verb":"WorksWith"}`)
	if err := s.SaveVerb(ctx, "p0", "v1", v); err != nil {
		t.Fatal(err)
	}
	bySrc, _ := s.GetVerbsBySource(ctx, "a")
	if len(bySrc) != 1 {
		t.Fatalf("expected 1 verb by source, got %d", len(bySrc))
	}
	byTgt, _ := s.GetVerbsByTarget(ctx, "b")
	if len(byTgt) != 1 {
		t.Fatalf("expected 1 verb by target, got %d", len(byTgt))
	}
	byType, _ := s.GetVerbsByType(ctx, "WorksWith")
	if len(byType) != 1 {
		t.Fatalf("expected 1 verb by type, got %d", len(byType))
	}

	if err := s.DeleteVerb(ctx, "p0", "v1"); err != nil {
		t.Fatal(err)
	}
	bySrc, _ = s.GetVerbsBySource(ctx, "a")
	if len(bySrc) != 0 {
		t.Fatalf("expected 0 verbs by source after delete, got %d", len(bySrc))
	}
}

func TestChangeLogOrderingAndCompaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()
	_ = s.AppendChange(ctx, storage.ChangeEntry{Timestamp: base, EntityType: storage.KindNoun, EntityID: "n1", Op: storage.OpUpsert})
	_ = s.AppendChange(ctx, storage.ChangeEntry{Timestamp: base.Add(time.Second), EntityType: storage.KindNoun, EntityID: "n2", Op: storage.OpUpsert})

	changes, err := s.GetChangesSince(ctx, base.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Sequence >= changes[1].Sequence {
		t.Fatalf("expected ascending sequence order")
	}

	if err := s.CompactChangesBefore(ctx, base.Add(500*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	changes, _ = s.GetChangesSince(ctx, base.Add(-time.Minute))
	if len(changes) != 1 {
		t.Fatalf("expected 1 change after compaction, got %d", len(changes))
	}
}

func TestGetNounsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		_ = s.SaveNoun(ctx, "p0", id, []byte(`{}`))
	}
	page, err := s.GetNouns(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || !page.Pagination.HasMore {
		t.Fatalf("unexpected first page: %+v", page.Pagination)
	}

	page2, err := s.GetNouns(ctx, storage.ListOptions{Cursor: page.Pagination.Cursor, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Items) != 2 || page2.Pagination.HasMore {
		t.Fatalf("unexpected second page: %+v", page2.Pagination)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.SaveNoun(ctx, "p0", "n1", []byte("{}"))
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetNoun(ctx, "p0", "n1"); err != storage.ErrNotFound {
		t.Fatalf("expected cleared store to report not found, got %v", err)
	}
}

func TestGetStorageStatus(t *testing.T) {
	s := newTestStore(t)
	status, err := s.GetStorageStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.Healthy {
		t.Fatalf("expected healthy status, got %+v", status)
	}
}
