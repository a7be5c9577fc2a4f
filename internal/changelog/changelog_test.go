package changelog

import (
	"context"
	"testing"
	"time"

	"github.com/brainy/brainy/internal/storage"
	"github.com/brainy/brainy/internal/storage/memstore"
)

func TestRecordUpsertAndSince(t *testing.T) {
	l := New(memstore.New())
	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	if err := l.RecordUpsert(ctx, storage.KindNoun, "n1"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordDelete(ctx, storage.KindNoun, "n2"); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Since(ctx, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Sequence >= entries[1].Sequence {
		t.Fatalf("expected ascending sequence")
	}
	if entries[1].Op != storage.OpDelete {
		t.Fatalf("expected second entry to be a delete, got %v", entries[1].Op)
	}
}

func TestCompactDropsOldEntries(t *testing.T) {
	adapter := memstore.New()
	l := New(adapter)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_ = adapter.AppendChange(ctx, storage.ChangeEntry{Timestamp: old, EntityType: storage.KindNoun, EntityID: "n1", Op: storage.OpUpsert})
	_ = l.RecordUpsert(ctx, storage.KindNoun, "n2")

	if err := l.Compact(ctx, DefaultRetentionWindow); err != nil {
		t.Fatal(err)
	}

	entries, err := l.Since(ctx, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].EntityID != "n2" {
		t.Fatalf("expected only the recent entry to survive compaction, got %+v", entries)
	}
}

func TestRunSweeperStopsOnContextCancel(t *testing.T) {
	l := New(memstore.New())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.RunSweeper(ctx, 5*time.Millisecond, time.Hour)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
