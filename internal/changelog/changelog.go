// Package changelog wraps a storage.Adapter with the append-only,
// (wallclock, sequence)-ordered mutation record described in §4.C. A
// single-writer sweeper compacts entries older than a retention window,
// driven by the root package's timer loop.
package changelog

import (
	"context"
	"sync"
	"time"

	"github.com/brainy/brainy/internal/storage"
)

// DefaultRetentionWindow matches §4.C's default compaction horizon.
const DefaultRetentionWindow = 24 * time.Hour

// Log appends and replays change-log entries against a storage.Adapter.
// Sequence numbers are process-local and monotonic, disambiguating
// entries that share a wallclock timestamp.
type Log struct {
	adapter storage.Adapter

	mu  sync.Mutex
	seq uint64
}

// New returns a Log backed by adapter.
func New(adapter storage.Adapter) *Log {
	return &Log{adapter: adapter}
}

// RecordUpsert appends an upsert entry for the given entity.
func (l *Log) RecordUpsert(ctx context.Context, kind storage.EntityKind, id string) error {
	return l.record(ctx, kind, id, storage.OpUpsert)
}

// RecordDelete appends a delete entry for the given entity.
func (l *Log) RecordDelete(ctx context.Context, kind storage.EntityKind, id string) error {
	return l.record(ctx, kind, id, storage.OpDelete)
}

func (l *Log) record(ctx context.Context, kind storage.EntityKind, id string, op storage.ChangeOp) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	return l.adapter.AppendChange(ctx, storage.ChangeEntry{
		Timestamp:  time.Now(),
		Sequence:   seq,
		EntityType: kind,
		EntityID:   id,
		Op:         op,
	})
}

// Since returns every entry recorded strictly after t, ordered by
// (timestamp, sequence).
func (l *Log) Since(ctx context.Context, t time.Time) ([]storage.ChangeEntry, error) {
	return l.adapter.GetChangesSince(ctx, t)
}

// Compact drops entries older than the retention window measured from
// now. Idempotent: compacting twice in a row is a no-op the second time.
func (l *Log) Compact(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetentionWindow
	}
	return l.adapter.CompactChangesBefore(ctx, time.Now().Add(-retention))
}

// RunSweeper blocks, compacting on every tick of interval, until ctx is
// canceled. The root store's timer loop does not start it; it calls
// Compact on its own ticker instead.
func (l *Log) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.Compact(ctx, retention)
		}
	}
}
