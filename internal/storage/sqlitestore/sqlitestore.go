// Package sqlitestore implements storage.Adapter on top of a single
// SQLite database file via the pure-Go modernc.org/sqlite driver (no
// cgo). It is a bonus backend beyond the three the layout in §4.B
// names: one embeddable deployment may prefer real secondary-index
// queries over the filesystem backend's scan-everything verb lookups.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brainy/brainy/internal/storage"
)

// Store is a SQLite-backed storage.Adapter.
type Store struct {
	db   *sql.DB
	path string
}

// New returns a Store backed by the database file at path. The file is
// opened and its schema created by Init.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", s.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return storage.ErrUnavailable
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)
	s.db = db

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return storage.ErrUnavailable
	}
	return s.createTables(ctx)
}

func (s *Store) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS nouns (
		partition TEXT NOT NULL,
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (partition, id)
	);
	CREATE TABLE IF NOT EXISTS verbs (
		partition TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		verb_type TEXT NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (partition, id)
	);
	CREATE INDEX IF NOT EXISTS idx_verbs_source ON verbs(source);
	CREATE INDEX IF NOT EXISTS idx_verbs_target ON verbs(target);
	CREATE INDEX IF NOT EXISTS idx_verbs_type ON verbs(verb_type);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS statistics (
		day TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS change_log (
		sequence INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp_ns INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		op TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_change_log_ts ON change_log(timestamp_ns);
	`
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) SaveNoun(ctx context.Context, partition, id string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nouns (partition, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(partition, id) DO UPDATE SET data = excluded.data`,
		partition, id, data)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetNoun(ctx context.Context, partition, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM nouns WHERE partition = ? AND id = ?`, partition, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	return data, nil
}

func (s *Store) DeleteNoun(ctx context.Context, partition, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nouns WHERE partition = ? AND id = ?`, partition, id)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetNouns(ctx context.Context, opts storage.ListOptions) (storage.Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	var rows *sql.Rows
	var err error
	cursorPartition, cursorID := splitCursor(opts.Cursor)
	switch {
	case opts.Partition != "" && opts.Cursor != "":
		rows, err = s.db.QueryContext(ctx,
			`SELECT partition, id, data FROM nouns WHERE partition = ? AND id > ? ORDER BY partition, id LIMIT ?`,
			opts.Partition, cursorID, limit+1)
	case opts.Partition != "":
		rows, err = s.db.QueryContext(ctx,
			`SELECT partition, id, data FROM nouns WHERE partition = ? ORDER BY partition, id LIMIT ?`,
			opts.Partition, limit+1)
	case opts.Cursor != "":
		rows, err = s.db.QueryContext(ctx,
			`SELECT partition, id, data FROM nouns WHERE (partition, id) > (?, ?) ORDER BY partition, id LIMIT ?`,
			cursorPartition, cursorID, limit+1)
	default:
		rows, err = s.db.QueryContext(ctx, `SELECT partition, id, data FROM nouns ORDER BY partition, id LIMIT ?`, limit+1)
	}
	if err != nil {
		return storage.Page{}, storage.ErrUnavailable
	}
	defer rows.Close()

	var items []storage.Record
	for rows.Next() {
		var p, id string
		var data []byte
		if err := rows.Scan(&p, &id, &data); err != nil {
			return storage.Page{}, storage.ErrUnavailable
		}
		items = append(items, storage.Record{Partition: p, ID: id, Data: data})
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	var cursor string
	if hasMore {
		last := items[len(items)-1]
		cursor = joinCursor(last.Partition, last.ID)
	}
	return storage.Page{Items: items, Pagination: storage.Pagination{Cursor: cursor, Limit: limit, HasMore: hasMore}}, nil
}

func joinCursor(partition, id string) string { return partition + "\x00" + id }
func splitCursor(cursor string) (string, string) {
	for i := 0; i < len(cursor); i++ {
		if cursor[i] == 0 {
			return cursor[:i], cursor[i+1:]
		}
	}
	return "", cursor
}

func (s *Store) SaveVerb(ctx context.Context, partition, id string, data []byte) error {
	idx, _ := decodeVerbIndex(data)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verbs (partition, id, source, target, verb_type, data) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(partition, id) DO UPDATE SET source = excluded.source, target = excluded.target, verb_type = excluded.verb_type, data = excluded.data`,
		partition, id, idx.source, idx.target, idx.verbType, data)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetVerb(ctx context.Context, partition, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM verbs WHERE partition = ? AND id = ?`, partition, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	return data, nil
}

func (s *Store) queryVerbsBy(ctx context.Context, column, value string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM verbs WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, storage.ErrUnavailable
		}
		out = append(out, data)
	}
	return out, nil
}

func (s *Store) GetVerbsBySource(ctx context.Context, sourceID string) ([][]byte, error) {
	return s.queryVerbsBy(ctx, "source", sourceID)
}

func (s *Store) GetVerbsByTarget(ctx context.Context, targetID string) ([][]byte, error) {
	return s.queryVerbsBy(ctx, "target", targetID)
}

func (s *Store) GetVerbsByType(ctx context.Context, verbType string) ([][]byte, error) {
	return s.queryVerbsBy(ctx, "verb_type", verbType)
}

func (s *Store) DeleteVerb(ctx context.Context, partition, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM verbs WHERE partition = ? AND id = ?`, partition, id)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) SaveMetadata(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, data) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET data = excluded.data`,
		key, data)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM metadata WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	return data, nil
}

func (s *Store) AppendChange(ctx context.Context, e storage.ChangeEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO change_log (timestamp_ns, entity_type, entity_id, op) VALUES (?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), string(e.EntityType), e.EntityID, string(e.Op))
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetChangesSince(ctx context.Context, t time.Time) ([]storage.ChangeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, timestamp_ns, entity_type, entity_id, op FROM change_log WHERE timestamp_ns > ? ORDER BY timestamp_ns, sequence`,
		t.UnixNano())
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	defer rows.Close()
	var out []storage.ChangeEntry
	for rows.Next() {
		var seq uint64
		var ts int64
		var entityType, entityID, op string
		if err := rows.Scan(&seq, &ts, &entityType, &entityID, &op); err != nil {
			return nil, storage.ErrUnavailable
		}
		out = append(out, storage.ChangeEntry{
			Sequence:   seq,
			Timestamp:  time.Unix(0, ts),
			EntityType: storage.EntityKind(entityType),
			EntityID:   entityID,
			Op:         storage.ChangeOp(op),
		})
	}
	return out, nil
}

func (s *Store) CompactChangesBefore(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM change_log WHERE timestamp_ns < ?`, t.UnixNano())
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) SaveStatistics(ctx context.Context, day string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statistics (day, data) VALUES (?, ?) ON CONFLICT(day) DO UPDATE SET data = excluded.data`,
		day, data)
	if err != nil {
		return storage.ErrUnavailable
	}
	return nil
}

func (s *Store) GetStatistics(ctx context.Context, day string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM statistics WHERE day = ?`, day).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.ErrUnavailable
	}
	return data, nil
}

func (s *Store) GetStorageStatus(ctx context.Context) (storage.Status, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.Status{Healthy: false, Detail: err.Error()}, nil
	}
	return storage.Status{Healthy: true, Detail: s.path}, nil
}

func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"nouns", "verbs", "metadata", "statistics", "change_log"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storage.ErrUnavailable
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
