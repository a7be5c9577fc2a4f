// Package storage defines the capability-set interface every backend
// (memory, filesystem, object store, sqlite) implements (spec §4.B), plus
// the shared record and paging types that flow across it.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is wrapped into the caller-facing StorageUnavailable kind
// by the root package when any Adapter method cannot confirm a write or
// read against its backend.
var ErrUnavailable = errors.New("storage: backend unavailable")

// ErrNotFound is returned by Get* methods when the entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// EntityKind names the six persisted record families (§4.B layout).
type EntityKind string

const (
	KindNoun       EntityKind = "nouns"
	KindVerb       EntityKind = "verbs"
	KindMetadata   EntityKind = "metadata"
	KindStatistics EntityKind = "statistics"
	KindChangeLog  EntityKind = "changes"
	KindConfig     EntityKind = "config"
)

// Record is a generic, already-serialized entity. Adapters store and
// retrieve opaque bytes; encoding/decoding into Go types happens above
// this package (in the root store and its component packages), keeping
// the Adapter interface backend-agnostic.
type Record struct {
	Kind      EntityKind
	Partition string
	ID        string
	Data      []byte
}

// Page is a single page of a listing operation.
type Page struct {
	Items      []Record
	Pagination Pagination
}

// Pagination describes a page's position in a larger listing. Total is
// optional — backends that cannot cheaply count (e.g. object stores)
// leave it at 0.
type Pagination struct {
	Cursor   string
	Limit    int
	Total    int
	HasMore  bool
}

// ListOptions bounds a listing call.
type ListOptions struct {
	Partition string // restrict to one partition; "" means all
	Cursor    string
	Limit     int
}

// ChangeEntry is one append-only change-log record (§4.C, §3).
type ChangeEntry struct {
	Timestamp  time.Time
	Sequence   uint64
	EntityType EntityKind
	EntityID   string
	Op         ChangeOp
}

// ChangeOp names the two change-log operation kinds.
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// Status summarizes a backend's current reachability, for the health
// monitor and for getStorageStatus.
type Status struct {
	Healthy bool
	Detail  string
}

// Adapter is the capability set every storage backend implements (§4.B).
// Every write is atomic at the entity granularity: no torn reads of a
// single entity are possible, regardless of backend.
type Adapter interface {
	Init(ctx context.Context) error

	SaveNoun(ctx context.Context, partition, id string, data []byte) error
	GetNoun(ctx context.Context, partition, id string) ([]byte, error)
	DeleteNoun(ctx context.Context, partition, id string) error
	GetNouns(ctx context.Context, opts ListOptions) (Page, error)

	SaveVerb(ctx context.Context, partition, id string, data []byte) error
	GetVerb(ctx context.Context, partition, id string) ([]byte, error)
	GetVerbsBySource(ctx context.Context, sourceID string) ([][]byte, error)
	GetVerbsByTarget(ctx context.Context, targetID string) ([][]byte, error)
	GetVerbsByType(ctx context.Context, verbType string) ([][]byte, error)
	DeleteVerb(ctx context.Context, partition, id string) error

	SaveMetadata(ctx context.Context, key string, data []byte) error
	GetMetadata(ctx context.Context, key string) ([]byte, error)

	AppendChange(ctx context.Context, e ChangeEntry) error
	GetChangesSince(ctx context.Context, t time.Time) ([]ChangeEntry, error)
	CompactChangesBefore(ctx context.Context, t time.Time) error

	SaveStatistics(ctx context.Context, day string, data []byte) error
	GetStatistics(ctx context.Context, day string) ([]byte, error)

	GetStorageStatus(ctx context.Context) (Status, error)
	Clear(ctx context.Context) error
}
