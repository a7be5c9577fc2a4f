package brainy

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/brainy/brainy/internal/changelog"
	"github.com/brainy/brainy/internal/distance"
	"github.com/brainy/brainy/internal/distconfig"
	"github.com/brainy/brainy/internal/graph"
	"github.com/brainy/brainy/internal/health"
	"github.com/brainy/brainy/internal/hnsw"
	"github.com/brainy/brainy/internal/metaindex"
	"github.com/brainy/brainy/internal/partition"
	"github.com/brainy/brainy/internal/query"
	"github.com/brainy/brainy/internal/storage"
)

// Store is a single embeddable vector-plus-graph instance. Every field
// below is one component from the design (§4.A-L): a storage backend,
// a type-aware HNSW index, graph adjacency, a metadata index, a change
// log, a distributed config manager, a query planner, and a health
// monitor, all composed behind the public methods in store_crud.go,
// store_search.go, and store_health.go.
type Store struct {
	config Config
	logger Logger
	mode   *Mode

	adapter storage.Adapter
	dist    distance.Kernel
	metric  distance.Metric

	partitioner *partition.Partitioner
	typeIndex   *hnsw.TypeIndex
	graph       *graph.Graph
	metaIndex   *metaindex.Index
	changeLog   *changelog.Log
	distMgr     *distconfig.Manager

	cache   *query.ResultCache
	planner *query.Planner

	breaker *gobreaker.CircuitBreaker
	health  *health.Monitor

	statsMu sync.Mutex
	stats   serviceStats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// serviceStats accumulates the per-service counters exposed by
// GetStatistics (§6 "getStatistics"). Keyed by CreatedBy.Service, with
// "" standing in for records that never named a service.
type serviceStats struct {
	nounCount     map[string]int
	verbCount     map[string]int
	metadataCount map[string]int
	lastUpdated   time.Time
}

func newServiceStats() serviceStats {
	return serviceStats{
		nounCount:     make(map[string]int),
		verbCount:     make(map[string]int),
		metadataCount: make(map[string]int),
	}
}

func nowTimestamp() Timestamp {
	now := time.Now()
	return Timestamp{Seconds: now.Unix(), Nanoseconds: int32(now.Nanosecond())}
}

func serviceOf(createdBy *CreatedBy) string {
	if createdBy == nil {
		return ""
	}
	return createdBy.Service
}

// recordLatency feeds the time elapsed since start, and whether err is
// set, to the health monitor (§4.K), regardless of success or failure.
func (s *Store) recordLatency(start time.Time, err error) {
	s.health.Record(time.Since(start), err)
}
