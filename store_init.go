package brainy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
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
	"github.com/brainy/brainy/internal/storage/fsstore"
	"github.com/brainy/brainy/internal/storage/memstore"
	"github.com/brainy/brainy/internal/storage/objstore"
	"github.com/brainy/brainy/internal/storage/sqlitestore"
)

// New builds a Store from cfg: it validates configuration, opens the
// selected storage backend, resolves this instance's role through the
// shared distributed config record, and rebuilds every in-memory index
// from storage before returning (§4.H step 1-4, §4.E "cold start").
func New(cfg Config) (*Store, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NewLogger()
	}

	ctx := context.Background()

	adapter, err := buildAdapter(ctx, cfg.Storage)
	if err != nil {
		return nil, wrapErr("new", KindStorageUnavailable, string(cfg.Storage.Kind), err)
	}
	if err := adapter.Init(ctx); err != nil {
		return nil, wrapErr("new", KindStorageUnavailable, string(cfg.Storage.Kind), err)
	}

	kernel, err := distance.For(distance.Metric(cfg.Distance))
	if err != nil {
		return nil, wrapErr("new", KindInvalidConfig, "distance", err)
	}

	instanceID := cfg.Distributed.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	distMgr, err := distconfig.New(adapter, distconfig.Options{
		InstanceID:        instanceID,
		ConfiguredRole:    distconfig.Role(cfg.Distributed.Role),
		PartitionCount:    cfg.Distributed.PartitionCount,
		HeartbeatInterval: cfg.Distributed.HeartbeatInterval,
		PollInterval:      cfg.Distributed.PollInterval,
	})
	if err != nil {
		return nil, mapDistconfigErr("new", err)
	}
	if err := distMgr.Init(ctx); err != nil {
		return nil, mapDistconfigErr("new", err)
	}

	partitioner, err := partition.New(distMgr.PartitionCount())
	if err != nil {
		return nil, wrapErr("new", KindInvalidConfig, "distributed.partitionCount", err)
	}

	mode := NewMode(Role(distMgr.Role()), cfg.Distributed.AllowSearchOnWriter)

	typeIndex := hnsw.NewTypeIndex(hnsw.Config{
		M:              cfg.HNSW.M,
		EfConstruction: cfg.HNSW.EfConstruction,
		EfSearch:       cfg.HNSW.EfSearch,
	}, hnsw.Kernel(kernel))

	g := graph.New()
	metaIdx := metaindex.New(adapter)
	changeLog := changelog.New(adapter)

	var cache *query.ResultCache
	if cfg.Cache.SearchMaxSize > 0 {
		cache = query.NewResultCache(cfg.Cache.SearchMaxSize, cfg.Cache.SearchTTL)
	}
	planner := query.NewPlanner(cache)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "brainy-" + instanceID,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	monitor := health.NewMonitor(health.Config{}, breaker)

	s := &Store{
		config:      cfg,
		logger:      logger,
		mode:        mode,
		adapter:     adapter,
		dist:        kernel,
		metric:      distance.Metric(cfg.Distance),
		partitioner: partitioner,
		typeIndex:   typeIndex,
		graph:       g,
		metaIndex:   metaIdx,
		changeLog:   changeLog,
		distMgr:     distMgr,
		cache:       cache,
		planner:     planner,
		breaker:     breaker,
		health:      monitor,
		stats:       newServiceStats(),
	}

	if err := s.rebuildIndexes(ctx); err != nil {
		return nil, wrapErr("new", KindStorageUnavailable, "cold-start rebuild", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.timerLoop(runCtx)

	logger.Info("store initialized", "role", string(mode.Role()), "instanceId", instanceID, "partitionCount", partitioner.Count())
	return s, nil
}

func buildAdapter(ctx context.Context, cfg StorageConfig) (storage.Adapter, error) {
	switch cfg.Kind {
	case StorageMemory, "":
		return memstore.New(), nil
	case StorageFS:
		return fsstore.New(cfg.RootDir), nil
	case StorageObject:
		return objstore.New(ctx, objstore.Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	case StorageSQLite:
		return sqlitestore.New(cfg.Path), nil
	default:
		return nil, errors.New("brainy: unknown storage kind " + string(cfg.Kind))
	}
}

func mapDistconfigErr(op string, err error) error {
	switch {
	case errors.Is(err, distconfig.ErrRoleRequired):
		return wrapErr(op, KindRoleRequired, "distributed.role", err)
	case errors.Is(err, distconfig.ErrInvalidRole):
		return wrapErr(op, KindInvalidRole, "distributed.role", err)
	case errors.Is(err, distconfig.ErrPartitionCountImmutable):
		return wrapErr(op, KindInvalidConfig, "distributed.partitionCount", err)
	default:
		return wrapErr(op, KindStorageUnavailable, "distributed_config", err)
	}
}

// rebuildIndexes repopulates the type-aware HNSW index, the metadata
// index, the graph adjacency, and the service-keyed statistics from
// storage (§4.E "cold start", §4.D "rebuilt lazily", §8 "change-log
// replay ... reconstructs the current HNSW graph").
func (s *Store) rebuildIndexes(ctx context.Context) error {
	nouns, err := s.loadAllNouns(ctx)
	if err != nil {
		return err
	}

	byType := make(map[string][]hnsw.NounVector, 8)
	metaByID := make(map[string]map[string]any, len(nouns))
	for _, n := range nouns {
		byType[string(n.Type)] = append(byType[string(n.Type)], hnsw.NounVector{ID: n.ID, Vector: n.Vector})
		metaByID[n.ID] = n.Metadata
		s.bumpStats(&s.stats.nounCount, serviceOf(n.CreatedBy), 1)
		if len(n.Metadata) > 0 {
			s.bumpStats(&s.stats.metadataCount, serviceOf(n.CreatedBy), 1)
		}
	}

	if err := s.typeIndex.RebuildFromNouns(ctx, func(context.Context) (map[string][]hnsw.NounVector, error) {
		return byType, nil
	}); err != nil {
		return err
	}

	if err := s.metaIndex.Rebuild(ctx, func(context.Context) (map[string]map[string]any, error) {
		return metaByID, nil
	}); err != nil {
		return err
	}

	return s.rebuildGraph(ctx)
}

// rebuildGraph lists every verb of every known type via
// storage.Adapter.GetVerbsByType and replays it into graph adjacency.
// Deleted verbs never appear here, since DeleteVerb removes the record
// from storage outright, so unlike a change-log replay this does not
// depend on retention: a verb survives a restart in full as long as it
// is still in storage, regardless of how long ago it was written.
func (s *Store) rebuildGraph(ctx context.Context) error {
	for _, vt := range allVerbTypes() {
		raws, err := s.adapter.GetVerbsByType(ctx, string(vt))
		if err != nil {
			return err
		}
		for _, data := range raws {
			var v Verb
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			s.graph.AddEdge(graph.Edge{
				ID:       v.ID,
				Source:   v.Source,
				Target:   v.Target,
				VerbType: string(v.Verb),
				Weight:   v.Weight,
			})
			s.bumpStats(&s.stats.verbCount, serviceOf(v.CreatedBy), 1)
		}
	}
	return nil
}

// loadAllNouns pages through every noun record via the storage adapter.
func (s *Store) loadAllNouns(ctx context.Context) ([]*Noun, error) {
	var out []*Noun
	opts := storage.ListOptions{Limit: 500}
	for {
		page, err := s.adapter.GetNouns(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Items {
			var n Noun
			if err := json.Unmarshal(rec.Data, &n); err != nil {
				return nil, err
			}
			out = append(out, &n)
		}
		if !page.Pagination.HasMore || page.Pagination.Cursor == "" {
			break
		}
		opts.Cursor = page.Pagination.Cursor
	}
	return out, nil
}

func (s *Store) bumpStats(m *map[string]int, key string, delta int) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	(*m)[key] += delta
	s.stats.lastUpdated = time.Now()
}

// timerLoop is the single background goroutine driving heartbeat,
// config polling, change-log compaction, and statistics flush (§5
// "an auxiliary single-threaded timer-loop per process").
func (s *Store) timerLoop(ctx context.Context) {
	defer s.wg.Done()

	heartbeat := time.NewTicker(s.config.Distributed.HeartbeatInterval)
	poll := time.NewTicker(s.config.Distributed.PollInterval)
	compact := time.NewTicker(changelog.DefaultRetentionWindow / 24)
	statsFlush := time.NewTicker(time.Minute)
	defer heartbeat.Stop()
	defer poll.Stop()
	defer compact.Stop()
	defer statsFlush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if s.mode.Frozen() {
				continue
			}
			if err := s.distMgr.Heartbeat(ctx); err != nil {
				s.logger.Warn("heartbeat failed", "error", err)
			}
			s.health.Heartbeat()
		case <-poll.C:
			if s.mode.Frozen() {
				continue
			}
			if err := s.distMgr.Poll(ctx); err != nil {
				s.logger.Warn("config poll failed", "error", err)
			}
		case <-compact.C:
			if s.mode.Frozen() {
				continue
			}
			if err := s.changeLog.Compact(ctx, changelog.DefaultRetentionWindow); err != nil {
				s.logger.Warn("change-log compaction failed", "error", err)
			}
		case <-statsFlush.C:
			if s.mode.Frozen() {
				continue
			}
			if err := s.flushStatistics(ctx); err != nil {
				s.logger.Warn("statistics flush failed", "error", err)
			}
		}
	}
}
