package brainy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brainy/brainy/internal/storage"
)

// HealthStatus is the root-level mirror of internal/health.Snapshot
// (§6 getHealthStatus) — kept as its own type so callers never import
// an internal package.
type HealthStatus struct {
	Status     string
	Role       string
	InstanceID string
	Reason     string
	Metrics    HealthMetrics

	// PeerStates classifies every instance registered in the shared
	// distributed config record as "uninitialized", "active", or
	// "expired" (§4.H), keyed by instance ID.
	PeerStates map[string]string
}

// HealthMetrics mirrors internal/health.Metrics.
type HealthMetrics struct {
	AvgLatency    time.Duration
	ErrorRate     float64
	CacheHitRate  float64
	VectorCount   int64
	LastHeartbeat time.Time
}

// GetHealthStatus classifies the instance's current health (§4.K) and
// feeds the live vector count into the snapshot before returning it.
func (s *Store) GetHealthStatus(ctx context.Context) (HealthStatus, error) {
	var total int64
	for _, t := range s.typeIndex.ActiveTypes() {
		total += int64(s.typeIndex.Size(t))
	}
	s.health.SetVectorCount(total)

	snap := s.health.Classify(string(s.mode.Role()), s.config.Distributed.InstanceID)

	peerStates := make(map[string]string)
	for id, state := range s.distMgr.InstanceStates() {
		peerStates[id] = string(state)
	}

	return HealthStatus{
		Status:     string(snap.Status),
		Role:       snap.Role,
		InstanceID: snap.InstanceID,
		Reason:     snap.Reason,
		Metrics: HealthMetrics{
			AvgLatency:    snap.Metrics.AvgLatency,
			ErrorRate:     snap.Metrics.ErrorRate,
			CacheHitRate:  snap.Metrics.CacheHitRate,
			VectorCount:   snap.Metrics.VectorCount,
			LastHeartbeat: snap.Metrics.LastHeartbeat,
		},
		PeerStates: peerStates,
	}, nil
}

// Statistics is the root-level shape returned by GetStatistics (§6
// getStatistics), keyed by CreatedBy.Service.
type Statistics struct {
	NounCount     map[string]int
	VerbCount     map[string]int
	MetadataCount map[string]int
	HNSWIndexSize int
	LastUpdated   time.Time
}

// GetStatistics returns a snapshot of the service-keyed counters
// maintained since cold start (§6).
func (s *Store) GetStatistics(ctx context.Context) (Statistics, error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	var hnswSize int
	for _, t := range s.typeIndex.ActiveTypes() {
		hnswSize += s.typeIndex.Size(t)
	}

	return Statistics{
		NounCount:     cloneCounts(s.stats.nounCount),
		VerbCount:     cloneCounts(s.stats.verbCount),
		MetadataCount: cloneCounts(s.stats.metadataCount),
		HNSWIndexSize: hnswSize,
		LastUpdated:   s.stats.lastUpdated,
	}, nil
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// flushStatistics persists the current counters under today's UTC day
// key (§4.B layout "index/statistics_<YYYYMMDD>.json"), invoked once a
// minute by the timer loop.
func (s *Store) flushStatistics(ctx context.Context) error {
	stats, err := s.GetStatistics(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	day := time.Now().UTC().Format("20060102")
	return s.adapter.SaveStatistics(ctx, day, data)
}

// ChangeEntry is the root-level mirror of internal/storage.ChangeEntry
// returned by GetChangesSince, so callers never import internal/storage.
type ChangeEntry struct {
	Timestamp  time.Time
	EntityType string
	EntityID   string
	Op         string
}

// GetChangesSince returns every change-log entry recorded strictly
// after t (§4.C).
func (s *Store) GetChangesSince(ctx context.Context, t time.Time) ([]ChangeEntry, error) {
	entries, err := s.changeLog.Since(ctx, t)
	if err != nil {
		return nil, wrapErr("getChangesSince", KindStorageUnavailable, "", err)
	}
	out := make([]ChangeEntry, len(entries))
	for i, e := range entries {
		out[i] = ChangeEntry{
			Timestamp:  e.Timestamp,
			EntityType: string(e.EntityType),
			EntityID:   e.EntityID,
			Op:         string(e.Op),
		}
	}
	return out, nil
}

// GetActiveTypes returns every noun type with at least one vector
// currently indexed (§4.D "lazily" — a type with zero nouns never
// appears).
func (s *Store) GetActiveTypes(ctx context.Context) []NounType {
	active := s.typeIndex.ActiveTypes()
	out := make([]NounType, len(active))
	for i, t := range active {
		out[i] = NounType(t)
	}
	return out
}

// GetStorageStatus reports the underlying backend's reachability,
// passed straight through from the storage adapter.
func (s *Store) GetStorageStatus(ctx context.Context) (storage.Status, error) {
	return s.adapter.GetStorageStatus(ctx)
}
