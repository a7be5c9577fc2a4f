package health

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestClassifyHealthyWithNoSamples(t *testing.T) {
	m := NewMonitor(Config{}, nil)
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusHealthy {
		t.Fatalf("expected healthy with no samples, got %s", snap.Status)
	}
}

func TestClassifyDegradedOnElevatedErrorRate(t *testing.T) {
	m := NewMonitor(Config{WindowSize: 100, WarnErrorRate: 0.01, CriticalErrorRate: 0.05}, nil)
	for i := 0; i < 100; i++ {
		var err error
		if i < 2 { // 2% error rate: above warn, below critical
			err = errors.New("boom")
		}
		m.Record(time.Millisecond, err)
	}
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s (%s)", snap.Status, snap.Reason)
	}
}

func TestClassifyUnhealthyOnCriticalErrorRate(t *testing.T) {
	m := NewMonitor(Config{WindowSize: 100, WarnErrorRate: 0.01, CriticalErrorRate: 0.05}, nil)
	for i := 0; i < 100; i++ {
		var err error
		if i < 10 { // 10% error rate
			err = errors.New("boom")
		}
		m.Record(time.Millisecond, err)
	}
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", snap.Status)
	}
	if snap.Reason != "Critical error rate" {
		t.Fatalf("expected critical error rate reason, got %q", snap.Reason)
	}
}

func TestClassifyDegradedOnHighLatency(t *testing.T) {
	m := NewMonitor(Config{WindowSize: 10, LatencyWarnThreshold: 10 * time.Millisecond}, nil)
	for i := 0; i < 10; i++ {
		m.Record(50*time.Millisecond, nil)
	}
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusDegraded {
		t.Fatalf("expected degraded on high latency, got %s", snap.Status)
	}
}

func TestCacheHitRateIgnoredBeforeWarmup(t *testing.T) {
	m := NewMonitor(Config{MinCacheSamples: 20, MinCacheHitRate: 0.5}, nil)
	for i := 0; i < 5; i++ {
		m.RecordCacheAccess(false)
	}
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusHealthy {
		t.Fatalf("expected healthy before cache warmup, got %s", snap.Status)
	}
}

func TestCacheHitRateDegradesAfterWarmup(t *testing.T) {
	m := NewMonitor(Config{WindowSize: 50, MinCacheSamples: 20, MinCacheHitRate: 0.5}, nil)
	for i := 0; i < 30; i++ {
		m.RecordCacheAccess(false)
	}
	snap := m.Classify("hybrid", "i1")
	if snap.Status != StatusDegraded {
		t.Fatalf("expected degraded after warmup with 0%% hit rate, got %s", snap.Status)
	}
}

func TestSetVectorCountReflectedInSnapshot(t *testing.T) {
	m := NewMonitor(Config{}, nil)
	m.SetVectorCount(42)
	snap := m.Classify("hybrid", "i1")
	if snap.Metrics.VectorCount != 42 {
		t.Fatalf("expected vector count 42, got %d", snap.Metrics.VectorCount)
	}
}

func TestHeartbeatRecordsTimestamp(t *testing.T) {
	m := NewMonitor(Config{}, nil)
	before := time.Now()
	m.Heartbeat()
	snap := m.Classify("hybrid", "i1")
	if snap.Metrics.LastHeartbeat.Before(before) {
		t.Fatal("expected heartbeat timestamp to be recorded")
	}
}

func TestUnhealthyTripsSharedBreaker(t *testing.T) {
	var tripped bool
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "test",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				tripped = true
			}
		},
	})
	m := NewMonitor(Config{WindowSize: 10, CriticalErrorRate: 0.05}, cb)
	for i := 0; i < 10; i++ {
		m.Record(time.Millisecond, errors.New("boom"))
	}
	m.Classify("hybrid", "i1")
	if !tripped {
		t.Fatal("expected unhealthy classification to trip the shared breaker")
	}
}

func TestRegistryExposesMetrics(t *testing.T) {
	m := NewMonitor(Config{}, nil)
	m.Record(time.Millisecond, nil)
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}
