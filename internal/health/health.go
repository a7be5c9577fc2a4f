// Package health tracks rolling request latency, error rate, and cache
// hit rate, classifies the instance as healthy/degraded/unhealthy
// (§4.K), and exports the same metrics through a dedicated Prometheus
// registry — owned by this package rather than the global one, so
// multiple stores in one process, or in tests, never collide on metric
// names.
package health

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Status is the three-way health classification (§4.K).
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Config tunes the classification thresholds. Zero values fall back to
// the package defaults.
type Config struct {
	WindowSize           int           // number of recent requests/cache checks tracked
	LatencyWarnThreshold time.Duration // degraded above this average latency
	WarnErrorRate        float64       // degraded at/above this error rate
	CriticalErrorRate    float64       // unhealthy at/above this error rate (§4.K: 5%)
	MinCacheSamples      int           // cache hit rate ignored until this many checks recorded ("after warmup")
	MinCacheHitRate      float64       // degraded below this hit rate, once warmed up (§4.K: 50%)
}

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = 200
	}
	if c.LatencyWarnThreshold <= 0 {
		c.LatencyWarnThreshold = 200 * time.Millisecond
	}
	if c.WarnErrorRate <= 0 {
		c.WarnErrorRate = 0.01
	}
	if c.CriticalErrorRate <= 0 {
		c.CriticalErrorRate = 0.05
	}
	if c.MinCacheSamples <= 0 {
		c.MinCacheSamples = 20
	}
	if c.MinCacheHitRate <= 0 {
		c.MinCacheHitRate = 0.5
	}
	return c
}

// Metrics is the rolling snapshot exposed to callers (§4.K, §6
// getHealthStatus).
type Metrics struct {
	AvgLatency    time.Duration
	ErrorRate     float64
	CacheHitRate  float64
	VectorCount   int64
	LastHeartbeat time.Time
}

// Snapshot is the full health report (§6 getHealthStatus shape).
type Snapshot struct {
	Status     Status
	Role       string
	InstanceID string
	Reason     string
	Metrics    Metrics
}

// Monitor accumulates rolling request/cache samples behind ring
// buffers and classifies instance health on demand.
type Monitor struct {
	cfg Config

	mu         sync.Mutex
	latencies  []time.Duration
	errors     []bool
	head       int
	filled     int
	cacheHits  []bool
	cacheHead  int
	cacheCount int

	vectorCount   int64
	lastHeartbeat time.Time

	breaker *gobreaker.CircuitBreaker
	metrics *promMetrics
}

// NewMonitor builds a Monitor. breaker, if non-nil, receives one
// synthetic failing Execute each time classification reaches Unhealthy;
// whether that opens it depends on the breaker's own ReadyToTrip
// settings. The root Store passes the breaker its storage writes go
// through. A Degraded classification does not touch the breaker and
// does not limit inserts.
func NewMonitor(cfg Config, breaker *gobreaker.CircuitBreaker) *Monitor {
	cfg = cfg.withDefaults()
	return &Monitor{
		cfg:       cfg,
		latencies: make([]time.Duration, cfg.WindowSize),
		errors:    make([]bool, cfg.WindowSize),
		cacheHits: make([]bool, cfg.WindowSize),
		breaker:   breaker,
		metrics:   newPromMetrics(),
	}
}

// Record adds one completed request's latency and outcome to the
// rolling window.
func (m *Monitor) Record(latency time.Duration, err error) {
	m.mu.Lock()
	m.latencies[m.head] = latency
	m.errors[m.head] = err != nil
	m.head = (m.head + 1) % len(m.latencies)
	if m.filled < len(m.latencies) {
		m.filled++
	}
	m.mu.Unlock()

	m.metrics.observeLatency(latency.Seconds())
	if err != nil {
		m.metrics.incError()
	}
}

// RecordCacheAccess adds one cache lookup outcome to the rolling window.
func (m *Monitor) RecordCacheAccess(hit bool) {
	m.mu.Lock()
	m.cacheHits[m.cacheHead] = hit
	m.cacheHead = (m.cacheHead + 1) % len(m.cacheHits)
	if m.cacheCount < len(m.cacheHits) {
		m.cacheCount++
	}
	m.mu.Unlock()
}

// SetVectorCount updates the total indexed vector count gauge.
func (m *Monitor) SetVectorCount(n int64) {
	m.mu.Lock()
	m.vectorCount = n
	m.mu.Unlock()
	m.metrics.setVectorCount(float64(n))
}

// Heartbeat records the current time as the last heartbeat.
func (m *Monitor) Heartbeat() {
	m.mu.Lock()
	m.lastHeartbeat = time.Now()
	m.mu.Unlock()
}

func (m *Monitor) metricsSnapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	var errCount int
	for i := 0; i < m.filled; i++ {
		total += m.latencies[i]
		if m.errors[i] {
			errCount++
		}
	}
	var avgLatency time.Duration
	var errorRate float64
	if m.filled > 0 {
		avgLatency = total / time.Duration(m.filled)
		errorRate = float64(errCount) / float64(m.filled)
	}

	var hitRate float64
	if m.cacheCount >= m.cfg.MinCacheSamples {
		var hits int
		for i := 0; i < m.cacheCount; i++ {
			if m.cacheHits[i] {
				hits++
			}
		}
		hitRate = float64(hits) / float64(m.cacheCount)
		m.metrics.setCacheHitRatio(hitRate)
	}

	return Metrics{
		AvgLatency:    avgLatency,
		ErrorRate:     errorRate,
		CacheHitRate:  hitRate,
		VectorCount:   m.vectorCount,
		LastHeartbeat: m.lastHeartbeat,
	}
}

// Classify evaluates the current rolling window against thresholds
// (§4.K) and returns a full Snapshot for the given role/instanceID.
func (m *Monitor) Classify(role, instanceID string) Snapshot {
	metrics := m.metricsSnapshot()
	warmedUp := m.cacheWarmedUp()

	status, reason := StatusHealthy, ""
	switch {
	case metrics.ErrorRate >= m.cfg.CriticalErrorRate:
		status, reason = StatusUnhealthy, "Critical error rate"
	case metrics.ErrorRate >= m.cfg.WarnErrorRate:
		status, reason = StatusDegraded, "Elevated error rate"
	case metrics.AvgLatency >= m.cfg.LatencyWarnThreshold:
		status, reason = StatusDegraded, "Elevated latency"
	case warmedUp && metrics.CacheHitRate < m.cfg.MinCacheHitRate:
		status, reason = StatusDegraded, "Low cache hit rate"
	}

	if status == StatusUnhealthy && m.breaker != nil {
		_, _ = m.breaker.Execute(func() (any, error) { return nil, errUnhealthy })
	}

	return Snapshot{Status: status, Role: role, InstanceID: instanceID, Reason: reason, Metrics: metrics}
}

func (m *Monitor) cacheWarmedUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheCount >= m.cfg.MinCacheSamples
}

var errUnhealthy = healthError("health: instance classified unhealthy")

type healthError string

func (e healthError) Error() string { return string(e) }
