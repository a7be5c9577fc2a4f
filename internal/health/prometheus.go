package health

import "github.com/prometheus/client_golang/prometheus"

// promMetrics owns a dedicated registry rather than registering onto
// prometheus.DefaultRegisterer, matching the pack's own Collector
// pattern (a process can run more than one Monitor — e.g. in tests, or
// multiple stores — without colliding on metric names).
type promMetrics struct {
	registry     *prometheus.Registry
	latency      prometheus.Histogram
	errorTotal   prometheus.Counter
	cacheHitRate prometheus.Gauge
	vectorCount  prometheus.Gauge
}

func newPromMetrics() *promMetrics {
	registry := prometheus.NewRegistry()

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brainy_request_latency_seconds",
		Help:    "Latency of store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	errorTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "brainy_error_total",
		Help: "Total number of failed store operations.",
	})
	cacheHitRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brainy_cache_hit_ratio",
		Help: "Rolling result-cache hit ratio.",
	})
	vectorCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brainy_vector_count",
		Help: "Total number of vectors indexed across all HNSW graphs.",
	})

	registry.MustRegister(latency, errorTotal, cacheHitRate, vectorCount)

	return &promMetrics{
		registry:     registry,
		latency:      latency,
		errorTotal:   errorTotal,
		cacheHitRate: cacheHitRate,
		vectorCount:  vectorCount,
	}
}

func (p *promMetrics) observeLatency(seconds float64) { p.latency.Observe(seconds) }
func (p *promMetrics) incError()                      { p.errorTotal.Inc() }
func (p *promMetrics) setCacheHitRatio(ratio float64) { p.cacheHitRate.Set(ratio) }
func (p *promMetrics) setVectorCount(count float64)   { p.vectorCount.Set(count) }

// Registry exposes the Monitor's dedicated Prometheus registry so the
// facade can serve it on a /metrics endpoint if the embedding
// application wants one.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.metrics.registry
}
