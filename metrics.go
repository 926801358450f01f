package shelfauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that produced a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected for any reason.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the per-IP throttle.
	MetricLoginRateLimited
	// MetricLoginAudienceMismatch counts ID tokens minted for another client.
	MetricLoginAudienceMismatch
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected or failed rotations.
	MetricRefreshFailure
	// MetricSessionCreated counts issued sessions (login and refresh).
	MetricSessionCreated
	// MetricSessionIssueFailure counts infrastructure failures while issuing.
	MetricSessionIssueFailure
	// MetricLogout counts logout calls.
	MetricLogout
	// MetricAuthenticateSuccess counts accepted access tokens.
	MetricAuthenticateSuccess
	// MetricAuthenticateFailure counts rejected access tokens.
	MetricAuthenticateFailure
	// MetricCacheHit counts cache-aside hits.
	MetricCacheHit
	// MetricCacheMiss counts cache-aside misses.
	MetricCacheMiss
	// MetricCacheComputeFailure counts compute callbacks that returned an error.
	MetricCacheComputeFailure
	// MetricCacheStoreFailure counts key-value read or write errors absorbed by the cache.
	MetricCacheStoreFailure
	// MetricCatalogSearchFailure counts upstream search failures absorbed as empty pages.
	MetricCatalogSearchFailure
	// MetricCatalogBookFailure counts upstream volume failures absorbed as not found.
	MetricCatalogBookFailure
	// MetricAuthenticateLatency is the Authenticate latency histogram.
	MetricAuthenticateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram id.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}

	return s
}

// bucket upper bounds: 5ms 10ms 25ms 50ms 100ms 250ms 500ms +Inf
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

// cacheMetrics adapts Metrics to catalog.Observer.
type cacheMetrics struct {
	metrics *Metrics
}

func (c cacheMetrics) CacheHit(string)  { c.metrics.Inc(MetricCacheHit) }
func (c cacheMetrics) CacheMiss(string) { c.metrics.Inc(MetricCacheMiss) }

func (c cacheMetrics) ComputeFailed(string, error) {
	c.metrics.Inc(MetricCacheComputeFailure)
}

func (c cacheMetrics) StoreFailed(string, error) {
	c.metrics.Inc(MetricCacheStoreFailure)
}

func (c cacheMetrics) UpstreamFailed(op string, _ error) {
	if op == "search" {
		c.metrics.Inc(MetricCatalogSearchFailure)
		return
	}
	c.metrics.Inc(MetricCatalogBookFailure)
}
