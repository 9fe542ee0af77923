package build

import (
	"sync/atomic"
	"time"
)

// Metrics aggregates pipeline counters. All fields are updated atomically
// by the workers.
type Metrics struct {
	built        int64
	cacheHits    int64
	failures     int64
	bytesWritten int64
	startedAt    time.Time
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Built        int64
	CacheHits    int64
	Failures     int64
	BytesWritten int64
	Elapsed      time.Duration
}

// NewMetrics creates metrics with the clock started.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func (m *Metrics) recordBuilt(bytes int64) {
	atomic.AddInt64(&m.built, 1)
	atomic.AddInt64(&m.bytesWritten, bytes)
}

func (m *Metrics) recordCacheHit() {
	atomic.AddInt64(&m.cacheHits, 1)
}

func (m *Metrics) recordFailure() {
	atomic.AddInt64(&m.failures, 1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Built:        atomic.LoadInt64(&m.built),
		CacheHits:    atomic.LoadInt64(&m.cacheHits),
		Failures:     atomic.LoadInt64(&m.failures),
		BytesWritten: atomic.LoadInt64(&m.bytesWritten),
		Elapsed:      time.Since(m.startedAt),
	}
}

// Total returns the number of units that reached a terminal state.
func (s MetricsSnapshot) Total() int64 {
	return s.Built + s.CacheHits + s.Failures
}

// FailureRate returns failures over total in [0.0, 1.0].
func (s MetricsSnapshot) FailureRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0.0
	}
	return float64(s.Failures) / float64(total)
}
