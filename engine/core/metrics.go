package core

import (
	"sync/atomic"
	"time"
)

// ResourceMetrics counts resource events of one manager. Counters may be read
// from any goroutine.
type ResourceMetrics struct {
	PoolsCreated     atomic.Uint64
	PoolsReset       atomic.Uint64
	PoolsDestroyed   atomic.Uint64
	AllocRetries     atomic.Uint64
	AllocFailures    atomic.Uint64
	LayoutCacheHits  atomic.Uint64
	LayoutCacheMiss  atomic.Uint64
	Submits          atomic.Uint64
	Uploads          atomic.Uint64
	UploadedBytes    atomic.Uint64
	AssetsDestroyed  atomic.Uint64
	submitTimeTotal  atomic.Int64
	submitTimeLatest atomic.Int64
}

// MetricsSnapshot is a plain copy of ResourceMetrics.
type MetricsSnapshot struct {
	PoolsCreated    uint64
	PoolsReset      uint64
	PoolsDestroyed  uint64
	AllocRetries    uint64
	AllocFailures   uint64
	LayoutCacheHits uint64
	LayoutCacheMiss uint64
	Submits         uint64
	Uploads         uint64
	UploadedBytes   uint64
	AssetsDestroyed uint64
	LastSubmitTime  time.Duration
	AverageSubmitMS float64
}

// RecordSubmit adds one immediate submit that took d.
func (m *ResourceMetrics) RecordSubmit(d time.Duration) {
	m.Submits.Add(1)
	m.submitTimeTotal.Add(int64(d))
	m.submitTimeLatest.Store(int64(d))
}

func (m *ResourceMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		PoolsCreated:    m.PoolsCreated.Load(),
		PoolsReset:      m.PoolsReset.Load(),
		PoolsDestroyed:  m.PoolsDestroyed.Load(),
		AllocRetries:    m.AllocRetries.Load(),
		AllocFailures:   m.AllocFailures.Load(),
		LayoutCacheHits: m.LayoutCacheHits.Load(),
		LayoutCacheMiss: m.LayoutCacheMiss.Load(),
		Submits:         m.Submits.Load(),
		Uploads:         m.Uploads.Load(),
		UploadedBytes:   m.UploadedBytes.Load(),
		AssetsDestroyed: m.AssetsDestroyed.Load(),
		LastSubmitTime:  time.Duration(m.submitTimeLatest.Load()),
	}
	if s.Submits > 0 {
		total := time.Duration(m.submitTimeTotal.Load())
		s.AverageSubmitMS = float64(total.Microseconds()) / 1000.0 / float64(s.Submits)
	}
	return s
}
