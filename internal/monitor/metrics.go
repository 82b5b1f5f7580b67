// Package monitor aggregates retrieval and outcome telemetry in process.
//
// The orchestrator reports every retrieval and every outcome write batch
// here. Aggregates live under a single mutex and are exposed through
// Snapshot for the stats API and the dashboard; each observation is also
// mirrored to Prometheus collectors for scraping.
package monitor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chriscantu/advisord/internal/memory"
)

// DefaultLatencyBucketsMS holds the upper bounds, in milliseconds, of the
// fixed retrieval latency histogram. Observations above the last bound land
// in an implicit overflow bucket.
var DefaultLatencyBucketsMS = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Config controls the in-process aggregator.
type Config struct {
	// BucketsMS overrides the latency histogram upper bounds, in
	// milliseconds. Bounds must be positive and strictly ascending.
	// Empty uses DefaultLatencyBucketsMS.
	BucketsMS []float64 `koanf:"buckets_ms"`
}

// AggregateMetrics is a point-in-time summary of everything recorded since
// construction or the last Reset.
type AggregateMetrics struct {
	Retrievals        uint64 `json:"retrievals"`
	CacheHits         uint64 `json:"cache_hits"`
	CacheMisses       uint64 `json:"cache_misses"`
	Fallbacks         uint64 `json:"fallbacks"`
	FragmentsReturned uint64 `json:"fragments_returned"`
	BytesReturned     uint64 `json:"bytes_returned"`
	BytesBudget       uint64 `json:"bytes_budget"`

	// MeanRelevance and MeanCoverage average the bundle scores over all
	// recorded retrievals, fallback bundles included.
	MeanRelevance float64 `json:"mean_relevance"`
	MeanCoverage  float64 `json:"mean_coverage"`

	// LatencyP50MS and LatencyP95MS approximate percentiles as the upper
	// bound of the histogram bucket holding the target observation.
	LatencyP50MS  float64 `json:"latency_p50_ms"`
	LatencyP95MS  float64 `json:"latency_p95_ms"`
	MeanLatencyMS float64 `json:"mean_latency_ms"`

	// LayerMisses counts, per layer, the retrievals in which that layer
	// failed or timed out.
	LayerMisses map[memory.LayerKind]uint64 `json:"layer_misses"`

	Outcomes        uint64 `json:"outcomes"`
	WritesAttempted uint64 `json:"writes_attempted"`
	WritesFailed    uint64 `json:"writes_failed"`
}

// PerformanceMonitor aggregates orchestrator telemetry under one mutex.
// Record and RecordWrite touch only the fixed histogram and a handful of
// counters, so the hot path performs no allocation.
type PerformanceMonitor struct {
	mu     sync.Mutex
	bounds []float64 // histogram upper bounds, milliseconds
	counts []uint64  // len(bounds)+1, last slot is overflow
	sumMS  float64

	retrievals   uint64
	cacheHits    uint64
	fallbacks    uint64
	fragments    uint64
	bytesOut     uint64
	bytesBudget  uint64
	relevanceSum float64
	coverageSum  float64
	misses       map[memory.LayerKind]uint64

	outcomes        uint64
	writesAttempted uint64
	writesFailed    uint64

	prom *promMetrics
}

// New builds a monitor using cfg's histogram bounds. The Prometheus
// collectors are registered with the default registry on first use and
// shared by every monitor in the process.
func New(cfg Config) (*PerformanceMonitor, error) {
	bounds := cfg.BucketsMS
	if len(bounds) == 0 {
		bounds = DefaultLatencyBucketsMS
	}
	for i, bound := range bounds {
		if bound <= 0 || (i > 0 && bound <= bounds[i-1]) {
			return nil, fmt.Errorf("%w: latency buckets must be positive and strictly ascending", memory.ErrInvalidArgument)
		}
	}

	return &PerformanceMonitor{
		bounds: append([]float64(nil), bounds...),
		counts: make([]uint64, len(bounds)+1),
		misses: make(map[memory.LayerKind]uint64, memory.LayerCount),
		prom:   newPromMetrics(bounds),
	}, nil
}

// Record folds one completed retrieval into the aggregate.
func (m *PerformanceMonitor) Record(metrics memory.RetrievalMetrics, bundle memory.ContextBundle) {
	ms := float64(metrics.TotalLatency) / float64(time.Millisecond)

	m.mu.Lock()
	m.retrievals++
	if metrics.CacheHit {
		m.cacheHits++
	}
	if bundle.Fallback {
		m.fallbacks++
	}
	m.fragments += uint64(metrics.FragmentsReturned)
	m.bytesOut += uint64(metrics.BytesReturned)
	// Degenerate retrievals carry the caller's budget as-is, which may
	// be negative; a negative value must not wrap the unsigned sum.
	if metrics.BytesBudget > 0 {
		m.bytesBudget += uint64(metrics.BytesBudget)
	}
	m.relevanceSum += bundle.OverallRelevance
	m.coverageSum += bundle.LayerCoverage
	m.counts[m.bucketFor(ms)]++
	m.sumMS += ms
	for kind := range metrics.LayerMisses {
		m.misses[kind]++
	}
	m.mu.Unlock()

	m.prom.observeRetrieval(metrics, bundle, ms)
}

// RecordWrite folds one outcome write batch into the aggregate.
func (m *PerformanceMonitor) RecordWrite(attempted, failed int) {
	m.mu.Lock()
	m.outcomes++
	m.writesAttempted += uint64(attempted)
	m.writesFailed += uint64(failed)
	m.mu.Unlock()

	m.prom.observeOutcome(failed)
}

// Snapshot returns a copy of the current aggregate. The returned map is
// owned by the caller.
func (m *PerformanceMonitor) Snapshot() AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := AggregateMetrics{
		Retrievals:        m.retrievals,
		CacheHits:         m.cacheHits,
		CacheMisses:       m.retrievals - m.cacheHits,
		Fallbacks:         m.fallbacks,
		FragmentsReturned: m.fragments,
		BytesReturned:     m.bytesOut,
		BytesBudget:       m.bytesBudget,
		LatencyP50MS:      m.quantileMS(0.50),
		LatencyP95MS:      m.quantileMS(0.95),
		LayerMisses:       make(map[memory.LayerKind]uint64, len(m.misses)),
		Outcomes:          m.outcomes,
		WritesAttempted:   m.writesAttempted,
		WritesFailed:      m.writesFailed,
	}
	if m.retrievals > 0 {
		n := float64(m.retrievals)
		snap.MeanRelevance = m.relevanceSum / n
		snap.MeanCoverage = m.coverageSum / n
		snap.MeanLatencyMS = m.sumMS / n
	}
	for kind, count := range m.misses {
		snap.LayerMisses[kind] = count
	}
	return snap
}

// Reset clears the aggregate state. Prometheus collectors are cumulative by
// contract and are left untouched.
func (m *PerformanceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.counts {
		m.counts[i] = 0
	}
	m.sumMS = 0
	m.retrievals = 0
	m.cacheHits = 0
	m.fallbacks = 0
	m.fragments = 0
	m.bytesOut = 0
	m.bytesBudget = 0
	m.relevanceSum = 0
	m.coverageSum = 0
	clear(m.misses)
	m.outcomes = 0
	m.writesAttempted = 0
	m.writesFailed = 0
}

func (m *PerformanceMonitor) bucketFor(ms float64) int {
	for i, bound := range m.bounds {
		if ms <= bound {
			return i
		}
	}
	return len(m.bounds)
}

// quantileMS returns the upper bound of the bucket holding the q-th
// observation. Overflow observations report the last configured bound.
// Callers must hold m.mu.
func (m *PerformanceMonitor) quantileMS(q float64) float64 {
	var total uint64
	for _, count := range m.counts {
		total += count
	}
	if total == 0 {
		return 0
	}

	rank := uint64(math.Ceil(q * float64(total)))
	if rank == 0 {
		rank = 1
	}
	var cum uint64
	for i, count := range m.counts {
		cum += count
		if cum >= rank {
			if i < len(m.bounds) {
				return m.bounds[i]
			}
			break
		}
	}
	return m.bounds[len(m.bounds)-1]
}
