package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chriscantu/advisord/internal/memory"
)

var (
	promOnce   sync.Once
	promShared *promMetrics
)

// promMetrics mirrors monitor observations to the default Prometheus
// registry for scraping via /metrics.
type promMetrics struct {
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	cacheHitsTotal    prometheus.Counter
	layerMissesTotal  *prometheus.CounterVec
	fragmentsTotal    prometheus.Counter
	bytesTotal        prometheus.Counter
	bundleRelevance   prometheus.Histogram
	bundleCoverage    prometheus.Histogram
	outcomesTotal     prometheus.Counter
	writesFailedTotal prometheus.Counter
}

// newPromMetrics registers the shared collectors on first call, which keeps
// repeated monitor construction from panicking on duplicate registration.
// The first caller's latency bounds win.
func newPromMetrics(bucketsMS []float64) *promMetrics {
	promOnce.Do(func() {
		seconds := make([]float64, len(bucketsMS))
		for i, ms := range bucketsMS {
			seconds[i] = ms / 1000
		}

		promShared = &promMetrics{
			retrievalsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "retrievals_total",
					Help:      "Total context retrievals by result",
				},
				[]string{"result"}, // "ok" or "fallback"
			),
			retrievalDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "retrieval_duration_seconds",
					Help:      "Wall time of context retrievals in seconds",
					Buckets:   seconds,
				},
			),
			cacheHitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "cache_hits_total",
					Help:      "Total retrievals served from the bundle cache",
				},
			),
			layerMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "layer_misses_total",
					Help:      "Total per-layer query failures and timeouts",
				},
				[]string{"layer"},
			),
			fragmentsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "fragments_returned_total",
					Help:      "Total fragments packed into returned bundles",
				},
			),
			bytesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "bytes_returned_total",
					Help:      "Total bundle bytes returned to callers",
				},
			),
			bundleRelevance: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "bundle_relevance",
					Help:      "Overall relevance score of returned bundles",
					Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
				},
			),
			bundleCoverage: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "bundle_coverage",
					Help:      "Layer coverage of returned bundles",
					Buckets:   prometheus.LinearBuckets(0.2, 0.2, 5),
				},
			),
			outcomesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "outcomes_total",
					Help:      "Total outcome records accepted for persistence",
				},
			),
			writesFailedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "advisord",
					Subsystem: "orchestrator",
					Name:      "write_failures_total",
					Help:      "Total failed layer writes across outcome records",
				},
			),
		}
	})
	return promShared
}

func (p *promMetrics) observeRetrieval(metrics memory.RetrievalMetrics, bundle memory.ContextBundle, ms float64) {
	result := "ok"
	if bundle.Fallback {
		result = "fallback"
	}
	p.retrievalsTotal.WithLabelValues(result).Inc()
	p.retrievalDuration.Observe(ms / 1000)
	if metrics.CacheHit {
		p.cacheHitsTotal.Inc()
	}
	for kind := range metrics.LayerMisses {
		p.layerMissesTotal.WithLabelValues(kind.String()).Inc()
	}
	p.fragmentsTotal.Add(float64(metrics.FragmentsReturned))
	p.bytesTotal.Add(float64(metrics.BytesReturned))
	p.bundleRelevance.Observe(bundle.OverallRelevance)
	p.bundleCoverage.Observe(bundle.LayerCoverage)
}

func (p *promMetrics) observeOutcome(failed int) {
	p.outcomesTotal.Inc()
	if failed > 0 {
		p.writesFailedTotal.Add(float64(failed))
	}
}
