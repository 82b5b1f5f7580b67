package main

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/chriscantu/advisord/internal/monitor"
	"github.com/chriscantu/advisord/internal/telemetry"
)

// registerMonitorMirror exposes the monitor's aggregates through the OTEL
// meter so collectors see the same numbers as /v1/stats. Everything is
// observed as a gauge because a stats reset rewinds the counts.
func registerMonitorMirror(tel *telemetry.Telemetry, mon *monitor.PerformanceMonitor) error {
	meter := tel.Meter("advisord/monitor")

	_, err := meter.Int64ObservableGauge(
		"advisord.retrievals",
		metric.WithDescription("Retrievals recorded since start or the last stats reset"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(mon.Snapshot().Retrievals))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"advisord.retrieval_latency_p95_ms",
		metric.WithDescription("Approximate 95th percentile retrieval latency"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(mon.Snapshot().LatencyP95MS)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"advisord.cache_hit_ratio",
		metric.WithDescription("Bundle cache hits over lookups"),
		metric.WithUnit("1"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			s := mon.Snapshot()
			lookups := s.CacheHits + s.CacheMisses
			if lookups == 0 {
				o.Observe(0)
				return nil
			}
			o.Observe(float64(s.CacheHits) / float64(lookups))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Float64ObservableGauge(
		"advisord.bundle_mean_coverage",
		metric.WithDescription("Mean layer coverage across served bundles"),
		metric.WithUnit("1"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(mon.Snapshot().MeanCoverage)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Int64ObservableGauge(
		"advisord.outcome_writes_failed",
		metric.WithDescription("Failed layer writes during outcome fan-out"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(mon.Snapshot().WritesFailed))
			return nil
		}),
	)
	return err
}
