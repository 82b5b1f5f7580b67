package orchestrator

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/memory"
)

// fallbackContent is served when no layer can contribute.
const fallbackContent = "Context retrieval is degraded: no memory layer " +
	"responded for this query. Advice will rely on general engineering " +
	"leadership principles rather than session, initiative, or stakeholder " +
	"history."

// Retrieve assembles the best context bundle for the query within
// maxBytes. It never fails on layer trouble: layers that error or time
// out are recorded as misses, and if every layer misses the bundle
// degrades to a single synthetic fragment. The only non-nil error paths
// are programmer mistakes surfaced before any layer is asked.
func (o *Orchestrator) Retrieve(ctx context.Context, query, sessionID string, maxBytes int) (memory.ContextBundle, memory.RetrievalMetrics, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "Orchestrator.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.Int("max_bytes", maxBytes),
	)

	// A budget too small to hold anything degrades to a metadata-only
	// bundle rather than an error.
	if maxBytes <= 0 {
		bundle := memory.ContextBundle{CoherenceScore: 1, Fallback: true}
		metrics := memory.RetrievalMetrics{
			TotalLatency: time.Since(start),
			BytesBudget:  maxBytes,
		}
		span.SetStatus(codes.Ok, "degraded: unusable byte budget")
		o.observe(ctx, sessionID, bundle, metrics)
		return bundle, metrics, nil
	}

	if bundle, ok := o.cachedBundle(sessionID, query, maxBytes); ok {
		metrics := memory.RetrievalMetrics{
			TotalLatency:      time.Since(start),
			FragmentsReturned: len(bundle.Fragments),
			BytesReturned:     bundle.SizeBytes,
			BytesBudget:       maxBytes,
			CacheHit:          true,
		}
		span.SetAttributes(attribute.Bool("cache_hit", true))
		o.observe(ctx, sessionID, bundle, metrics)
		return bundle, metrics, nil
	}

	fragments, metrics := o.queryLayers(ctx, query, sessionID)
	metrics.BytesBudget = maxBytes

	bundle := o.assemble(fragments, maxBytes)
	if len(metrics.LayerMisses) == len(o.layers) {
		bundle = fallbackBundle(maxBytes)
		o.logger.Warn(ctx, "all context layers missed, serving fallback bundle",
			zap.String("session_id", sessionID),
			zap.Any("misses", metrics.LayerMisses),
		)
	}
	metrics.FragmentsReturned = len(bundle.Fragments)
	metrics.BytesReturned = bundle.SizeBytes
	metrics.TotalLatency = time.Since(start)

	o.storeBundle(sessionID, query, maxBytes, bundle)

	span.SetAttributes(
		attribute.Int("fragments", len(bundle.Fragments)),
		attribute.Float64("coverage", bundle.LayerCoverage),
		attribute.Bool("fallback", bundle.Fallback),
	)
	span.SetStatus(codes.Ok, "")
	o.observe(ctx, sessionID, bundle, metrics)
	return bundle, metrics, nil
}

type layerResult struct {
	kind      memory.LayerKind
	fragments []memory.Fragment
	latency   time.Duration
	err       error
}

// queryLayers fans the query out to every layer under the global
// deadline, each layer additionally bounded by its own timeout.
func (o *Orchestrator) queryLayers(ctx context.Context, query, sessionID string) ([]memory.Fragment, memory.RetrievalMetrics) {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalDeadline)
	defer cancel()
	perLayer := o.cfg.layerTimeout(len(o.layers))

	// Buffered to the layer count so a straggler finishing after the
	// global deadline never blocks on send.
	results := make(chan layerResult, len(o.layers))
	for _, layer := range o.layers {
		go func(l memory.Layer) {
			lctx, lcancel := context.WithTimeout(gctx, perLayer)
			defer lcancel()
			lstart := time.Now()
			lctx, lspan := tracer.Start(lctx, "Orchestrator.layerQuery")
			lspan.SetAttributes(attribute.String("layer", l.Kind().String()))
			fragments, err := l.Query(lctx, query, sessionID, o.cfg.LayerLimit)
			if err != nil {
				lspan.RecordError(err)
				lspan.SetStatus(codes.Error, err.Error())
			}
			lspan.End()
			results <- layerResult{kind: l.Kind(), fragments: fragments, latency: time.Since(lstart), err: err}
		}(layer)
	}

	metrics := memory.RetrievalMetrics{
		LayerLatencies: make(map[memory.LayerKind]time.Duration, len(o.layers)),
		LayerMisses:    make(map[memory.LayerKind]string),
	}
	var fragments []memory.Fragment
	fanStart := time.Now()

collect:
	for pending := len(o.layers); pending > 0; pending-- {
		select {
		case r := <-results:
			metrics.LayerLatencies[r.kind] = r.latency
			if r.err != nil {
				metrics.LayerMisses[r.kind] = missReason(r.err)
				o.logger.Debug(ctx, "layer missed",
					zap.String("layer", r.kind.String()),
					zap.Error(r.err),
				)
				continue
			}
			metrics.FragmentsRetrieved += len(r.fragments)
			fragments = append(fragments, r.fragments...)
		case <-gctx.Done():
			break collect
		}
	}

	// Layers that never reported before the global deadline are misses.
	for _, layer := range o.layers {
		kind := layer.Kind()
		if _, ok := metrics.LayerLatencies[kind]; !ok {
			metrics.LayerLatencies[kind] = time.Since(fanStart)
			metrics.LayerMisses[kind] = "timeout"
		}
	}
	return fragments, metrics
}

// missReason collapses deadline-shaped errors to "timeout" and keeps the
// layer's own message otherwise.
func missReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, memory.ErrTimeout) {
		return "timeout"
	}
	return err.Error()
}

// assemble floors, orders, and packs fragments into a bundle.
func (o *Orchestrator) assemble(fragments []memory.Fragment, maxBytes int) memory.ContextBundle {
	eligible := make([]memory.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Relevance >= o.cfg.RelevanceFloor {
			eligible = append(eligible, f)
		}
	}

	// Relevance first, then the fixed layer order, then recency. The
	// stable sort keeps layer-internal ordering for full ties.
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Relevance != eligible[j].Relevance {
			return eligible[i].Relevance > eligible[j].Relevance
		}
		pi, pj := eligible[i].Layer.Priority(), eligible[j].Layer.Priority()
		if pi != pj {
			return pi < pj
		}
		return eligible[i].SourceTimestamp.After(eligible[j].SourceTimestamp)
	})

	// Greedy packing: a fragment that overflows the budget is skipped
	// whole, never cut, and packing continues with the next one.
	var packed []memory.Fragment
	size := 0
	for _, f := range eligible {
		if size+f.SizeBytes > maxBytes {
			continue
		}
		packed = append(packed, f)
		size += f.SizeBytes
	}

	return memory.ContextBundle{
		Fragments:        packed,
		OverallRelevance: weightedRelevance(packed),
		CoherenceScore:   coherence(packed),
		LayerCoverage:    coverage(packed),
		SizeBytes:        size,
	}
}

// weightedRelevance is the size-weighted mean relevance of the packed
// fragments.
func weightedRelevance(fragments []memory.Fragment) float64 {
	var sum, weight float64
	for _, f := range fragments {
		sum += f.Relevance * float64(f.SizeBytes)
		weight += float64(f.SizeBytes)
	}
	if weight == 0 {
		return 0
	}
	return memory.Clamp01(sum / weight)
}

// coherence is the fraction of fragment pairs sharing at least one
// keyword. Fewer than two fragments have no pairs to disagree.
func coherence(fragments []memory.Fragment) float64 {
	if len(fragments) < 2 {
		return 1
	}
	pairs, shared := 0, 0
	for i := 0; i < len(fragments); i++ {
		for j := i + 1; j < len(fragments); j++ {
			pairs++
			if memory.SharesKeyword(fragments[i].Keywords, fragments[j].Keywords) {
				shared++
			}
		}
	}
	return float64(shared) / float64(pairs)
}

// coverage is the fraction of the five layers with at least one packed
// fragment. The synthetic fallback layer never counts.
func coverage(fragments []memory.Fragment) float64 {
	seen := make(map[memory.LayerKind]struct{}, memory.LayerCount)
	for _, f := range fragments {
		if f.Layer.Valid() {
			seen[f.Layer] = struct{}{}
		}
	}
	return float64(len(seen)) / float64(memory.LayerCount)
}

// fallbackBundle is the maximum acceptable degradation: one synthetic
// fragment when the budget allows it, none when even that cannot fit.
func fallbackBundle(maxBytes int) memory.ContextBundle {
	bundle := memory.ContextBundle{CoherenceScore: 1, Fallback: true}
	f := memory.NewFragment(memory.LayerFallback, fallbackContent, 0, nil, time.Time{})
	if f.SizeBytes <= maxBytes {
		bundle.Fragments = []memory.Fragment{f}
		bundle.SizeBytes = f.SizeBytes
	}
	return bundle
}

// observe reports the finished retrieval to the monitor and, below the
// coverage threshold, to the event stream.
func (o *Orchestrator) observe(ctx context.Context, sessionID string, bundle memory.ContextBundle, metrics memory.RetrievalMetrics) {
	if o.recorder != nil {
		o.recorder.Record(metrics, bundle)
	}
	if o.notifier != nil && o.cfg.DegradedCoverage > 0 && bundle.LayerCoverage < o.cfg.DegradedCoverage {
		o.notifier.RetrievalDegraded(ctx, sessionID, bundle.LayerCoverage, metrics.LayerMisses)
	}
}
