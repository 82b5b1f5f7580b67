package memory

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFragmentBytes caps the content length of a single fragment. Layers
// clip at render time; the orchestrator never truncates, it only skips.
const MaxFragmentBytes = 2048

// Clip shortens s to at most max bytes, cutting on a rune boundary and
// marking the cut with an ellipsis.
func Clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		if max <= 0 {
			return ""
		}
		return s
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	if cut <= 0 {
		return s[:max]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], " \t\n") + ellipsis
}

// Fragment is a single unit of context produced by a layer.
//
// Fragments are the only currency between layers and the orchestrator: a
// layer renders whatever it knows (a turn, an initiative, a profile) into
// text, attaches its relevance estimate, and the orchestrator takes it
// from there. SizeBytes is always len(Content) so packing decisions and
// the final bundle size agree by construction.
type Fragment struct {
	// Layer identifies the producing layer.
	Layer LayerKind `json:"layer"`

	// Content is the rendered context text.
	Content string `json:"content"`

	// Relevance is the layer's estimate for the current query, in [0, 1].
	Relevance float64 `json:"relevance"`

	// Keywords are the normalized tokens of the source record, used for
	// coherence scoring. May be empty.
	Keywords []string `json:"keywords,omitempty"`

	// SizeBytes is len(Content).
	SizeBytes int `json:"size_bytes"`

	// SourceTimestamp is when the underlying record was created or last
	// updated. Used for the recency tie-break.
	SourceTimestamp time.Time `json:"source_timestamp"`
}

// NewFragment builds a fragment with its size derived from content and
// relevance clamped to [0, 1].
func NewFragment(layer LayerKind, content string, relevance float64, keywords []string, ts time.Time) Fragment {
	return Fragment{
		Layer:           layer,
		Content:         content,
		Relevance:       Clamp01(relevance),
		Keywords:        keywords,
		SizeBytes:       len(content),
		SourceTimestamp: ts,
	}
}

// ContextBundle is the packed result of one retrieval.
//
// Fragments appear in their final packed order. A bundle is deterministic
// for a fixed store state: retrieving twice with the same query and
// session and no intervening writes yields an identical bundle.
type ContextBundle struct {
	// Fragments are the packed fragments, highest relevance first.
	Fragments []Fragment `json:"fragments"`

	// OverallRelevance is the size-weighted mean relevance of the packed
	// fragments, in [0, 1]. Zero for an empty or fallback bundle.
	OverallRelevance float64 `json:"overall_relevance"`

	// CoherenceScore is the fraction of fragment pairs sharing at least
	// one keyword, in [0, 1]. Bundles with fewer than two fragments score
	// a vacuous 1.
	CoherenceScore float64 `json:"coherence_score"`

	// LayerCoverage is the fraction of the five layers contributing at
	// least one packed fragment.
	LayerCoverage float64 `json:"layer_coverage"`

	// SizeBytes is the sum of fragment sizes, never above the request
	// budget.
	SizeBytes int `json:"size_bytes"`

	// Fallback is true when every layer failed and the bundle carries the
	// synthetic degraded-mode fragment instead of real context.
	Fallback bool `json:"fallback,omitempty"`
}

// RetrievalMetrics reports per-call observability for one retrieval.
type RetrievalMetrics struct {
	// TotalLatency is the wall time of the whole retrieval.
	TotalLatency time.Duration `json:"total_latency"`

	// LayerLatencies records per-layer query wall time, present for every
	// layer that was asked, including ones that missed.
	LayerLatencies map[LayerKind]time.Duration `json:"layer_latencies"`

	// LayerMisses maps each failed layer to a short reason ("timeout" or
	// the layer error text).
	LayerMisses map[LayerKind]string `json:"layer_misses,omitempty"`

	// FragmentsRetrieved counts fragments returned by layers before
	// filtering and packing; FragmentsReturned counts those in the final
	// bundle.
	FragmentsRetrieved int `json:"fragments_retrieved"`
	FragmentsReturned  int `json:"fragments_returned"`

	// BytesReturned is the bundle size; BytesBudget is the request cap.
	BytesReturned int `json:"bytes_returned"`
	BytesBudget   int `json:"bytes_budget"`

	// CacheHit is true when the bundle was served from the bundle cache
	// without querying layers.
	CacheHit bool `json:"cache_hit"`
}
