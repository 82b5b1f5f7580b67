// Package learning implements the framework-effectiveness context layer.
// Usage records are append-only; queries and rankings work on
// per-framework aggregates so one framework yields one fragment no
// matter how often it was applied.
package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

// Config bounds the layer.
type Config struct {
	// Retention is the recency horizon for scoring; records are never
	// dropped.
	Retention time.Duration

	// FragmentLimit caps fragments returned per query.
	FragmentLimit int
}

// DefaultConfig returns the standard bounds: one year horizon, five
// fragments per query.
func DefaultConfig() Config {
	return Config{
		Retention:     365 * 24 * time.Hour,
		FragmentLimit: 5,
	}
}

// FrameworkStat is one framework's aggregate standing.
type FrameworkStat struct {
	Framework         string    `json:"framework"`
	MeanEffectiveness float64   `json:"mean_effectiveness"`
	UsageCount        int       `json:"usage_count"`
	LastUsed          time.Time `json:"last_used"`
}

// Layer is the learning context layer. Safe for concurrent use.
type Layer struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.RWMutex
	records []*memory.FrameworkUsage
}

// NewLayer builds the layer with defaults for non-positive config fields.
func NewLayer(cfg Config, logger *logging.Logger) *Layer {
	def := DefaultConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.FragmentLimit <= 0 {
		cfg.FragmentLimit = def.FragmentLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Layer{cfg: cfg, logger: logger}
}

// Kind implements memory.Layer.
func (l *Layer) Kind() memory.LayerKind { return memory.LayerLearning }

// RecordUsage appends a framework usage record.
func (l *Layer) RecordUsage(ctx context.Context, usage *memory.FrameworkUsage) error {
	if usage == nil {
		return fmt.Errorf("%w: nil usage record", memory.ErrInvalidArgument)
	}
	if strings.TrimSpace(usage.Framework) == "" {
		return fmt.Errorf("%w: framework name is empty", memory.ErrInvalidArgument)
	}

	stored := *usage
	stored.Effectiveness = memory.Clamp01(stored.Effectiveness)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.records = append(l.records, &stored)
	l.mu.Unlock()

	l.logger.Debug(ctx, "framework usage recorded",
		zap.String("framework", stored.Framework),
		zap.Float64("effectiveness", stored.Effectiveness),
	)
	return nil
}

// TopFrameworks ranks frameworks for a topic by mean effectiveness, ties
// broken by usage count and then name. Only records sharing at least one
// keyword with the topic count; an empty topic ranks everything. A
// non-positive limit returns the full ranking.
func (l *Layer) TopFrameworks(ctx context.Context, topic string, limit int) ([]FrameworkStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topicKeywords := memory.ExtractKeywords(topic)

	aggregates := l.aggregate(func(r *memory.FrameworkUsage) bool {
		return len(topicKeywords) == 0 || memory.SharesKeyword(topicKeywords, r.Keywords)
	})

	stats := make([]FrameworkStat, 0, len(aggregates))
	for _, agg := range aggregates {
		stats = append(stats, FrameworkStat{
			Framework:         agg.framework,
			MeanEffectiveness: agg.total / float64(agg.count),
			UsageCount:        agg.count,
			LastUsed:          agg.latest,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MeanEffectiveness != stats[j].MeanEffectiveness {
			return stats[i].MeanEffectiveness > stats[j].MeanEffectiveness
		}
		if stats[i].UsageCount != stats[j].UsageCount {
			return stats[i].UsageCount > stats[j].UsageCount
		}
		return stats[i].Framework < stats[j].Framework
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// Query implements memory.Layer: one fragment per framework, scored by
// keyword overlap, last-use recency, and mean effectiveness.
func (l *Layer) Query(ctx context.Context, query, _ string, limit int) ([]memory.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.cfg.FragmentLimit
	}

	aggregates := l.aggregate(nil)
	queryKeywords := memory.ExtractKeywords(query)
	now := time.Now()
	fragments := make([]memory.Fragment, 0, len(aggregates))
	for _, agg := range aggregates {
		mean := agg.total / float64(agg.count)
		overlap := memory.KeywordOverlap(queryKeywords, agg.keywords)
		recency := memory.Recency(agg.latest, now, l.cfg.Retention)
		relevance := memory.Relevance(overlap, recency, mean)
		fragments = append(fragments, memory.NewFragment(
			memory.LayerLearning,
			memory.Clip(renderAggregate(agg, mean), memory.MaxFragmentBytes),
			relevance,
			agg.keywords,
			agg.latest,
		))
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		if fragments[i].Relevance != fragments[j].Relevance {
			return fragments[i].Relevance > fragments[j].Relevance
		}
		return fragments[i].SourceTimestamp.After(fragments[j].SourceTimestamp)
	})
	if len(fragments) > limit {
		fragments = fragments[:limit]
	}
	return fragments, nil
}

type aggregate struct {
	framework string
	total     float64
	count     int
	latest    time.Time
	lastQuery string
	keywords  []string
}

// aggregate folds matching records into per-framework aggregates, ordered
// by framework name for deterministic output. A nil filter matches all.
func (l *Layer) aggregate(filter func(*memory.FrameworkUsage) bool) []*aggregate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byName := make(map[string]*aggregate)
	for _, r := range l.records {
		if filter != nil && !filter(r) {
			continue
		}
		agg := byName[r.Framework]
		if agg == nil {
			agg = &aggregate{framework: r.Framework}
			byName[r.Framework] = agg
		}
		agg.total += r.Effectiveness
		agg.count++
		if r.CreatedAt.After(agg.latest) {
			agg.latest = r.CreatedAt
			agg.lastQuery = r.Query
		}
		agg.keywords = mergeKeywords(agg.keywords, r.Keywords)
	}

	out := make([]*aggregate, 0, len(byName))
	for _, agg := range byName {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].framework < out[j].framework })
	return out
}

func renderAggregate(agg *aggregate, mean float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Framework %s: mean effectiveness %.2f over %d uses", agg.framework, mean, agg.count)
	if agg.lastQuery != "" {
		fmt.Fprintf(&b, "; last applied to %q", agg.lastQuery)
	}
	return b.String()
}

func mergeKeywords(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base))
	for _, kw := range base {
		seen[kw] = struct{}{}
	}
	for _, kw := range extra {
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		base = append(base, kw)
	}
	return base
}

var _ memory.Layer = (*Layer)(nil)
