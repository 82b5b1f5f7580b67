// Package organizational implements the team-structure context layer.
// Snapshots are append-only per team with a bounded history; the newest
// snapshot is the authoritative structure and the only one queries score.
package organizational

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
	// HistoryCap is how many snapshots are kept per team.
	HistoryCap int

	// FragmentLimit caps fragments returned per query.
	FragmentLimit int

	// RecencyHorizon is the scoring decay window for snapshot age.
	RecencyHorizon time.Duration
}

// DefaultConfig returns the standard bounds: 20 snapshots per team, five
// fragments per query, one year decay horizon.
func DefaultConfig() Config {
	return Config{
		HistoryCap:     20,
		FragmentLimit:  5,
		RecencyHorizon: 365 * 24 * time.Hour,
	}
}

// Layer is the organizational context layer. Safe for concurrent use.
type Layer struct {
	cfg    Config
	logger *logging.Logger

	mu    sync.RWMutex
	teams map[string][]*memory.TeamSnapshot
}

// NewLayer builds the layer with defaults for non-positive config fields.
func NewLayer(cfg Config, logger *logging.Logger) *Layer {
	def := DefaultConfig()
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = def.HistoryCap
	}
	if cfg.FragmentLimit <= 0 {
		cfg.FragmentLimit = def.FragmentLimit
	}
	if cfg.RecencyHorizon <= 0 {
		cfg.RecencyHorizon = def.RecencyHorizon
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Layer{
		cfg:    cfg,
		logger: logger,
		teams:  make(map[string][]*memory.TeamSnapshot),
	}
}

// Kind implements memory.Layer.
func (l *Layer) Kind() memory.LayerKind { return memory.LayerOrganizational }

// Capture appends a snapshot to the team's history, dropping the oldest
// past the cap.
func (l *Layer) Capture(ctx context.Context, snap *memory.TeamSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", memory.ErrInvalidArgument)
	}
	if strings.TrimSpace(snap.TeamID) == "" || strings.TrimSpace(snap.Name) == "" {
		return fmt.Errorf("%w: snapshot missing team id or name", memory.ErrInvalidArgument)
	}
	if !snap.Topology.Valid() {
		return fmt.Errorf("%w: unknown team topology %q", memory.ErrInvalidArgument, snap.Topology)
	}

	stored := *snap
	if stored.CapturedAt.IsZero() {
		stored.CapturedAt = time.Now()
	}
	stored.Keywords = snapshotKeywords(&stored)

	l.mu.Lock()
	history := append(l.teams[stored.TeamID], &stored)
	if len(history) > l.cfg.HistoryCap {
		history = history[len(history)-l.cfg.HistoryCap:]
	}
	l.teams[stored.TeamID] = history
	l.mu.Unlock()

	l.logger.Debug(ctx, "team snapshot captured",
		zap.String("team_id", stored.TeamID),
		zap.String("topology", string(stored.Topology)),
	)
	return nil
}

// Latest returns a copy of the newest snapshot for the team or
// ErrNotFound.
func (l *Layer) Latest(_ context.Context, teamID string) (*memory.TeamSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.teams[teamID]
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: team %q", memory.ErrNotFound, teamID)
	}
	out := *history[len(history)-1]
	return &out, nil
}

// Trend returns copies of the team's snapshots, oldest first, or
// ErrNotFound for an unknown team.
func (l *Layer) Trend(_ context.Context, teamID string) ([]*memory.TeamSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	history := l.teams[teamID]
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: team %q", memory.ErrNotFound, teamID)
	}
	out := make([]*memory.TeamSnapshot, len(history))
	for i, snap := range history {
		c := *snap
		out[i] = &c
	}
	return out, nil
}

// Query implements memory.Layer: the latest snapshot of each team scored
// by keyword overlap, capture recency, and a structure signal built from
// metric presence and team size.
func (l *Layer) Query(ctx context.Context, query, _ string, limit int) ([]memory.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.cfg.FragmentLimit
	}

	l.mu.RLock()
	latest := make([]*memory.TeamSnapshot, 0, len(l.teams))
	for _, history := range l.teams {
		latest = append(latest, history[len(history)-1])
	}
	l.mu.RUnlock()

	sort.Slice(latest, func(i, j int) bool { return latest[i].TeamID < latest[j].TeamID })

	queryKeywords := memory.ExtractKeywords(query)
	now := time.Now()
	fragments := make([]memory.Fragment, 0, len(latest))
	for _, snap := range latest {
		overlap := memory.KeywordOverlap(queryKeywords, snap.Keywords)
		recency := memory.Recency(snap.CapturedAt, now, l.cfg.RecencyHorizon)
		relevance := memory.Relevance(overlap, recency, structureSignal(snap))
		fragments = append(fragments, memory.NewFragment(
			memory.LayerOrganizational,
			memory.Clip(render(snap), memory.MaxFragmentBytes),
			relevance,
			snap.Keywords,
			snap.CapturedAt,
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

// structureSignal scores how informative a snapshot is, in [0, 1]:
// a base for existing, measured teams plus weight for performance
// metrics and crew size.
func structureSignal(snap *memory.TeamSnapshot) float64 {
	signal := 0.3
	if len(snap.PerformanceMetrics) > 0 {
		signal += 0.4
	}
	size := float64(snap.Size) / 25
	if size > 1 {
		size = 1
	}
	signal += 0.3 * size
	return memory.Clamp01(signal)
}

func snapshotKeywords(snap *memory.TeamSnapshot) []string {
	parts := []string{snap.Name, string(snap.Topology), "team"}
	parts = append(parts, snap.CollaborationPatterns...)
	return memory.ExtractKeywords(strings.Join(parts, " "))
}

func render(snap *memory.TeamSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team %s (%s, %d people)", snap.Name, snap.Topology, snap.Size)
	if len(snap.CollaborationPatterns) > 0 {
		fmt.Fprintf(&b, "; collaboration: %s", strings.Join(snap.CollaborationPatterns, ", "))
	}
	if len(snap.PerformanceMetrics) > 0 {
		keys := make([]string, 0, len(snap.PerformanceMetrics))
		for k := range snap.PerformanceMetrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%.2f", k, snap.PerformanceMetrics[k])
		}
		fmt.Fprintf(&b, "; metrics: %s", strings.Join(pairs, ", "))
	}
	return b.String()
}

var _ memory.Layer = (*Layer)(nil)
