// Package strategic implements the initiative-tracking context layer.
// Initiatives are upserted whole via Track, patched via Apply during
// outcome recording, and never deleted: pruning only transitions stale
// completed work to archived.
package strategic

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
	// Retention is how long a completed initiative stays unarchived.
	Retention time.Duration

	// FragmentLimit caps fragments returned per query.
	FragmentLimit int
}

// DefaultConfig returns the standard bounds: one year retention, five
// fragments per query.
func DefaultConfig() Config {
	return Config{
		Retention:     365 * 24 * time.Hour,
		FragmentLimit: 5,
	}
}

// Layer is the strategic context layer. Safe for concurrent use.
type Layer struct {
	cfg    Config
	logger *logging.Logger

	mu          sync.RWMutex
	initiatives map[string]*memory.Initiative

	// nameIndex maps lowercased names to ids for Apply-by-name; on
	// duplicate names the most recent write wins.
	nameIndex map[string]string
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
	return &Layer{
		cfg:         cfg,
		logger:      logger,
		initiatives: make(map[string]*memory.Initiative),
		nameIndex:   make(map[string]string),
	}
}

// Kind implements memory.Layer.
func (l *Layer) Kind() memory.LayerKind { return memory.LayerStrategic }

// Track upserts an initiative by id. Creation time survives updates;
// everything else is replaced by the given record.
func (l *Layer) Track(ctx context.Context, init *memory.Initiative) error {
	if init == nil {
		return fmt.Errorf("%w: nil initiative", memory.ErrInvalidArgument)
	}
	if err := init.Validate(); err != nil {
		return err
	}

	stored := *init
	stored.Keywords = memory.ExtractKeywords(stored.Name)
	stored.UpdatedAt = time.Now()

	l.mu.Lock()
	if existing, ok := l.initiatives[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
		if !strings.EqualFold(existing.Name, stored.Name) {
			delete(l.nameIndex, strings.ToLower(existing.Name))
		}
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	l.initiatives[stored.ID] = &stored
	l.nameIndex[strings.ToLower(stored.Name)] = stored.ID
	l.mu.Unlock()

	l.logger.Debug(ctx, "initiative tracked",
		zap.String("initiative_id", stored.ID),
		zap.String("status", string(stored.Status)),
	)
	return nil
}

// Get returns a copy of the initiative or ErrNotFound.
func (l *Layer) Get(_ context.Context, id string) (*memory.Initiative, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	init, ok := l.initiatives[id]
	if !ok {
		return nil, fmt.Errorf("%w: initiative %q", memory.ErrNotFound, id)
	}
	out := *init
	return &out, nil
}

// List returns copies of all initiatives, ordered by id.
func (l *Layer) List(_ context.Context) []*memory.Initiative {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*memory.Initiative, 0, len(l.initiatives))
	for _, init := range l.initiatives {
		c := *init
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Apply patches an initiative, matching by id first and then by
// case-insensitive name, creating it when nothing matches. Nil pointer
// fields keep their current values; framework and stakeholder lists are
// unioned, not replaced.
func (l *Layer) Apply(ctx context.Context, update memory.InitiativeUpdate) (*memory.Initiative, error) {
	if update.ID == "" && strings.TrimSpace(update.Name) == "" {
		return nil, fmt.Errorf("%w: initiative update needs an id or a name", memory.ErrInvalidArgument)
	}
	if update.Status != "" && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown initiative status %q", memory.ErrInvalidArgument, update.Status)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	init := l.lookupLocked(update)
	created := false
	if init == nil {
		name := update.Name
		if name == "" {
			name = update.ID
		}
		fresh, err := memory.NewInitiative(update.ID, name, update.Status)
		if err != nil {
			return nil, err
		}
		init = fresh
		created = true
	}

	if update.Name != "" && !strings.EqualFold(init.Name, update.Name) {
		delete(l.nameIndex, strings.ToLower(init.Name))
		init.Name = update.Name
		init.Keywords = memory.ExtractKeywords(init.Name)
	}
	if update.Status != "" {
		init.Status = update.Status
	}
	if update.Priority != "" {
		init.Priority = update.Priority
	}
	if update.Progress != nil {
		init.Progress = clampRange(*update.Progress, 0, 100)
	}
	if update.HealthScore != nil {
		init.HealthScore = memory.Clamp01(*update.HealthScore)
	}
	init.Frameworks = union(init.Frameworks, update.Frameworks)
	init.Stakeholders = union(init.Stakeholders, update.Stakeholders)
	init.UpdatedAt = time.Now()

	l.initiatives[init.ID] = init
	l.nameIndex[strings.ToLower(init.Name)] = init.ID

	l.logger.Debug(ctx, "initiative update applied",
		zap.String("initiative_id", init.ID),
		zap.Bool("created", created),
	)
	out := *init
	return &out, nil
}

// Prune archives completed initiatives untouched for longer than the
// retention window. Returns how many transitioned.
func (l *Layer) Prune(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-l.cfg.Retention)

	l.mu.Lock()
	archived := 0
	for _, init := range l.initiatives {
		if init.Status == memory.StatusCompleted && init.UpdatedAt.Before(cutoff) {
			init.Status = memory.StatusArchived
			init.UpdatedAt = now
			archived++
		}
	}
	l.mu.Unlock()

	if archived > 0 {
		l.logger.Info(ctx, "completed initiatives archived",
			zap.Int("count", archived),
		)
	}
	return archived
}

// Query implements memory.Layer: initiatives scored by keyword overlap,
// update recency, and status urgency.
func (l *Layer) Query(ctx context.Context, query, _ string, limit int) ([]memory.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.cfg.FragmentLimit
	}

	// Snapshot values under the lock; Apply and Prune patch the stored
	// records in place.
	l.mu.RLock()
	initiatives := make([]memory.Initiative, 0, len(l.initiatives))
	for _, init := range l.initiatives {
		initiatives = append(initiatives, *init)
	}
	l.mu.RUnlock()

	// Fixed scan order keeps equal-scoring fragments in a stable order
	// across calls.
	sort.Slice(initiatives, func(i, j int) bool { return initiatives[i].ID < initiatives[j].ID })

	queryKeywords := memory.ExtractKeywords(query)
	now := time.Now()
	fragments := make([]memory.Fragment, 0, len(initiatives))
	for i := range initiatives {
		init := &initiatives[i]
		overlap := memory.KeywordOverlap(queryKeywords, init.Keywords)
		recency := memory.Recency(init.UpdatedAt, now, l.cfg.Retention)
		relevance := memory.Relevance(overlap, recency, statusSignal(init))
		fragments = append(fragments, memory.NewFragment(
			memory.LayerStrategic,
			memory.Clip(render(init), memory.MaxFragmentBytes),
			relevance,
			init.Keywords,
			init.UpdatedAt,
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

// lookupLocked resolves an update target by id, then by name.
func (l *Layer) lookupLocked(update memory.InitiativeUpdate) *memory.Initiative {
	if update.ID != "" {
		if init, ok := l.initiatives[update.ID]; ok {
			return init
		}
		return nil
	}
	if id, ok := l.nameIndex[strings.ToLower(update.Name)]; ok {
		return l.initiatives[id]
	}
	return nil
}

// statusSignal maps initiative status to the layer signal in [0, 1]:
// active work scores full, at-risk work climbs toward full as health
// drops, planned and identified work trail, finished work contributes
// nothing beyond keyword and recency relevance.
func statusSignal(init *memory.Initiative) float64 {
	switch init.Status {
	case memory.StatusActive:
		return 1
	case memory.StatusAtRisk:
		return memory.Clamp01(0.75 + 0.25*(1-init.HealthScore))
	case memory.StatusPlanned:
		return 0.5
	case memory.StatusIdentified:
		return 0.25
	default:
		return 0
	}
}

func render(init *memory.Initiative) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initiative %q is %s", init.Name, init.Status)
	if init.Priority != "" {
		fmt.Fprintf(&b, " (priority %s)", init.Priority)
	}
	fmt.Fprintf(&b, ": %.0f%% complete, health %.2f", init.Progress, init.HealthScore)
	if len(init.Frameworks) > 0 {
		fmt.Fprintf(&b, "; frameworks: %s", strings.Join(init.Frameworks, ", "))
	}
	if len(init.Stakeholders) > 0 {
		fmt.Fprintf(&b, "; stakeholders: %s", strings.Join(init.Stakeholders, ", "))
	}
	return b.String()
}

func union(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range append(append([]string{}, base...), extra...) {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ memory.Layer = (*Layer)(nil)
