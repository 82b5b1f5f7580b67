// Package stakeholder implements the relationship-tracking context layer.
// Profiles are upserted by callers, but relationship quality, trust, and
// interaction frequency move only through RecordInteraction. Interaction
// history is append-only and swept on a fixed cadence rather than on
// every write.
package stakeholder

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

// Steps are the per-interaction adjustments applied to a profile.
type Steps struct {
	// Frequency is added to InteractionFrequency on every interaction.
	Frequency float64

	// PositiveQuality and PositiveTrust are added on a positive outcome.
	PositiveQuality float64
	PositiveTrust   float64

	// NegativeQuality and NegativeTrust are subtracted on a negative
	// outcome.
	NegativeQuality float64
	NegativeTrust   float64
}

// Config bounds the layer.
type Config struct {
	// Retention is how long interaction records stay before a sweep drops
	// them.
	Retention time.Duration

	// FragmentLimit caps fragments returned per query.
	FragmentLimit int

	// SweepEvery triggers an interaction sweep after this many recorded
	// interactions.
	SweepEvery int

	Steps Steps
}

// DefaultConfig returns the standard bounds: one year retention, five
// fragments per query, a sweep every 50 interactions, and the standard
// adjustment steps.
func DefaultConfig() Config {
	return Config{
		Retention:     365 * 24 * time.Hour,
		FragmentLimit: 5,
		SweepEvery:    50,
		Steps: Steps{
			Frequency:       0.1,
			PositiveQuality: 0.05,
			PositiveTrust:   0.03,
			NegativeQuality: 0.10,
			NegativeTrust:   0.05,
		},
	}
}

// Layer is the stakeholder context layer. Safe for concurrent use.
type Layer struct {
	cfg    Config
	logger *logging.Logger

	mu           sync.RWMutex
	profiles     map[string]*memory.StakeholderProfile
	interactions map[string][]*memory.Interaction

	// recorded counts interactions since construction and drives the
	// sweep cadence.
	recorded int
}

// NewLayer builds the layer with defaults for zero config fields.
func NewLayer(cfg Config, logger *logging.Logger) *Layer {
	def := DefaultConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.FragmentLimit <= 0 {
		cfg.FragmentLimit = def.FragmentLimit
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = def.SweepEvery
	}
	if cfg.Steps == (Steps{}) {
		cfg.Steps = def.Steps
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Layer{
		cfg:          cfg,
		logger:       logger,
		profiles:     make(map[string]*memory.StakeholderProfile),
		interactions: make(map[string][]*memory.Interaction),
	}
}

// Kind implements memory.Layer.
func (l *Layer) Kind() memory.LayerKind { return memory.LayerStakeholder }

// Upsert stores a profile. For an existing id only the identity fields
// change; quality, trust, frequency, and interaction timestamps are owned
// by RecordInteraction and survive the upsert untouched.
func (l *Layer) Upsert(ctx context.Context, profile *memory.StakeholderProfile) error {
	if profile == nil {
		return fmt.Errorf("%w: nil profile", memory.ErrInvalidArgument)
	}
	if strings.TrimSpace(profile.ID) == "" || strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("%w: profile missing id or name", memory.ErrInvalidArgument)
	}
	if !profile.Role.Valid() {
		return fmt.Errorf("%w: unknown stakeholder role %q", memory.ErrInvalidArgument, profile.Role)
	}
	if !profile.Influence.Valid() {
		return fmt.Errorf("%w: unknown influence level %q", memory.ErrInvalidArgument, profile.Influence)
	}

	now := time.Now()
	stored := *profile
	stored.RelationshipQuality = memory.Clamp01(stored.RelationshipQuality)
	stored.TrustLevel = memory.Clamp01(stored.TrustLevel)
	stored.Keywords = memory.ExtractKeywords(stored.Name + " " + string(stored.Role) + " " + stored.Organization)
	stored.UpdatedAt = now

	l.mu.Lock()
	if existing, ok := l.profiles[stored.ID]; ok {
		stored.RelationshipQuality = existing.RelationshipQuality
		stored.TrustLevel = existing.TrustLevel
		stored.InteractionFrequency = existing.InteractionFrequency
		stored.LastInteraction = existing.LastInteraction
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	l.profiles[stored.ID] = &stored
	l.mu.Unlock()

	l.logger.Debug(ctx, "stakeholder profile upserted",
		zap.String("stakeholder_id", stored.ID),
	)
	return nil
}

// Get returns a copy of the profile or ErrNotFound.
func (l *Layer) Get(_ context.Context, id string) (*memory.StakeholderProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	profile, ok := l.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: stakeholder %q", memory.ErrNotFound, id)
	}
	out := *profile
	return &out, nil
}

// History returns copies of the stakeholder's interactions, newest first.
func (l *Layer) History(_ context.Context, id string) ([]*memory.Interaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.profiles[id]; !ok {
		return nil, fmt.Errorf("%w: stakeholder %q", memory.ErrNotFound, id)
	}
	records := l.interactions[id]
	out := make([]*memory.Interaction, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		c := *records[i]
		out = append(out, &c)
	}
	return out, nil
}

// RecordInteraction appends an interaction for a known stakeholder and
// applies the outcome to the profile: frequency always accumulates,
// positive outcomes nudge quality and trust up, negative outcomes push
// them down harder, neutral ones only mark the contact. Unknown
// stakeholders are ErrNotFound, never auto-created. Every SweepEvery-th
// recorded interaction also drops records older than the retention
// window.
func (l *Layer) RecordInteraction(ctx context.Context, stakeholderID, kind, detail string, outcome memory.InteractionOutcome) (*memory.Interaction, error) {
	record, err := memory.NewInteraction(stakeholderID, kind, detail, outcome)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	profile, ok := l.profiles[stakeholderID]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: stakeholder %q", memory.ErrNotFound, stakeholderID)
	}

	l.interactions[stakeholderID] = append(l.interactions[stakeholderID], record)
	profile.InteractionFrequency += l.cfg.Steps.Frequency
	profile.LastInteraction = record.CreatedAt
	profile.UpdatedAt = record.CreatedAt

	switch outcome {
	case memory.InteractionPositive:
		profile.RelationshipQuality = memory.Clamp01(profile.RelationshipQuality + l.cfg.Steps.PositiveQuality)
		profile.TrustLevel = memory.Clamp01(profile.TrustLevel + l.cfg.Steps.PositiveTrust)
	case memory.InteractionNegative:
		profile.RelationshipQuality = memory.Clamp01(profile.RelationshipQuality - l.cfg.Steps.NegativeQuality)
		profile.TrustLevel = memory.Clamp01(profile.TrustLevel - l.cfg.Steps.NegativeTrust)
	}

	l.recorded++
	var swept int
	if l.recorded%l.cfg.SweepEvery == 0 {
		swept = l.sweepLocked(record.CreatedAt.Add(-l.cfg.Retention))
	}
	l.mu.Unlock()

	l.logger.Debug(ctx, "stakeholder interaction recorded",
		zap.String("stakeholder_id", stakeholderID),
		zap.String("outcome", string(outcome)),
	)
	if swept > 0 {
		l.logger.Info(ctx, "stale interactions swept",
			zap.Int("count", swept),
		)
	}
	out := *record
	return &out, nil
}

// Query implements memory.Layer: profiles scored by keyword overlap,
// contact recency, and influence weighted by relationship quality.
func (l *Layer) Query(ctx context.Context, query, _ string, limit int) ([]memory.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = l.cfg.FragmentLimit
	}

	// Snapshot values under the lock; RecordInteraction patches the
	// stored profiles in place.
	l.mu.RLock()
	profiles := make([]memory.StakeholderProfile, 0, len(l.profiles))
	for _, p := range l.profiles {
		profiles = append(profiles, *p)
	}
	l.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })

	queryKeywords := memory.ExtractKeywords(query)
	now := time.Now()
	fragments := make([]memory.Fragment, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		ts := p.LastInteraction
		if ts.IsZero() {
			ts = p.UpdatedAt
		}
		overlap := memory.KeywordOverlap(queryKeywords, p.Keywords)
		recency := memory.Recency(ts, now, l.cfg.Retention)
		signal := influenceSignal(p.Influence) * p.RelationshipQuality
		relevance := memory.Relevance(overlap, recency, signal)
		fragments = append(fragments, memory.NewFragment(
			memory.LayerStakeholder,
			memory.Clip(render(p), memory.MaxFragmentBytes),
			relevance,
			p.Keywords,
			ts,
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

// sweepLocked drops interactions created before the cutoff. Caller holds
// the write lock.
func (l *Layer) sweepLocked(cutoff time.Time) int {
	swept := 0
	for id, records := range l.interactions {
		kept := records[:0]
		for _, r := range records {
			if r.CreatedAt.Before(cutoff) {
				swept++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(l.interactions, id)
			continue
		}
		l.interactions[id] = kept
	}
	return swept
}

// influenceSignal maps influence to the base signal in [0, 1]; the
// caller weights it by relationship quality.
func influenceSignal(level memory.InfluenceLevel) float64 {
	switch level {
	case memory.InfluenceCritical:
		return 1
	case memory.InfluenceHigh:
		return 0.75
	case memory.InfluenceMedium:
		return 0.4
	case memory.InfluenceLow:
		return 0.15
	default:
		return 0
	}
}

func render(p *memory.StakeholderProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stakeholder %s (%s", p.Name, p.Role)
	if p.Organization != "" {
		fmt.Fprintf(&b, ", %s", p.Organization)
	}
	fmt.Fprintf(&b, "), influence %s: relationship quality %.2f, trust %.2f, interaction frequency %.1f",
		p.Influence, p.RelationshipQuality, p.TrustLevel, p.InteractionFrequency)
	if p.CommunicationStyle != "" {
		fmt.Fprintf(&b, "; style: %s", p.CommunicationStyle)
	}
	if !p.LastInteraction.IsZero() {
		fmt.Fprintf(&b, "; last contact %s", p.LastInteraction.Format("2006-01-02"))
	}
	return b.String()
}

var _ memory.Layer = (*Layer)(nil)
