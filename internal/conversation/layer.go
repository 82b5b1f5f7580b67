// Package conversation implements the session-memory context layer: a
// bounded per-session buffer of recent query/response turns. Turns
// evicted by the capacity cap or the retention window are handed to an
// optional archiver before they are dropped.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

// Archiver receives turns that fall out of the buffer. Implementations
// must tolerate duplicate hand-offs; failures are logged, never raised.
type Archiver interface {
	Archive(ctx context.Context, turn *memory.ConversationTurn) error
}

// Config bounds the layer.
type Config struct {
	// Retention is how long a turn stays queryable.
	Retention time.Duration

	// MaxTurns caps turns kept per session; the oldest is evicted first.
	MaxTurns int

	// FragmentLimit caps fragments returned per query.
	FragmentLimit int
}

// DefaultConfig returns the standard bounds: 90 day retention, 50 turns
// per session, 10 fragments per query.
func DefaultConfig() Config {
	return Config{
		Retention:     90 * 24 * time.Hour,
		MaxTurns:      50,
		FragmentLimit: 10,
	}
}

// Layer is the conversation context layer. Safe for concurrent use.
type Layer struct {
	cfg      Config
	logger   *logging.Logger
	archiver Archiver

	mu       sync.RWMutex
	sessions map[string]*sessionBuffer
}

// NewLayer builds the layer. A nil logger logs nowhere; a nil archiver
// drops evicted turns silently. Non-positive config fields fall back to
// defaults.
func NewLayer(cfg Config, logger *logging.Logger, archiver Archiver) *Layer {
	def := DefaultConfig()
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.FragmentLimit <= 0 {
		cfg.FragmentLimit = def.FragmentLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Layer{
		cfg:      cfg,
		logger:   logger,
		archiver: archiver,
		sessions: make(map[string]*sessionBuffer),
	}
}

// Kind implements memory.Layer.
func (l *Layer) Kind() memory.LayerKind { return memory.LayerConversation }

// AppendTurn stores a turn in its session buffer, evicting the oldest
// turn past the capacity cap.
func (l *Layer) AppendTurn(ctx context.Context, turn *memory.ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: nil turn", memory.ErrInvalidArgument)
	}
	if turn.SessionID == "" || turn.ID == "" {
		return fmt.Errorf("%w: turn missing id or session id", memory.ErrInvalidArgument)
	}

	stored := *turn

	l.mu.Lock()
	buf := l.sessions[stored.SessionID]
	if buf == nil {
		buf = &sessionBuffer{}
		l.sessions[stored.SessionID] = buf
	}
	evicted := buf.push(&stored, l.cfg.MaxTurns)
	l.mu.Unlock()

	l.logger.Debug(ctx, "conversation turn appended",
		zap.String("turn_id", stored.ID),
		zap.Bool("evicted", evicted != nil),
	)
	if evicted != nil {
		l.archive(ctx, evicted)
	}
	return nil
}

// RecentTurns returns copies of up to limit turns for the session,
// newest first. A non-positive limit returns the whole buffer.
func (l *Layer) RecentTurns(sessionID string, limit int) []*memory.ConversationTurn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	buf := l.sessions[sessionID]
	if buf == nil {
		return nil
	}
	turns := buf.recent(limit)
	out := make([]*memory.ConversationTurn, len(turns))
	for i, turn := range turns {
		c := *turn
		out[i] = &c
	}
	return out
}

// Prune drops turns older than the retention window across all sessions
// and returns how many were removed. Expired turns are archived first.
func (l *Layer) Prune(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-l.cfg.Retention)

	l.mu.Lock()
	var expired []*memory.ConversationTurn
	for sessionID, buf := range l.sessions {
		expired = append(expired, buf.expire(cutoff)...)
		if len(buf.turns) == 0 {
			delete(l.sessions, sessionID)
		}
	}
	l.mu.Unlock()

	if len(expired) > 0 {
		l.logger.Info(ctx, "conversation turns pruned",
			zap.Int("count", len(expired)),
		)
		l.archive(ctx, expired...)
	}
	return len(expired)
}

// Query implements memory.Layer: recent turns of the session scored
// against the query. An unknown or empty session is valid empty history.
func (l *Layer) Query(ctx context.Context, query, sessionID string, limit int) ([]memory.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = l.cfg.FragmentLimit
	}

	l.mu.RLock()
	buf := l.sessions[sessionID]
	var turns []*memory.ConversationTurn
	if buf != nil {
		turns = buf.recent(0)
	}
	l.mu.RUnlock()

	if len(turns) == 0 {
		return nil, nil
	}

	queryKeywords := memory.ExtractKeywords(query)
	now := time.Now()
	fragments := make([]memory.Fragment, 0, len(turns))
	for _, turn := range turns {
		overlap := memory.KeywordOverlap(queryKeywords, turn.Keywords)
		recency := memory.Recency(turn.CreatedAt, now, l.cfg.Retention)
		// Every turn served belongs to the requested session, so the
		// same-session signal always applies in full.
		relevance := memory.Relevance(overlap, recency, 1)
		fragments = append(fragments, memory.NewFragment(
			memory.LayerConversation,
			memory.Clip(turn.Content(), memory.MaxFragmentBytes),
			relevance,
			turn.Keywords,
			turn.CreatedAt,
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

func (l *Layer) archive(ctx context.Context, turns ...*memory.ConversationTurn) {
	if l.archiver == nil {
		return
	}
	for _, turn := range turns {
		if err := l.archiver.Archive(ctx, turn); err != nil {
			l.logger.Warn(ctx, "turn archive failed",
				zap.String("turn_id", turn.ID),
				zap.Error(err),
			)
		}
	}
}

var _ memory.Layer = (*Layer)(nil)
