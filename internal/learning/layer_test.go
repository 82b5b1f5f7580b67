package learning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscantu/advisord/internal/memory"
)

func record(t *testing.T, layer *Layer, framework, query string, effectiveness float64) {
	t.Helper()
	usage, err := memory.NewFrameworkUsage(framework, "s1", query, effectiveness)
	require.NoError(t, err)
	require.NoError(t, layer.RecordUsage(context.Background(), usage))
}

func TestRecordUsage(t *testing.T) {
	ctx := context.Background()
	layer := NewLayer(Config{}, nil)

	t.Run("nil record rejected", func(t *testing.T) {
		assert.ErrorIs(t, layer.RecordUsage(ctx, nil), memory.ErrInvalidArgument)
	})

	t.Run("blank framework rejected", func(t *testing.T) {
		err := layer.RecordUsage(ctx, &memory.FrameworkUsage{Framework: "  "})
		assert.ErrorIs(t, err, memory.ErrInvalidArgument)
	})

	t.Run("effectiveness clamped on write", func(t *testing.T) {
		require.NoError(t, layer.RecordUsage(ctx, &memory.FrameworkUsage{
			Framework:     "team_topologies",
			Effectiveness: 7,
		}))
		stats, err := layer.TopFrameworks(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 1.0, stats[0].MeanEffectiveness)
	})
}

func TestTopFrameworks(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks by mean effectiveness", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "team_topologies", "platform team structure", 0.9)
		record(t, layer, "team_topologies", "platform team scaling", 0.7)
		record(t, layer, "wardley_mapping", "platform strategy", 0.6)

		stats, err := layer.TopFrameworks(ctx, "platform", 0)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "team_topologies", stats[0].Framework)
		assert.InDelta(t, 0.8, stats[0].MeanEffectiveness, 1e-9)
		assert.Equal(t, 2, stats[0].UsageCount)
		assert.Equal(t, "wardley_mapping", stats[1].Framework)
	})

	t.Run("topic filters by keyword overlap", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "team_topologies", "platform team structure", 0.9)
		record(t, layer, "spc_framework", "pricing strategy", 0.95)

		stats, err := layer.TopFrameworks(ctx, "platform team", 0)
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "team_topologies", stats[0].Framework)
	})

	t.Run("ties broken by usage count", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "often_used", "platform question", 0.8)
		record(t, layer, "often_used", "platform question", 0.8)
		record(t, layer, "rarely_used", "platform question", 0.8)

		stats, err := layer.TopFrameworks(ctx, "platform", 0)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "often_used", stats[0].Framework)
	})

	t.Run("limit trims ranking", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "a", "platform", 0.9)
		record(t, layer, "b", "platform", 0.8)
		record(t, layer, "c", "platform", 0.7)

		stats, err := layer.TopFrameworks(ctx, "platform", 2)
		require.NoError(t, err)
		assert.Len(t, stats, 2)
	})

	t.Run("no matches yields empty ranking", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "team_topologies", "platform team", 0.9)

		stats, err := layer.TopFrameworks(ctx, "unrelated subject entirely", 0)
		require.NoError(t, err)
		assert.Empty(t, stats)
	})
}

func TestLearningQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("one fragment per framework", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "team_topologies", "platform team structure", 0.9)
		record(t, layer, "team_topologies", "platform team scaling", 0.7)

		fragments, err := layer.Query(ctx, "platform team", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.Contains(t, fragments[0].Content, "team_topologies")
		assert.Contains(t, fragments[0].Content, "2 uses")
		assert.Equal(t, memory.LayerLearning, fragments[0].Layer)
	})

	t.Run("effectiveness lifts relevance", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		record(t, layer, "strong", "platform team question", 1.0)
		record(t, layer, "weak", "platform team question", 0.1)

		fragments, err := layer.Query(ctx, "platform team", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 2)
		assert.Contains(t, fragments[0].Content, "strong")
		assert.Greater(t, fragments[0].Relevance, fragments[1].Relevance)
	})

	t.Run("empty store yields nothing", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		fragments, err := layer.Query(ctx, "anything", "s1", 0)
		require.NoError(t, err)
		assert.Empty(t, fragments)
	})

	t.Run("old usage decays", func(t *testing.T) {
		layer := NewLayer(Config{Retention: 10 * 24 * time.Hour}, nil)
		stale, err := memory.NewFrameworkUsage("old_framework", "s1", "platform team", 0.9)
		require.NoError(t, err)
		stale.CreatedAt = time.Now().Add(-20 * 24 * time.Hour)
		require.NoError(t, layer.RecordUsage(ctx, stale))
		record(t, layer, "new_framework", "platform team", 0.9)

		fragments, err := layer.Query(ctx, "platform team", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 2)
		assert.Contains(t, fragments[0].Content, "new_framework")
	})
}
