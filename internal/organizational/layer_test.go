package organizational

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscantu/advisord/internal/memory"
)

func newSnapshot(t *testing.T, teamID, name string, size int) *memory.TeamSnapshot {
	t.Helper()
	snap, err := memory.NewTeamSnapshot(teamID, name, memory.TopologyPlatform, size)
	require.NoError(t, err)
	return snap
}

func TestCaptureAndLatest(t *testing.T) {
	ctx := context.Background()

	t.Run("latest wins", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 8)))
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 12)))

		latest, err := layer.Latest(ctx, "team-platform")
		require.NoError(t, err)
		assert.Equal(t, 12, latest.Size)
	})

	t.Run("unknown team not found", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		_, err := layer.Latest(ctx, "ghost")
		assert.ErrorIs(t, err, memory.ErrNotFound)
		_, err = layer.Trend(ctx, "ghost")
		assert.ErrorIs(t, err, memory.ErrNotFound)
	})

	t.Run("nil snapshot rejected", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		assert.ErrorIs(t, layer.Capture(ctx, nil), memory.ErrInvalidArgument)
	})

	t.Run("history cap drops oldest", func(t *testing.T) {
		layer := NewLayer(Config{HistoryCap: 3}, nil)
		for size := 1; size <= 5; size++ {
			require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", size)))
		}

		trend, err := layer.Trend(ctx, "team-platform")
		require.NoError(t, err)
		require.Len(t, trend, 3)
		assert.Equal(t, 3, trend[0].Size)
		assert.Equal(t, 5, trend[2].Size)
	})

	t.Run("trend is oldest first", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 8)))
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 12)))

		trend, err := layer.Trend(ctx, "team-platform")
		require.NoError(t, err)
		require.Len(t, trend, 2)
		assert.Equal(t, 8, trend[0].Size)
		assert.Equal(t, 12, trend[1].Size)
	})
}

func TestOrganizationalQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("query matching team name surfaces fragment", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		snap := newSnapshot(t, "team-platform", "Platform", 12)
		snap.PerformanceMetrics = map[string]float64{"deploy_frequency": 4}
		require.NoError(t, layer.Capture(ctx, snap))

		fragments, err := layer.Query(ctx, "How should we restructure the platform team?", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.Contains(t, fragments[0].Content, "Platform")
		assert.Contains(t, fragments[0].Content, "12 people")
		assert.Contains(t, fragments[0].Content, "deploy_frequency")
		assert.Equal(t, memory.LayerOrganizational, fragments[0].Layer)
		assert.GreaterOrEqual(t, fragments[0].Relevance, 0.15)
	})

	t.Run("only latest snapshot per team is scored", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 8)))
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-platform", "Platform", 12)))

		fragments, err := layer.Query(ctx, "platform team", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 1)
		assert.Contains(t, fragments[0].Content, "12 people")
	})

	t.Run("measured team outranks unmeasured", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		measured := newSnapshot(t, "team-a", "Checkout", 10)
		measured.PerformanceMetrics = map[string]float64{"cycle_time_days": 3.5}
		require.NoError(t, layer.Capture(ctx, measured))
		require.NoError(t, layer.Capture(ctx, newSnapshot(t, "team-b", "Checkout", 10)))

		fragments, err := layer.Query(ctx, "checkout team", "s1", 0)
		require.NoError(t, err)
		require.Len(t, fragments, 2)
		assert.Contains(t, fragments[0].Content, "cycle_time_days")
		assert.Greater(t, fragments[0].Relevance, fragments[1].Relevance)
	})

	t.Run("limit caps fragments", func(t *testing.T) {
		layer := NewLayer(Config{FragmentLimit: 2}, nil)
		for i := 0; i < 4; i++ {
			require.NoError(t, layer.Capture(ctx, newSnapshot(t, fmt.Sprintf("team-%d", i), "Edge", 5)))
		}
		fragments, err := layer.Query(ctx, "edge team", "s1", 0)
		require.NoError(t, err)
		assert.Len(t, fragments, 2)
	})

	t.Run("empty store yields nothing", func(t *testing.T) {
		layer := NewLayer(Config{}, nil)
		fragments, err := layer.Query(ctx, "anything", "s1", 0)
		require.NoError(t, err)
		assert.Empty(t, fragments)
	})
}
