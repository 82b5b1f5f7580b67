package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.0, Clamp01(0))
	assert.Equal(t, 0.5, Clamp01(0.5))
	assert.Equal(t, 1.0, Clamp01(1))
	assert.Equal(t, 1.0, Clamp01(1.7))
}

func TestRecency(t *testing.T) {
	// Age measures from the start of the day, so the cases pin now to
	// mid-day and place records at day offsets from that boundary.
	now := time.Date(2026, 5, 12, 15, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC)
	horizon := 10 * 24 * time.Hour

	tests := []struct {
		name string
		ts   time.Time
		want float64
	}{
		{"earlier the same day", now.Add(-2 * time.Hour), 1},
		{"future timestamp treated as fresh", now.Add(time.Hour), 1},
		{"halfway through horizon", dayStart.Add(-5 * 24 * time.Hour), 0.5},
		{"at horizon", dayStart.Add(-horizon), 0},
		{"beyond horizon", dayStart.Add(-2 * horizon), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Recency(tt.ts, now, horizon), 1e-9)
		})
	}

	t.Run("stable across a day", func(t *testing.T) {
		ts := dayStart.Add(-3 * 24 * time.Hour)
		assert.Equal(t,
			Recency(ts, now, horizon),
			Recency(ts, now.Add(5*time.Hour), horizon))
	})

	t.Run("non-positive horizon treats everything as fresh", func(t *testing.T) {
		assert.Equal(t, 1.0, Recency(now.Add(-1000*time.Hour), now, 0))
	})
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		name                     string
		overlap, recency, signal float64
		want                     float64
	}{
		{"all maxed", 1, 1, 1, 1},
		{"all zero", 0, 0, 0, 0},
		{"half overlap full rest", 0.5, 1, 1, 0.7},
		{"overlap only", 1, 0, 0, 0.6},
		{"out of range inputs clamped", 2, -1, 0.5, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Relevance(tt.overlap, tt.recency, tt.signal)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}
