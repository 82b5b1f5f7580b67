package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscantu/advisord/internal/memory"
)

func TestRetrieveRespectsByteBudget(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, strings.Repeat("c", 120), 0.9),
	}
	stubs[memory.LayerStrategic].fragments = []memory.Fragment{
		frag(memory.LayerStrategic, strings.Repeat("s", 100), 0.8),
	}
	stubs[memory.LayerStakeholder].fragments = []memory.Fragment{
		frag(memory.LayerStakeholder, strings.Repeat("k", 80), 0.7),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 210)
	require.NoError(t, err)

	// The 100-byte fragment would overflow 120+100 > 210: it is skipped
	// whole and packing continues with the 80-byte one.
	require.Len(t, bundle.Fragments, 2)
	assert.Equal(t, 120, bundle.Fragments[0].SizeBytes)
	assert.Equal(t, 80, bundle.Fragments[1].SizeBytes)
	assert.Equal(t, 200, bundle.SizeBytes)
	assert.Equal(t, 3, metrics.FragmentsRetrieved)
	assert.Equal(t, 2, metrics.FragmentsReturned)
	assert.Equal(t, 200, metrics.BytesReturned)
	assert.Equal(t, 210, metrics.BytesBudget)

	// Fragments are packed intact, never cut down to fit.
	for _, f := range bundle.Fragments {
		assert.Equal(t, len(f.Content), f.SizeBytes)
	}
}

func TestRetrieveBundleNeverExceedsBudget(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, strings.Repeat("c", 120), 0.9),
		frag(memory.LayerConversation, strings.Repeat("d", 64), 0.6),
	}
	stubs[memory.LayerStrategic].fragments = []memory.Fragment{
		frag(memory.LayerStrategic, strings.Repeat("s", 100), 0.8),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	for _, budget := range []int{1, 63, 64, 119, 120, 185, 220, 284, 4096} {
		bundle, _, err := orch.Retrieve(context.Background(), "q", "s1", budget)
		require.NoError(t, err)
		assert.LessOrEqual(t, bundle.SizeBytes, budget, "budget %d", budget)
	}
}

func TestRetrieveScoresStayBounded(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "platform team discussion", 0.9, "platform", "team"),
	}
	stubs[memory.LayerStrategic].fragments = []memory.Fragment{
		frag(memory.LayerStrategic, "platform initiative", 0.6, "platform", "initiative"),
	}
	stubs[memory.LayerLearning].fragments = []memory.Fragment{
		frag(memory.LayerLearning, "unrelated framework", 0.4, "budget"),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	for _, query := range []string{"", "platform team", "completely unrelated"} {
		bundle, _, err := orch.Retrieve(context.Background(), query, "s1", 4096)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, bundle.OverallRelevance, 0.0)
		assert.LessOrEqual(t, bundle.OverallRelevance, 1.0)
		assert.GreaterOrEqual(t, bundle.CoherenceScore, 0.0)
		assert.LessOrEqual(t, bundle.CoherenceScore, 1.0)
		assert.GreaterOrEqual(t, bundle.LayerCoverage, 0.0)
		assert.LessOrEqual(t, bundle.LayerCoverage, 1.0)
	}

	// Two of three pairs share a keyword.
	bundle, _, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)
	require.Len(t, bundle.Fragments, 3)
	assert.InDelta(t, 1.0/3.0, bundle.CoherenceScore, 1e-9)
	assert.InDelta(t, 3.0/5.0, bundle.LayerCoverage, 1e-9)
}

func TestRetrieveOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	stubs, layers := fiveStubs()
	stubs[memory.LayerLearning].fragments = []memory.Fragment{
		memory.NewFragment(memory.LayerLearning, "highest relevance", 0.9, nil, base),
	}
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		memory.NewFragment(memory.LayerConversation, "conversation wins ties", 0.5, nil, base),
	}
	// Strategic returns its fragments oldest first to prove the
	// orchestrator re-sorts the tie by recency.
	stubs[memory.LayerStrategic].fragments = []memory.Fragment{
		memory.NewFragment(memory.LayerStrategic, "older strategic", 0.5, nil, base.Add(-time.Hour)),
		memory.NewFragment(memory.LayerStrategic, "newer strategic", 0.5, nil, base),
	}
	stubs[memory.LayerOrganizational].fragments = []memory.Fragment{
		memory.NewFragment(memory.LayerOrganizational, "organizational loses ties", 0.5, nil, base.Add(time.Hour)),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, _, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	var contents []string
	for _, f := range bundle.Fragments {
		contents = append(contents, f.Content)
	}
	assert.Equal(t, []string{
		"highest relevance",
		"conversation wins ties",
		"newer strategic",
		"older strategic",
		"organizational loses ties",
	}, contents)
}

func TestRetrieveDropsFragmentsBelowFloor(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerStrategic].fragments = []memory.Fragment{
		frag(memory.LayerStrategic, "above the floor", 0.9),
		frag(memory.LayerStrategic, "exactly at the floor", DefaultRelevanceFloor),
		frag(memory.LayerStrategic, "below the floor", 0.1),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	require.Len(t, bundle.Fragments, 2)
	assert.Equal(t, "above the floor", bundle.Fragments[0].Content)
	assert.Equal(t, "exactly at the floor", bundle.Fragments[1].Content)
	assert.Equal(t, 3, metrics.FragmentsRetrieved)
}

func TestRetrieveToleratesPartialLayerFailure(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "still here", 0.9),
	}
	stubs[memory.LayerStrategic].err = errors.New("store offline")
	stubs[memory.LayerStakeholder].err = memory.ErrLayerUnavailable
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	require.Len(t, bundle.Fragments, 1)
	assert.Equal(t, "still here", bundle.Fragments[0].Content)
	assert.False(t, bundle.Fallback)
	assert.Len(t, metrics.LayerMisses, 2)
	assert.Equal(t, "store offline", metrics.LayerMisses[memory.LayerStrategic])
}

func TestRetrieveAllLayersFailServesFallback(t *testing.T) {
	stubs, layers := fiveStubs()
	for _, s := range stubs {
		s.err = errors.New("down")
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	assert.True(t, bundle.Fallback)
	require.Len(t, bundle.Fragments, 1)
	assert.Equal(t, memory.LayerFallback, bundle.Fragments[0].Layer)
	assert.Contains(t, bundle.Fragments[0].Content, "degraded")
	assert.Equal(t, 0.0, bundle.LayerCoverage)
	assert.Equal(t, 0.0, bundle.OverallRelevance)
	assert.Len(t, metrics.LayerMisses, memory.LayerCount)
}

func TestRetrieveFallbackRespectsTinyBudget(t *testing.T) {
	stubs, layers := fiveStubs()
	for _, s := range stubs {
		s.err = errors.New("down")
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, _, err := orch.Retrieve(context.Background(), "q", "s1", 10)
	require.NoError(t, err)

	assert.True(t, bundle.Fallback)
	assert.Empty(t, bundle.Fragments)
	assert.Equal(t, 0, bundle.SizeBytes)
}

func TestRetrieveUnusableBudget(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "never asked for", 0.9),
	}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 0)
	require.NoError(t, err)

	assert.True(t, bundle.Fallback)
	assert.Empty(t, bundle.Fragments)
	assert.Equal(t, 0, metrics.FragmentsRetrieved)
	assert.Equal(t, 0, stubs[memory.LayerConversation].queryCount())
}

func TestRetrieveSlowLayersAllTimeout(t *testing.T) {
	stubs, layers := fiveStubs()
	for _, s := range stubs {
		s.delay = 500 * time.Millisecond
	}
	orch := newStubOrchestrator(t, Config{
		LayerTimeout: time.Millisecond,
		Cache:        CacheConfig{Disabled: true},
	}, Options{Layers: layers})

	start := time.Now()
	bundle, metrics, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 500*time.Millisecond,
		"five 1ms layer deadlines must not stack into the layer delay")
	require.Len(t, metrics.LayerMisses, memory.LayerCount)
	for kind, reason := range metrics.LayerMisses {
		assert.Equal(t, "timeout", reason, "layer %s", kind)
	}
	assert.True(t, bundle.Fallback)
	assert.Equal(t, 0.0, bundle.LayerCoverage)
}

func TestRetrieveServesSecondCallFromCache(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "cached context", 0.9, "cached"),
	}
	orch := newStubOrchestrator(t, Config{}, Options{Layers: layers})

	first, m1, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)
	assert.False(t, m1.CacheHit)

	second, m2, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)
	assert.True(t, m2.CacheHit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, stubs[memory.LayerConversation].queryCount())
}

func TestRetrieveCacheKeyIncludesBudgetAndSession(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "cached context", 0.9),
	}
	orch := newStubOrchestrator(t, Config{}, Options{Layers: layers})

	_, _, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	_, m2, err := orch.Retrieve(context.Background(), "q", "s1", 2048)
	require.NoError(t, err)
	assert.False(t, m2.CacheHit, "different budget must not share a cache entry")

	_, m3, err := orch.Retrieve(context.Background(), "q", "s2", 4096)
	require.NoError(t, err)
	assert.False(t, m3.CacheHit, "different session must not share a cache entry")
}

func TestRecordOutcomeInvalidatesSessionCache(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "cached context", 0.9),
	}
	turns := &stubTurnWriter{}
	orch := newStubOrchestrator(t, Config{}, Options{Layers: layers, Turns: turns})
	ctx := context.Background()

	_, _, err := orch.Retrieve(ctx, "q", "s1", 4096)
	require.NoError(t, err)
	_, m2, err := orch.Retrieve(ctx, "q", "s1", 4096)
	require.NoError(t, err)
	require.True(t, m2.CacheHit)

	require.NoError(t, orch.RecordOutcome(ctx, memory.OutcomeRecord{
		SessionID: "s1",
		Query:     "q",
		Response:  "recorded",
	}))

	_, m3, err := orch.Retrieve(ctx, "q", "s1", 4096)
	require.NoError(t, err)
	assert.False(t, m3.CacheHit, "an outcome write must invalidate the session's entries")
	assert.Equal(t, 2, stubs[memory.LayerConversation].queryCount())
}

func TestRetrieveFallbackBundlesAreNotCached(t *testing.T) {
	stubs, layers := fiveStubs()
	for _, s := range stubs {
		s.err = errors.New("down")
	}
	orch := newStubOrchestrator(t, Config{}, Options{Layers: layers})

	_, _, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	// Layers recover; the next call must reach them instead of replaying
	// the degraded bundle.
	for _, s := range stubs {
		s.err = nil
	}
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "recovered", 0.9),
	}
	bundle, m2, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)
	assert.False(t, m2.CacheHit)
	assert.False(t, bundle.Fallback)
	require.Len(t, bundle.Fragments, 1)
	assert.Equal(t, "recovered", bundle.Fragments[0].Content)
}

func TestRetrieveReportsToRecorderAndNotifier(t *testing.T) {
	stubs, layers := fiveStubs()
	stubs[memory.LayerConversation].fragments = []memory.Fragment{
		frag(memory.LayerConversation, "conversation context", 0.9),
	}
	recorder := &stubRecorder{}
	notifier := &stubNotifier{}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:   layers,
		Recorder: recorder,
		Notifier: notifier,
	})

	_, _, err := orch.Retrieve(context.Background(), "q", "s1", 4096)
	require.NoError(t, err)

	assert.Equal(t, 1, recorder.retrievals())
	// One contributing layer of five is below the degradation threshold.
	assert.Equal(t, 1, notifier.degradedCount())
}
