package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscantu/advisord/internal/api"
	"github.com/chriscantu/advisord/internal/archive"
	"github.com/chriscantu/advisord/internal/learning"
	"github.com/chriscantu/advisord/internal/memory"
	"github.com/chriscantu/advisord/internal/monitor"
	"github.com/chriscantu/advisord/pkg/server"
)

// withServer points the package-level serverURL at ts for the duration
// of the test.
func withServer(t *testing.T, ts *httptest.Server) {
	t.Helper()
	old := serverURL
	serverURL = ts.URL
	t.Cleanup(func() {
		serverURL = old
		ts.Close()
	})
}

func TestRunHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(server.HealthResponse{Status: "ok", Service: "advisord"})
	}))
	withServer(t, ts)

	require.NoError(t, runHealth(healthCmd, nil))
}

func TestRunStatsFetchesStatsAndHealth(t *testing.T) {
	var statsHits, healthHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		statsHits.Add(1)
		_ = json.NewEncoder(w).Encode(monitor.AggregateMetrics{
			Retrievals:    12,
			CacheHits:     4,
			CacheMisses:   8,
			MeanRelevance: 0.62,
			MeanCoverage:  0.8,
			LatencyP50MS:  2.5,
			LatencyP95MS:  25,
			LayerMisses:   map[memory.LayerKind]uint64{memory.LayerStrategic: 2},
		})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthHits.Add(1)
		_ = json.NewEncoder(w).Encode(server.HealthResponse{Status: "ok"})
	})
	withServer(t, httptest.NewServer(mux))

	require.NoError(t, runStats(statsCmd, nil))
	assert.Equal(t, int32(1), statsHits.Load())
	assert.Equal(t, int32(1), healthHits.Load())
}

func TestRunStatsReset(t *testing.T) {
	var resetHits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/stats/reset", r.URL.Path)
		resetHits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	withServer(t, ts)

	statsReset = true
	defer func() { statsReset = false }()

	require.NoError(t, runStats(statsCmd, nil))
	assert.Equal(t, int32(1), resetHits.Load())
}

func TestRunStatsPropagatesFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "monitor wedged"})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(server.HealthResponse{Status: "ok"})
	})
	withServer(t, httptest.NewServer(mux))

	err := runStats(statsCmd, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "monitor wedged")
}

func TestRunRetrieve(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/retrieve", r.URL.Path)

		var req api.RetrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "platform staffing", req.Query)
		assert.Equal(t, "sess-1", req.SessionID)
		assert.Equal(t, 4096, req.MaxBytes)

		_ = json.NewEncoder(w).Encode(api.RetrieveResponse{
			Bundle: memory.ContextBundle{
				Fragments: []memory.Fragment{{
					Layer:     memory.LayerConversation,
					Content:   "Q: platform staffing",
					Relevance: 0.7,
					SizeBytes: 20,
				}},
				OverallRelevance: 0.7,
				CoherenceScore:   1,
				LayerCoverage:    0.2,
				SizeBytes:        20,
			},
			Metrics: memory.RetrievalMetrics{
				TotalLatency:      3 * time.Millisecond,
				FragmentsReturned: 1,
				BytesReturned:     20,
				BytesBudget:       4096,
			},
		})
	}))
	withServer(t, ts)

	retSessionID = "sess-1"
	retMaxBytes = 4096
	defer func() {
		retSessionID = ""
		retMaxBytes = 0
	}()

	require.NoError(t, runRetrieve(retrieveCmd, []string{"platform staffing"}))
}

func TestRunOutcomeSendsEffectivenessOnlyWhenSet(t *testing.T) {
	var got api.OutcomeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.OutcomeResponse{Status: "recorded"})
	}))
	withServer(t, ts)

	outSession = "sess-1"
	outQuery = "How do we split the team?"
	outResponse = "Stream-aligned split."
	outFrameworks = []string{"team_topologies"}
	defer func() {
		outSession, outQuery, outResponse, outFrameworks = "", "", "", nil
	}()

	// Flag not set: no effectiveness in the payload.
	require.NoError(t, runOutcome(outcomeCmd, nil))
	assert.Nil(t, got.Effectiveness)
	assert.Equal(t, []string{"team_topologies"}, got.FrameworksUsed)

	// Flag set: the value rides along, zero included.
	require.NoError(t, outcomeCmd.Flags().Set("effectiveness", "0.8"))
	defer func() {
		f := outcomeCmd.Flags().Lookup("effectiveness")
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}()

	require.NoError(t, runOutcome(outcomeCmd, nil))
	require.NotNil(t, got.Effectiveness)
	assert.InDelta(t, 0.8, *got.Effectiveness, 1e-9)
}

func TestRunFrameworks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/frameworks/top", r.URL.Path)
		assert.Equal(t, "team reorg", r.URL.Query().Get("topic"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]learning.FrameworkStat{
			{Framework: "team_topologies", MeanEffectiveness: 0.9, UsageCount: 3, LastUsed: time.Now()},
		})
	}))
	withServer(t, ts)

	fwLimit = 5
	defer func() { fwLimit = 10 }()

	require.NoError(t, runFrameworks(frameworksCmd, []string{"team reorg"}))
}

func TestRunStakeholderInteract(t *testing.T) {
	var interactHits, showHits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/stakeholders/sh-1/interactions", func(w http.ResponseWriter, r *http.Request) {
		interactHits.Add(1)

		var req api.InteractionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, memory.InteractionPositive, req.Outcome)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(memory.Interaction{
			ID:            "int-1",
			StakeholderID: "sh-1",
			Outcome:       memory.InteractionPositive,
		})
	})
	mux.HandleFunc("/v1/stakeholders/sh-1", func(w http.ResponseWriter, r *http.Request) {
		showHits.Add(1)
		_ = json.NewEncoder(w).Encode(memory.StakeholderProfile{
			ID:                  "sh-1",
			Name:                "Dana",
			Role:                memory.RoleEngineering,
			Influence:           memory.InfluenceHigh,
			RelationshipQuality: 0.55,
			TrustLevel:          0.55,
		})
	})
	withServer(t, httptest.NewServer(mux))

	shOutcome = "positive"
	defer func() { shOutcome = "neutral" }()

	require.NoError(t, runStakeholderInteract(stakeholderInteractCmd, []string{"sh-1"}))
	assert.Equal(t, int32(1), interactHits.Load())
	assert.Equal(t, int32(1), showHits.Load())
}

func TestRunArchiveSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/archive/search", r.URL.Path)
		assert.Equal(t, "platform roadmap", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(api.ArchiveSearchResponse{
			Hits: []archive.Hit{
				{ID: "turn-1", SessionID: "sess-old", Content: "Q: roadmap review", Score: 0.83, CreatedAt: time.Now()},
			},
		})
	}))
	withServer(t, ts)

	arLimit = 3
	defer func() { arLimit = 10 }()

	require.NoError(t, runArchiveSearch(archiveSearchCmd, []string{"platform roadmap"}))
}
