package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscantu/advisord/internal/memory"
)

type stubTurnWriter struct {
	mu    sync.Mutex
	err   error
	turns []*memory.ConversationTurn
}

func (w *stubTurnWriter) AppendTurn(_ context.Context, turn *memory.ConversationTurn) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.turns = append(w.turns, turn)
	return nil
}

type stubInitiativeWriter struct {
	mu      sync.Mutex
	err     error
	updates []memory.InitiativeUpdate
}

func (w *stubInitiativeWriter) Apply(_ context.Context, update memory.InitiativeUpdate) (*memory.Initiative, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.updates = append(w.updates, update)
	return &memory.Initiative{ID: "stub", Name: update.Name}, nil
}

type stubUsageWriter struct {
	mu     sync.Mutex
	err    error
	usages []*memory.FrameworkUsage
}

func (w *stubUsageWriter) RecordUsage(_ context.Context, usage *memory.FrameworkUsage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.usages = append(w.usages, usage)
	return nil
}

type stubInteractionWriter struct {
	mu     sync.Mutex
	err    error
	events []memory.InteractionEvent
}

func (w *stubInteractionWriter) RecordInteraction(_ context.Context, stakeholderID, kind, detail string, outcome memory.InteractionOutcome) (*memory.Interaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.events = append(w.events, memory.InteractionEvent{
		StakeholderID: stakeholderID,
		Type:          kind,
		Context:       detail,
		Outcome:       outcome,
	})
	return nil, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	metrics []memory.RetrievalMetrics
	writes  [][2]int
}

func (r *stubRecorder) Record(m memory.RetrievalMetrics, _ memory.ContextBundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

func (r *stubRecorder) RecordWrite(attempted, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, [2]int{attempted, failed})
}

func (r *stubRecorder) retrievals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.metrics)
}

type stubNotifier struct {
	mu       sync.Mutex
	outcomes []memory.OutcomeRecord
	degraded []float64
}

func (n *stubNotifier) OutcomeRecorded(_ context.Context, rec memory.OutcomeRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, rec)
}

func (n *stubNotifier) RetrievalDegraded(_ context.Context, _ string, coverage float64, _ map[memory.LayerKind]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.degraded = append(n.degraded, coverage)
}

func (n *stubNotifier) degradedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.degraded)
}

func validOutcome() memory.OutcomeRecord {
	return memory.OutcomeRecord{
		SessionID: "s1",
		Query:     "How do we staff the migration?",
		Response:  "Split the platform group and backfill two stream-aligned teams.",
	}
}

func TestRecordOutcomeFansOutToAllWriters(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{}
	inits := &stubInitiativeWriter{}
	usage := &stubUsageWriter{}
	interactions := &stubInteractionWriter{}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:       layers,
		Turns:        turns,
		Initiatives:  inits,
		Usage:        usage,
		Interactions: interactions,
	})

	rec := validOutcome()
	rec.Frameworks = []string{"team_topologies", "radical_candor"}
	rec.Initiatives = []memory.InitiativeUpdate{{Name: "Platform Split", Status: memory.StatusActive}}
	rec.Interactions = []memory.InteractionEvent{
		{StakeholderID: "alice", Type: "meeting", Outcome: memory.InteractionPositive},
	}
	require.NoError(t, orch.RecordOutcome(context.Background(), rec))

	require.Len(t, turns.turns, 1)
	assert.Equal(t, "s1", turns.turns[0].SessionID)
	assert.Equal(t, rec.Query, turns.turns[0].Query)
	assert.Equal(t, rec.Response, turns.turns[0].Response)

	require.Len(t, inits.updates, 1)
	assert.Equal(t, "Platform Split", inits.updates[0].Name)

	require.Len(t, usage.usages, 2)
	seen := map[string]bool{}
	for _, u := range usage.usages {
		seen[u.Framework] = true
		// A single positive interaction scores the exchange fully
		// effective under the default heuristic.
		assert.InDelta(t, 1.0, u.Effectiveness, 1e-9)
	}
	assert.True(t, seen["team_topologies"])
	assert.True(t, seen["radical_candor"])

	require.Len(t, interactions.events, 1)
	assert.Equal(t, "alice", interactions.events[0].StakeholderID)
	assert.Equal(t, memory.InteractionPositive, interactions.events[0].Outcome)
}

func TestRecordOutcomeRejectsInvalidRecord(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{}
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers, Turns: turns})

	rec := validOutcome()
	rec.SessionID = ""
	err := orch.RecordOutcome(context.Background(), rec)

	assert.ErrorIs(t, err, memory.ErrInvalidArgument)
	assert.Empty(t, turns.turns, "no sub-write may run for an invalid record")
}

func TestRecordOutcomePartialFailureSucceeds(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{err: errors.New("conversation store down")}
	inits := &stubInitiativeWriter{}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:      layers,
		Turns:       turns,
		Initiatives: inits,
	})

	rec := validOutcome()
	rec.Initiatives = []memory.InitiativeUpdate{{Name: "Platform Split"}}
	err := orch.RecordOutcome(context.Background(), rec)

	require.NoError(t, err, "one surviving sub-write keeps the call successful")
	assert.Len(t, inits.updates, 1)
}

func TestRecordOutcomeAllWritesFailed(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{err: errors.New("conversation store down")}
	inits := &stubInitiativeWriter{err: errors.New("strategic store down")}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:      layers,
		Turns:       turns,
		Initiatives: inits,
	})

	rec := validOutcome()
	rec.Initiatives = []memory.InitiativeUpdate{{Name: "Platform Split"}}
	err := orch.RecordOutcome(context.Background(), rec)

	assert.ErrorIs(t, err, memory.ErrAggregateWriteFailure)
	assert.Contains(t, err.Error(), "conversation write")
	assert.Contains(t, err.Error(), "strategic write")
}

func TestRecordOutcomeWithoutWritersIsNoop(t *testing.T) {
	_, layers := fiveStubs()
	orch := newStubOrchestrator(t, noCache(), Options{Layers: layers})

	assert.NoError(t, orch.RecordOutcome(context.Background(), validOutcome()))
}

func TestRecordOutcomeNotifiesAndRecords(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{}
	recorder := &stubRecorder{}
	notifier := &stubNotifier{}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:   layers,
		Turns:    turns,
		Recorder: recorder,
		Notifier: notifier,
	})

	require.NoError(t, orch.RecordOutcome(context.Background(), validOutcome()))

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, "s1", notifier.outcomes[0].SessionID)
	require.Len(t, recorder.writes, 1)
	assert.Equal(t, [2]int{1, 0}, recorder.writes[0])
}

func TestRecordOutcomeTotalFailureSkipsNotification(t *testing.T) {
	_, layers := fiveStubs()
	turns := &stubTurnWriter{err: errors.New("down")}
	notifier := &stubNotifier{}
	orch := newStubOrchestrator(t, noCache(), Options{
		Layers:   layers,
		Turns:    turns,
		Notifier: notifier,
	})

	err := orch.RecordOutcome(context.Background(), validOutcome())

	assert.ErrorIs(t, err, memory.ErrAggregateWriteFailure)
	assert.Empty(t, notifier.outcomes)
}

func TestEstimateEffectiveness(t *testing.T) {
	explicit := 0.85
	over := 1.7

	tests := []struct {
		name string
		rec  memory.OutcomeRecord
		want float64
	}{
		{"explicit score wins", memory.OutcomeRecord{Effectiveness: &explicit}, 0.85},
		{"explicit score clamped", memory.OutcomeRecord{Effectiveness: &over}, 1.0},
		{"no signals means neutral", memory.OutcomeRecord{}, 0.5},
		{
			"mean interaction sentiment",
			memory.OutcomeRecord{Interactions: []memory.InteractionEvent{
				{Outcome: memory.InteractionPositive},
				{Outcome: memory.InteractionNegative},
				{Outcome: memory.InteractionNeutral},
				{Outcome: memory.InteractionPositive},
			}},
			0.625,
		},
		{
			"all negative",
			memory.OutcomeRecord{Interactions: []memory.InteractionEvent{
				{Outcome: memory.InteractionNegative},
			}},
			0.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, estimateEffectiveness(tt.rec), 1e-9)
		})
	}
}
