// Package memory defines the shared data model for the advisord context
// engine: the five context layers, the fragments they emit, the bundle
// assembled from those fragments, and the records each layer persists.
//
// Everything a layer returns is expressed as a Fragment so the orchestrator
// can score, sort, and pack results from heterogeneous sources with one
// pipeline. Layers never see each other; they only share this package.
package memory

import "context"

// LayerKind identifies one of the five context layers.
type LayerKind string

const (
	// LayerConversation holds recent session turns.
	LayerConversation LayerKind = "conversation"

	// LayerStrategic holds initiative state.
	LayerStrategic LayerKind = "strategic"

	// LayerStakeholder holds relationship profiles.
	LayerStakeholder LayerKind = "stakeholder"

	// LayerLearning holds framework effectiveness history.
	LayerLearning LayerKind = "learning"

	// LayerOrganizational holds team structure snapshots.
	LayerOrganizational LayerKind = "organizational"
)

// LayerFallback marks the synthetic fragment served when every real layer
// misses. It is not a queryable layer and never counts toward coverage.
const LayerFallback LayerKind = "fallback"

// LayerKinds lists all layers in descending tie-break priority.
// Conversation wins ties, organizational loses them.
var LayerKinds = []LayerKind{
	LayerConversation,
	LayerStrategic,
	LayerStakeholder,
	LayerLearning,
	LayerOrganizational,
}

// LayerCount is the number of context layers an engine queries.
var LayerCount = len(LayerKinds)

// Priority returns the tie-break rank of the layer: 0 for conversation
// through 4 for organizational. Unknown kinds rank last.
func (k LayerKind) Priority() int {
	for i, kind := range LayerKinds {
		if k == kind {
			return i
		}
	}
	return LayerCount
}

// Valid reports whether k names one of the five layers.
func (k LayerKind) Valid() bool {
	return k.Priority() < LayerCount
}

func (k LayerKind) String() string { return string(k) }

// Layer is the read surface every context layer exposes to the
// orchestrator. Query returns at most limit fragments relevant to the
// query text, already carrying the layer's relevance estimate.
//
// Implementations must honor ctx cancellation; the orchestrator runs each
// layer under a per-layer deadline and treats an expired context as a
// layer miss, not a retrieval failure.
type Layer interface {
	Kind() LayerKind
	Query(ctx context.Context, query, sessionID string, limit int) ([]Fragment, error)
}
