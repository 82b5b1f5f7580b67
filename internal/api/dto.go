package api

import (
	"github.com/chriscantu/advisord/internal/archive"
	"github.com/chriscantu/advisord/internal/memory"
)

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`

	// MaxBytes caps the bundle size. Zero uses the server default.
	MaxBytes int `json:"max_bytes"`
}

// RetrieveResponse pairs the packed bundle with its retrieval metrics.
type RetrieveResponse struct {
	Bundle  memory.ContextBundle    `json:"bundle"`
	Metrics memory.RetrievalMetrics `json:"metrics"`
}

// OutcomeRequest is the body of POST /v1/outcome.
type OutcomeRequest struct {
	SessionID        string                    `json:"session_id"`
	Query            string                    `json:"query"`
	Response         string                    `json:"response"`
	FrameworksUsed   []string                  `json:"frameworks_used,omitempty"`
	StrategicUpdates []memory.InitiativeUpdate `json:"strategic_updates,omitempty"`
	Interactions     []memory.InteractionEvent `json:"interactions,omitempty"`
	Effectiveness    *float64                  `json:"effectiveness,omitempty"`
}

// OutcomeResponse acknowledges a recorded outcome.
type OutcomeResponse struct {
	Status string `json:"status"`
}

// TurnRequest is the body of POST /v1/turns.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Response  string `json:"response"`
}

// InitiativeRequest is the body of POST /v1/initiatives.
type InitiativeRequest struct {
	ID           string                  `json:"id,omitempty"`
	Name         string                  `json:"name"`
	Status       memory.InitiativeStatus `json:"status,omitempty"`
	Priority     string                  `json:"priority,omitempty"`
	Progress     *float64                `json:"progress,omitempty"`
	HealthScore  *float64                `json:"health_score,omitempty"`
	Frameworks   []string                `json:"frameworks,omitempty"`
	Stakeholders []string                `json:"stakeholders,omitempty"`
}

// StakeholderRequest is the body of POST /v1/stakeholders.
type StakeholderRequest struct {
	ID                 string                 `json:"id,omitempty"`
	Name               string                 `json:"name"`
	Role               memory.StakeholderRole `json:"role"`
	Influence          memory.InfluenceLevel  `json:"influence"`
	Organization       string                 `json:"organization,omitempty"`
	CommunicationStyle string                 `json:"communication_style,omitempty"`
}

// InteractionRequest is the body of POST /v1/stakeholders/:id/interactions.
type InteractionRequest struct {
	Type    string                    `json:"type,omitempty"`
	Context string                    `json:"context,omitempty"`
	Outcome memory.InteractionOutcome `json:"outcome"`
}

// UsageRequest is the body of POST /v1/frameworks/usage.
type UsageRequest struct {
	Framework     string  `json:"framework"`
	SessionID     string  `json:"session_id,omitempty"`
	Query         string  `json:"query,omitempty"`
	Effectiveness float64 `json:"effectiveness"`
}

// SnapshotRequest is the body of POST /v1/teams/snapshots.
type SnapshotRequest struct {
	TeamID                string              `json:"team_id"`
	Name                  string              `json:"name"`
	Topology              memory.TeamTopology `json:"topology"`
	Size                  int                 `json:"size"`
	CollaborationPatterns []string            `json:"collaboration_patterns,omitempty"`
	PerformanceMetrics    map[string]float64  `json:"performance_metrics,omitempty"`
}

// StructureResponse is the body of GET /v1/teams/:id/structure.
type StructureResponse struct {
	Latest  *memory.TeamSnapshot   `json:"latest"`
	History []*memory.TeamSnapshot `json:"history,omitempty"`
}

// ArchiveSearchResponse is the body of GET /v1/archive/search.
type ArchiveSearchResponse struct {
	Hits []archive.Hit `json:"hits"`
}
