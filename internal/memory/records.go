package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationTurn is one query/response exchange within a session.
// Keywords are extracted once at write time so retrieval never re-tokenizes
// stored turns.
type ConversationTurn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewConversationTurn builds a turn with a generated ID and keywords
// derived from both sides of the exchange.
func NewConversationTurn(sessionID, query, response string) (*ConversationTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidArgument)
	}
	return &ConversationTurn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Query:     query,
		Response:  response,
		Keywords:  ExtractKeywords(query + " " + response),
		CreatedAt: time.Now(),
	}, nil
}

// Content renders the turn as fragment text.
func (t *ConversationTurn) Content() string {
	return "Q: " + t.Query + "\nA: " + t.Response
}

// InitiativeStatus is the lifecycle state of a strategic initiative.
type InitiativeStatus string

const (
	StatusIdentified InitiativeStatus = "identified"
	StatusPlanned    InitiativeStatus = "planned"
	StatusActive     InitiativeStatus = "active"
	StatusAtRisk     InitiativeStatus = "at_risk"
	StatusCompleted  InitiativeStatus = "completed"
	StatusArchived   InitiativeStatus = "archived"
)

// Valid reports whether s is a known status.
func (s InitiativeStatus) Valid() bool {
	switch s {
	case StatusIdentified, StatusPlanned, StatusActive, StatusAtRisk, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Initiative is a tracked strategic effort: a reorg, a platform
// investment, a migration. Initiatives are never deleted, only
// status-transitioned to completed or archived.
type Initiative struct {
	// ID is unique per organization. Callers may supply their own;
	// constructors generate a UUID when it is empty.
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Status InitiativeStatus `json:"status"`

	// Priority is a free-form rank such as "p0" or "high".
	Priority string `json:"priority,omitempty"`

	// Progress is percent complete in [0, 100].
	Progress float64 `json:"progress"`

	// HealthScore is delivery confidence in [0, 1].
	HealthScore float64 `json:"health_score"`

	// Frameworks lists strategic frameworks applied to this initiative.
	Frameworks []string `json:"frameworks,omitempty"`

	// Stakeholders holds weak references to stakeholder IDs; the strategic
	// layer never resolves or owns them.
	Stakeholders []string `json:"stakeholders,omitempty"`

	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewInitiative builds an initiative. An empty id gets a generated UUID,
// an empty status defaults to identified, and health starts neutral.
func NewInitiative(id, name string, status InitiativeStatus) (*Initiative, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: initiative name is empty", ErrInvalidArgument)
	}
	if status == "" {
		status = StatusIdentified
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown initiative status %q", ErrInvalidArgument, status)
	}
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now()
	return &Initiative{
		ID:          id,
		Name:        name,
		Status:      status,
		HealthScore: 0.5,
		Keywords:    ExtractKeywords(name),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Validate checks invariant fields after external mutation.
func (i *Initiative) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: initiative id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: initiative name is empty", ErrInvalidArgument)
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: unknown initiative status %q", ErrInvalidArgument, i.Status)
	}
	if i.Progress < 0 || i.Progress > 100 {
		return fmt.Errorf("%w: progress must be in [0, 100]", ErrInvalidArgument)
	}
	if i.HealthScore < 0 || i.HealthScore > 1 {
		return fmt.Errorf("%w: health score must be in [0, 1]", ErrInvalidArgument)
	}
	return nil
}

// InitiativeUpdate carries a partial update applied during outcome
// recording. Nil pointer fields and empty slices leave the current value
// untouched; Name matching is case-insensitive when ID is empty.
type InitiativeUpdate struct {
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name,omitempty"`
	Status       InitiativeStatus `json:"status,omitempty"`
	Priority     string           `json:"priority,omitempty"`
	Progress     *float64         `json:"progress,omitempty"`
	HealthScore  *float64         `json:"health_score,omitempty"`
	Frameworks   []string         `json:"frameworks,omitempty"`
	Stakeholders []string         `json:"stakeholders,omitempty"`
}

// InfluenceLevel ranks how much a stakeholder shapes decisions.
type InfluenceLevel string

const (
	InfluenceCritical InfluenceLevel = "critical"
	InfluenceHigh     InfluenceLevel = "high"
	InfluenceMedium   InfluenceLevel = "medium"
	InfluenceLow      InfluenceLevel = "low"
)

// Valid reports whether l is a known influence level.
func (l InfluenceLevel) Valid() bool {
	switch l {
	case InfluenceCritical, InfluenceHigh, InfluenceMedium, InfluenceLow:
		return true
	}
	return false
}

// StakeholderRole names the function a stakeholder represents.
type StakeholderRole string

const (
	RoleEngineering StakeholderRole = "engineering"
	RoleProduct     StakeholderRole = "product"
	RoleDesign      StakeholderRole = "design"
	RoleExecutive   StakeholderRole = "executive"
	RoleOperations  StakeholderRole = "operations"
)

// Valid reports whether r is a known role.
func (r StakeholderRole) Valid() bool {
	switch r {
	case RoleEngineering, RoleProduct, RoleDesign, RoleExecutive, RoleOperations:
		return true
	}
	return false
}

// StakeholderProfile tracks one working relationship. Quality, trust, and
// frequency move only through recorded interactions, never by direct
// write; InteractionFrequency is an unbounded accumulator while the
// quality and trust scores stay clamped to [0, 1].
type StakeholderProfile struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Role         StakeholderRole `json:"role"`
	Organization string          `json:"organization,omitempty"`

	// CommunicationStyle is free-form guidance such as "data first" or
	// "prefers async".
	CommunicationStyle string `json:"communication_style,omitempty"`

	Influence InfluenceLevel `json:"influence"`

	// RelationshipQuality and TrustLevel are in [0, 1] and start neutral.
	RelationshipQuality float64 `json:"relationship_quality"`
	TrustLevel          float64 `json:"trust_level"`

	InteractionFrequency float64   `json:"interaction_frequency"`
	LastInteraction      time.Time `json:"last_interaction,omitempty"`
	Keywords             []string  `json:"keywords,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewStakeholderProfile builds a profile with neutral quality and trust.
func NewStakeholderProfile(name string, role StakeholderRole, influence InfluenceLevel) (*StakeholderProfile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: stakeholder name is empty", ErrInvalidArgument)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown stakeholder role %q", ErrInvalidArgument, role)
	}
	if !influence.Valid() {
		return nil, fmt.Errorf("%w: unknown influence level %q", ErrInvalidArgument, influence)
	}
	now := time.Now()
	return &StakeholderProfile{
		ID:                  uuid.New().String(),
		Name:                name,
		Role:                role,
		Influence:           influence,
		RelationshipQuality: 0.5,
		TrustLevel:          0.5,
		Keywords:            ExtractKeywords(name + " " + string(role)),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// InteractionOutcome classifies how an exchange with a stakeholder went.
type InteractionOutcome string

const (
	InteractionPositive InteractionOutcome = "positive"
	InteractionNeutral  InteractionOutcome = "neutral"
	InteractionNegative InteractionOutcome = "negative"
)

// Valid reports whether o is a known outcome.
func (o InteractionOutcome) Valid() bool {
	switch o {
	case InteractionPositive, InteractionNeutral, InteractionNegative:
		return true
	}
	return false
}

// Interaction is one recorded exchange with a stakeholder. Append-only.
type Interaction struct {
	ID            string `json:"id"`
	StakeholderID string `json:"stakeholder_id"`

	// Type is a free-form label such as "one_on_one" or "escalation".
	Type string `json:"type,omitempty"`

	// Context describes what the exchange was about.
	Context string `json:"context,omitempty"`

	Outcome   InteractionOutcome `json:"outcome"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewInteraction builds an interaction record.
func NewInteraction(stakeholderID, kind, detail string, outcome InteractionOutcome) (*Interaction, error) {
	if strings.TrimSpace(stakeholderID) == "" {
		return nil, fmt.Errorf("%w: stakeholder id is empty", ErrInvalidArgument)
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: unknown interaction outcome %q", ErrInvalidArgument, outcome)
	}
	return &Interaction{
		ID:            uuid.New().String(),
		StakeholderID: stakeholderID,
		Type:          kind,
		Context:       detail,
		Outcome:       outcome,
		CreatedAt:     time.Now(),
	}, nil
}

// FrameworkUsage is one application of a strategic framework, scored for
// effectiveness. Append-only; the learning layer aggregates these per
// framework.
type FrameworkUsage struct {
	ID        string `json:"id"`
	Framework string `json:"framework"`
	SessionID string `json:"session_id,omitempty"`

	// Query preserves the question the framework was applied to;
	// Keywords are extracted from it at write time.
	Query string `json:"query,omitempty"`

	// Effectiveness is in [0, 1].
	Effectiveness float64 `json:"effectiveness"`

	Keywords  []string  `json:"keywords,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFrameworkUsage builds a usage record with effectiveness clamped to
// [0, 1].
func NewFrameworkUsage(framework, sessionID, query string, effectiveness float64) (*FrameworkUsage, error) {
	if strings.TrimSpace(framework) == "" {
		return nil, fmt.Errorf("%w: framework name is empty", ErrInvalidArgument)
	}
	return &FrameworkUsage{
		ID:            uuid.New().String(),
		Framework:     framework,
		SessionID:     sessionID,
		Query:         query,
		Effectiveness: Clamp01(effectiveness),
		Keywords:      ExtractKeywords(framework + " " + query),
		CreatedAt:     time.Now(),
	}, nil
}

// TeamTopology classifies a team's shape in the organization.
type TeamTopology string

const (
	TopologyPlatform             TeamTopology = "platform"
	TopologyStreamAligned        TeamTopology = "stream_aligned"
	TopologyEnabling             TeamTopology = "enabling"
	TopologyComplicatedSubsystem TeamTopology = "complicated_subsystem"
)

// Valid reports whether t is a known topology.
func (t TeamTopology) Valid() bool {
	switch t {
	case TopologyPlatform, TopologyStreamAligned, TopologyEnabling, TopologyComplicatedSubsystem:
		return true
	}
	return false
}

// TeamSnapshot captures a team's structure at a point in time. The newest
// snapshot per team is authoritative; older ones are retained for trend
// queries up to a bounded history.
type TeamSnapshot struct {
	ID string `json:"id"`

	// TeamID is the stable team identifier snapshots are grouped by.
	TeamID string `json:"team_id"`

	Name     string       `json:"name"`
	Topology TeamTopology `json:"topology"`

	// Size is the team headcount.
	Size int `json:"size"`

	// CollaborationPatterns lists how the team works with others, such as
	// "x_as_a_service" or "facilitating".
	CollaborationPatterns []string `json:"collaboration_patterns,omitempty"`

	// PerformanceMetrics holds named measurements like "deploy_frequency"
	// or "cycle_time_days".
	PerformanceMetrics map[string]float64 `json:"performance_metrics,omitempty"`

	Keywords   []string  `json:"keywords,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewTeamSnapshot builds a snapshot record.
func NewTeamSnapshot(teamID, name string, topology TeamTopology, size int) (*TeamSnapshot, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, fmt.Errorf("%w: team id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: team name is empty", ErrInvalidArgument)
	}
	if !topology.Valid() {
		return nil, fmt.Errorf("%w: unknown team topology %q", ErrInvalidArgument, topology)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: team size cannot be negative", ErrInvalidArgument)
	}
	return &TeamSnapshot{
		ID:         uuid.New().String(),
		TeamID:     teamID,
		Name:       name,
		Topology:   topology,
		Size:       size,
		Keywords:   ExtractKeywords(name + " " + string(topology) + " team"),
		CapturedAt: time.Now(),
	}, nil
}

// InteractionEvent is a stakeholder interaction observed while recording
// an outcome.
type InteractionEvent struct {
	StakeholderID string             `json:"stakeholder_id"`
	Type          string             `json:"type,omitempty"`
	Context       string             `json:"context,omitempty"`
	Outcome       InteractionOutcome `json:"outcome"`
}

// OutcomeRecord is the payload fanned out to layers after an advisory
// exchange completes. SessionID, Query, and Response are required; the
// rest describe what the exchange touched.
type OutcomeRecord struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Response  string `json:"response"`

	// Frameworks lists strategic frameworks applied in the response.
	Frameworks []string `json:"frameworks,omitempty"`

	// Initiatives carries progress extracted from the exchange.
	Initiatives []InitiativeUpdate `json:"initiatives,omitempty"`

	// Interactions carries stakeholder signals extracted from the exchange.
	Interactions []InteractionEvent `json:"interactions,omitempty"`

	// Effectiveness overrides the default heuristic when non-nil. Must be
	// in [0, 1].
	Effectiveness *float64 `json:"effectiveness,omitempty"`
}

// Validate checks the record before fan-out.
func (r *OutcomeRecord) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("%w: session id is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(r.Response) == "" {
		return fmt.Errorf("%w: response is empty", ErrInvalidArgument)
	}
	if r.Effectiveness != nil && (*r.Effectiveness < 0 || *r.Effectiveness > 1) {
		return fmt.Errorf("%w: effectiveness must be in [0, 1]", ErrInvalidArgument)
	}
	for _, ev := range r.Interactions {
		if strings.TrimSpace(ev.StakeholderID) == "" {
			return fmt.Errorf("%w: interaction stakeholder id is empty", ErrInvalidArgument)
		}
		if !ev.Outcome.Valid() {
			return fmt.Errorf("%w: unknown interaction outcome %q", ErrInvalidArgument, ev.Outcome)
		}
	}
	return nil
}
