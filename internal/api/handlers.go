package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/chriscantu/advisord/internal/archive"
	"github.com/chriscantu/advisord/internal/memory"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

func (a *API) handleRetrieve(c echo.Context) error {
	var req RetrieveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	maxBytes := req.MaxBytes
	if maxBytes == 0 {
		maxBytes = a.opts.Engine.DefaultBudget()
	}

	bundle, metrics, err := a.opts.Engine.Retrieve(c.Request().Context(), req.Query, req.SessionID, maxBytes)
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusOK, RetrieveResponse{Bundle: bundle, Metrics: metrics})
}

func (a *API) handleOutcome(c echo.Context) error {
	var req OutcomeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	rec := memory.OutcomeRecord{
		SessionID:     req.SessionID,
		Query:         req.Query,
		Response:      req.Response,
		Frameworks:    req.FrameworksUsed,
		Initiatives:   req.StrategicUpdates,
		Interactions:  req.Interactions,
		Effectiveness: req.Effectiveness,
	}
	if err := a.opts.Engine.RecordOutcome(c.Request().Context(), rec); err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusAccepted, OutcomeResponse{Status: "recorded"})
}

func (a *API) handleAppendTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	turn, err := memory.NewConversationTurn(req.SessionID, req.Query, req.Response)
	if err != nil {
		return a.httpError(c, err)
	}
	if err := a.opts.Conversation.AppendTurn(c.Request().Context(), turn); err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, turn)
}

func (a *API) handleTrackInitiative(c echo.Context) error {
	var req InitiativeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	init, err := memory.NewInitiative(req.ID, req.Name, req.Status)
	if err != nil {
		return a.httpError(c, err)
	}
	if req.Priority != "" {
		init.Priority = req.Priority
	}
	if req.Progress != nil {
		init.Progress = *req.Progress
	}
	if req.HealthScore != nil {
		init.HealthScore = *req.HealthScore
	}
	init.Frameworks = req.Frameworks
	init.Stakeholders = req.Stakeholders

	if err := a.opts.Strategic.Track(c.Request().Context(), init); err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, init)
}

func (a *API) handleGetInitiative(c echo.Context) error {
	init, err := a.opts.Strategic.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusOK, init)
}

func (a *API) handleUpsertStakeholder(c echo.Context) error {
	var req StakeholderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	profile, err := memory.NewStakeholderProfile(req.Name, req.Role, req.Influence)
	if err != nil {
		return a.httpError(c, err)
	}
	if req.ID != "" {
		profile.ID = req.ID
	}
	profile.Organization = req.Organization
	profile.CommunicationStyle = req.CommunicationStyle

	ctx := c.Request().Context()
	if err := a.opts.Stakeholder.Upsert(ctx, profile); err != nil {
		return a.httpError(c, err)
	}

	// Upsert preserves earned relationship state on existing ids, so
	// answer with what is actually stored.
	stored, err := a.opts.Stakeholder.Get(ctx, profile.ID)
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, stored)
}

func (a *API) handleGetStakeholder(c echo.Context) error {
	profile, err := a.opts.Stakeholder.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (a *API) handleRecordInteraction(c echo.Context) error {
	var req InteractionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	interaction, err := a.opts.Stakeholder.RecordInteraction(
		c.Request().Context(), c.Param("id"), req.Type, req.Context, req.Outcome)
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, interaction)
}

func (a *API) handleRecordUsage(c echo.Context) error {
	var req UsageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	usage, err := memory.NewFrameworkUsage(req.Framework, req.SessionID, req.Query, req.Effectiveness)
	if err != nil {
		return a.httpError(c, err)
	}
	if err := a.opts.Learning.RecordUsage(c.Request().Context(), usage); err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, usage)
}

func (a *API) handleTopFrameworks(c echo.Context) error {
	limit, err := queryLimit(c, 10)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	stats, err := a.opts.Learning.TopFrameworks(c.Request().Context(), c.QueryParam("topic"), limit)
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *API) handleCaptureSnapshot(c echo.Context) error {
	var req SnapshotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	snap, err := memory.NewTeamSnapshot(req.TeamID, req.Name, req.Topology, req.Size)
	if err != nil {
		return a.httpError(c, err)
	}
	snap.CollaborationPatterns = req.CollaborationPatterns
	snap.PerformanceMetrics = req.PerformanceMetrics

	if err := a.opts.Organizational.Capture(c.Request().Context(), snap); err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, snap)
}

func (a *API) handleTeamStructure(c echo.Context) error {
	ctx := c.Request().Context()
	teamID := c.Param("id")

	latest, err := a.opts.Organizational.Latest(ctx, teamID)
	if err != nil {
		return a.httpError(c, err)
	}
	history, err := a.opts.Organizational.Trend(ctx, teamID)
	if err != nil {
		return a.httpError(c, err)
	}
	return c.JSON(http.StatusOK, StructureResponse{Latest: latest, History: history})
}

func (a *API) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, a.opts.Monitor.Snapshot())
}

func (a *API) handleStatsReset(c echo.Context) error {
	a.opts.Monitor.Reset()
	return c.NoContent(http.StatusNoContent)
}

func (a *API) handleArchiveSearch(c echo.Context) error {
	if a.opts.Archive == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "archive is disabled"})
	}

	limit, err := queryLimit(c, 0)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	hits, err := a.opts.Archive.Search(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return a.httpError(c, err)
	}
	if hits == nil {
		hits = []archive.Hit{}
	}
	return c.JSON(http.StatusOK, ArchiveSearchResponse{Hits: hits})
}

// queryLimit parses the optional "limit" query parameter.
func queryLimit(c echo.Context, fallback int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errInvalidLimit
	}
	return limit, nil
}
