// Package api exposes the advisory engine over HTTP.
//
// Routes are mounted under /v1 on an existing Echo instance. Handlers
// translate the memory error taxonomy onto status codes: invalid
// arguments 400, unknown ids 404, anything else 500.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/chriscantu/advisord/internal/archive"
	"github.com/chriscantu/advisord/internal/conversation"
	"github.com/chriscantu/advisord/internal/learning"
	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
	"github.com/chriscantu/advisord/internal/monitor"
	"github.com/chriscantu/advisord/internal/orchestrator"
	"github.com/chriscantu/advisord/internal/organizational"
	"github.com/chriscantu/advisord/internal/stakeholder"
	"github.com/chriscantu/advisord/internal/strategic"
)

// Options carries the wired engine components. Engine, the five layers,
// and Monitor are required. Archive is optional; its route answers 503
// when absent.
type Options struct {
	Engine         *orchestrator.Orchestrator
	Conversation   *conversation.Layer
	Strategic      *strategic.Layer
	Stakeholder    *stakeholder.Layer
	Learning       *learning.Layer
	Organizational *organizational.Layer
	Monitor        *monitor.PerformanceMonitor
	Archive        *archive.Store
	Logger         *logging.Logger
}

// API registers the engine's HTTP surface.
type API struct {
	opts   Options
	logger *logging.Logger
}

// New validates opts and builds the API.
func New(opts Options) (*API, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: nil orchestrator", memory.ErrInvalidArgument)
	}
	if opts.Conversation == nil || opts.Strategic == nil || opts.Stakeholder == nil ||
		opts.Learning == nil || opts.Organizational == nil {
		return nil, fmt.Errorf("%w: all five layers are required", memory.ErrInvalidArgument)
	}
	if opts.Monitor == nil {
		return nil, fmt.Errorf("%w: nil monitor", memory.ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &API{opts: opts, logger: logger}, nil
}

// Register mounts all routes under /v1 on e. A positive limit adds a
// per-client rate limiter to the group; a zero burst falls back to the
// store's default of one full second of budget.
func (a *API) Register(e *echo.Echo, limit rate.Limit, burst int) {
	g := e.Group("/v1")
	if limit > 0 {
		g.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: limit, Burst: burst},
		)))
	}

	g.POST("/retrieve", a.handleRetrieve)
	g.POST("/outcome", a.handleOutcome)
	g.POST("/turns", a.handleAppendTurn)
	g.POST("/initiatives", a.handleTrackInitiative)
	g.GET("/initiatives/:id", a.handleGetInitiative)
	g.POST("/stakeholders", a.handleUpsertStakeholder)
	g.GET("/stakeholders/:id", a.handleGetStakeholder)
	g.POST("/stakeholders/:id/interactions", a.handleRecordInteraction)
	g.POST("/frameworks/usage", a.handleRecordUsage)
	g.GET("/frameworks/top", a.handleTopFrameworks)
	g.POST("/teams/snapshots", a.handleCaptureSnapshot)
	g.GET("/teams/:id/structure", a.handleTeamStructure)
	g.GET("/stats", a.handleStats)
	g.POST("/stats/reset", a.handleStatsReset)
	g.GET("/archive/search", a.handleArchiveSearch)
}

// ErrorResponse is the JSON error body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *API) httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, memory.ErrAggregateWriteFailure):
		// stays 500: the aggregate may wrap NotFound from a sub-write
	case errors.Is(err, memory.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, memory.ErrNotFound):
		status = http.StatusNotFound
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}
