// Package server provides the HTTP lifecycle for the advisord daemon.
//
// It wraps an Echo router with standard middleware, a health check
// endpoint, and context-aware graceful shutdown. Domain routes are
// registered by the caller through Echo().
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
)

// Config controls the HTTP listener.
type Config struct {
	// Addr is the listen address, host optional (":9180").
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful shutdown once the run context is
	// cancelled.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":9180"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg    Config
	logger *logging.Logger
	echo   *echo.Echo
}

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// New creates an HTTP server with standard middleware and GET /health
// registered. A nil logger falls back to a nop logger.
func New(cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		cfg:    cfg,
		logger: logger,
		echo:   e,
	}
	e.GET("/health", s.handleHealth)

	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "advisord",
	})
}

// Start listens on the configured address and blocks until ctx is
// cancelled. On cancellation it shuts down gracefully within the
// configured timeout and returns http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	s.logger.Info(ctx, "http server listening", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for registering additional
// routes before Start.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
