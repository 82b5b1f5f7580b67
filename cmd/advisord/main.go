// Advisord is the context orchestration daemon for engineering advisory
// sessions.
//
// The binary wires the five context layers, the retrieval orchestrator,
// and the HTTP API, then serves until interrupted. Optional subsystems
// (NATS event publishing, the chromem turn archive, OTLP telemetry) are
// enabled through configuration.
//
// Configuration is loaded from an optional YAML file plus ADVISORD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults
//	advisord
//
//	# Start with a config file
//	advisord --config ~/.config/advisord/config.yaml
//
//	# Configure via environment
//	ADVISORD_SERVER_ADDR=:9280 advisord
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chriscantu/advisord/internal/api"
	"github.com/chriscantu/advisord/internal/archive"
	"github.com/chriscantu/advisord/internal/config"
	"github.com/chriscantu/advisord/internal/conversation"
	"github.com/chriscantu/advisord/internal/events"
	"github.com/chriscantu/advisord/internal/learning"
	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
	"github.com/chriscantu/advisord/internal/monitor"
	"github.com/chriscantu/advisord/internal/orchestrator"
	"github.com/chriscantu/advisord/internal/organizational"
	"github.com/chriscantu/advisord/internal/stakeholder"
	"github.com/chriscantu/advisord/internal/strategic"
	"github.com/chriscantu/advisord/internal/telemetry"
	"github.com/chriscantu/advisord/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  advisord            Start the advisord daemon\n")
			fmt.Fprintf(os.Stderr, "  advisord version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}

	log.Println("Shutdown complete")
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("advisord context orchestration daemon\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Wiring order:
//  1. Load and validate configuration
//  2. Initialize telemetry, then the logger (which may bridge into it)
//  3. Build the archive, context layers, monitor, and event publisher
//  4. Assemble the orchestrator over the layers
//  5. Register the HTTP API and metrics endpoint, then serve
//
// Shutdown releases resources in reverse order. Returns nil on graceful
// shutdown.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort flush on shutdown
	}()

	logger.Info(ctx, "starting advisord",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info(ctx, "dependencies initialized",
		zap.Bool("archive_enabled", deps.archive != nil),
		zap.Bool("events_enabled", deps.publisher != nil))

	engine, err := initOrchestrator(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("initialize orchestrator: %w", err)
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, logger)

	apiSvc, err := api.New(api.Options{
		Engine:         engine,
		Conversation:   deps.conv,
		Strategic:      deps.strat,
		Stakeholder:    deps.stake,
		Learning:       deps.learn,
		Organizational: deps.org,
		Monitor:        deps.monitor,
		Archive:        deps.archive,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("initialize api: %w", err)
	}
	apiSvc.Register(srv.Echo(), rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)

	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if tel.IsEnabled() {
		if err := registerMonitorMirror(tel, deps.monitor); err != nil {
			logger.Warn(ctx, "otel metric mirror unavailable", zap.Error(err))
		}
	}

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", "/health"),
		zap.String("api_prefix", "/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return runSweeps(gctx, logger, deps, cfg.Maintenance.SweepInterval.Duration())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// dependencies holds the stateful subsystems behind the orchestrator.
type dependencies struct {
	archive *archive.Store
	conv    *conversation.Layer
	strat   *strategic.Layer
	stake   *stakeholder.Layer
	learn   *learning.Layer
	org     *organizational.Layer
	monitor *monitor.PerformanceMonitor

	natsConn  *nats.Conn
	publisher *events.Publisher
}

// Close releases held connections. Layers and the archive hold no
// external resources.
func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
}

// initTelemetry maps the file config onto the telemetry defaults.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Enabled = cfg.Telemetry.Enabled
	telCfg.Endpoint = cfg.Telemetry.Endpoint
	telCfg.Protocol = cfg.Telemetry.Protocol
	telCfg.Insecure = cfg.Telemetry.Insecure
	telCfg.SampleRate = cfg.Telemetry.SampleRate
	telCfg.ServiceVersion = version
	return telemetry.New(ctx, telCfg)
}

// initLogger maps the file config onto the logging defaults. The OTEL
// output core is only attached when telemetry actually carries a log
// provider.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("parse logging.level: %w", err)
		}
		logCfg.Level = level
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	logCfg.Output.OTEL = cfg.Logging.OTEL

	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// initDependencies builds the archive, the five context layers, the
// performance monitor, and the optional NATS publisher.
func initDependencies(cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	if cfg.Archive.Enabled {
		store, err := archive.New(archive.Config{
			Path:       cfg.Archive.Path,
			Compress:   cfg.Archive.Compress,
			Collection: cfg.Archive.Collection,
			Dimensions: cfg.Archive.Dimensions,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create archive: %w", err)
		}
		deps.archive = store
	}

	// A nil *Store inside a non-nil Archiver interface would dodge the
	// layer's nil check, so only assign when the archive exists.
	var archiver conversation.Archiver
	if deps.archive != nil {
		archiver = deps.archive
	}

	deps.conv = conversation.NewLayer(conversation.Config{
		Retention:     days(cfg.Conversation.RetentionDays),
		MaxTurns:      cfg.Conversation.MaxTurns,
		FragmentLimit: cfg.Conversation.FragmentLimit,
	}, logger, archiver)
	deps.strat = strategic.NewLayer(strategic.Config{
		Retention:     days(cfg.Strategic.RetentionDays),
		FragmentLimit: cfg.Strategic.FragmentLimit,
	}, logger)
	deps.stake = stakeholder.NewLayer(stakeholder.Config{
		Retention:     days(cfg.Stakeholder.RetentionDays),
		FragmentLimit: cfg.Stakeholder.FragmentLimit,
		SweepEvery:    cfg.Stakeholder.SweepEvery,
		Steps: stakeholder.Steps{
			Frequency:       cfg.Stakeholder.Steps.Frequency,
			PositiveQuality: cfg.Stakeholder.Steps.PositiveQuality,
			PositiveTrust:   cfg.Stakeholder.Steps.PositiveTrust,
			NegativeQuality: cfg.Stakeholder.Steps.NegativeQuality,
			NegativeTrust:   cfg.Stakeholder.Steps.NegativeTrust,
		},
	}, logger)
	deps.learn = learning.NewLayer(learning.Config{
		Retention:     days(cfg.Learning.RetentionDays),
		FragmentLimit: cfg.Learning.FragmentLimit,
	}, logger)
	deps.org = organizational.NewLayer(organizational.Config{
		HistoryCap:    cfg.Organizational.HistoryCap,
		FragmentLimit: cfg.Organizational.FragmentLimit,
	}, logger)

	mon, err := monitor.New(monitor.Config{BucketsMS: cfg.Monitor.LatencyBucketsMS})
	if err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}
	deps.monitor = mon

	if cfg.Events.Enabled {
		evCfg := events.Config{
			Enabled:       true,
			URL:           cfg.Events.URL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
		}
		nc, err := events.Connect(evCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.Events.URL, err)
		}
		pub, err := events.NewPublisher(nc, evCfg, logger)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		deps.natsConn = nc
		deps.publisher = pub
	}

	return deps, nil
}

// initOrchestrator assembles the retrieval engine over the layers.
func initOrchestrator(cfg *config.Config, deps *dependencies, logger *logging.Logger) (*orchestrator.Orchestrator, error) {
	opts := orchestrator.Options{
		Layers: []memory.Layer{
			deps.conv,
			deps.strat,
			deps.stake,
			deps.learn,
			deps.org,
		},
		Turns:        deps.conv,
		Initiatives:  deps.strat,
		Usage:        deps.learn,
		Interactions: deps.stake,
		Recorder:     deps.monitor,
		Logger:       logger,
	}
	if deps.publisher != nil {
		opts.Notifier = deps.publisher
	}

	return orchestrator.New(orchestrator.Config{
		RetrievalDeadline: cfg.Orchestrator.RetrievalDeadline.Duration(),
		DefaultMaxBytes:   cfg.Orchestrator.DefaultMaxBytes,
		RelevanceFloor:    cfg.Orchestrator.RelevanceFloor,
		DegradedCoverage:  cfg.Events.DegradedThreshold,
		Cache: orchestrator.CacheConfig{
			Disabled: !cfg.Orchestrator.Cache.Enabled,
			Size:     cfg.Orchestrator.Cache.MaxEntries,
			TTL:      cfg.Orchestrator.Cache.TTL.Duration(),
		},
	}, opts)
}

// days converts a whole-day retention setting to a duration.
func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
