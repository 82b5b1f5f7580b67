package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chriscantu/advisord/internal/config"
	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

func TestDays(t *testing.T) {
	if got, want := days(90), 90*24*time.Hour; got != want {
		t.Errorf("days(90) = %v, want %v", got, want)
	}
	if got := days(0); got != 0 {
		t.Errorf("days(0) = %v, want 0", got)
	}
}

func TestInitTelemetryDisabledByDefault(t *testing.T) {
	cfg := config.NewDefaultConfig()

	tel, err := initTelemetry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initTelemetry() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if tel.IsEnabled() {
		t.Error("telemetry enabled with default config, want disabled")
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Logging.Level = "galloping"

	tel, err := initTelemetry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initTelemetry() error = %v", err)
	}
	defer tel.Shutdown(context.Background())

	if _, err := initLogger(cfg, tel); err == nil {
		t.Error("initLogger() accepted an unknown level")
	}
}

func TestInitDependenciesDefaults(t *testing.T) {
	cfg := config.NewDefaultConfig()

	deps, err := initDependencies(cfg, nil)
	if err != nil {
		t.Fatalf("initDependencies() error = %v", err)
	}
	defer deps.Close()

	if deps.conv == nil || deps.strat == nil || deps.stake == nil || deps.learn == nil || deps.org == nil {
		t.Fatal("a context layer was not constructed")
	}
	if deps.monitor == nil {
		t.Fatal("monitor was not constructed")
	}
	if deps.archive != nil {
		t.Error("archive constructed with archiving disabled")
	}
	if deps.natsConn != nil || deps.publisher != nil {
		t.Error("event publisher constructed with events disabled")
	}
}

func TestInitDependenciesWithArchive(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Archive.Enabled = true // empty path keeps the archive in-memory

	deps, err := initDependencies(cfg, nil)
	if err != nil {
		t.Fatalf("initDependencies() error = %v", err)
	}
	defer deps.Close()

	if deps.archive == nil {
		t.Fatal("archive not constructed despite archive.enabled")
	}
}

func TestInitOrchestrator(t *testing.T) {
	cfg := config.NewDefaultConfig()

	deps, err := initDependencies(cfg, nil)
	if err != nil {
		t.Fatalf("initDependencies() error = %v", err)
	}
	defer deps.Close()

	engine, err := initOrchestrator(cfg, deps, nil)
	if err != nil {
		t.Fatalf("initOrchestrator() error = %v", err)
	}
	if engine == nil {
		t.Fatal("initOrchestrator() returned nil engine")
	}
}

func TestRunSweepsPrunesExpiredTurns(t *testing.T) {
	cfg := config.NewDefaultConfig()

	deps, err := initDependencies(cfg, nil)
	if err != nil {
		t.Fatalf("initDependencies() error = %v", err)
	}
	defer deps.Close()

	turn, err := memory.NewConversationTurn("sess-sweep", "old question", "old answer")
	if err != nil {
		t.Fatalf("NewConversationTurn() error = %v", err)
	}
	turn.CreatedAt = time.Now().Add(-days(cfg.Conversation.RetentionDays) - time.Hour)
	if err := deps.conv.AppendTurn(context.Background(), turn); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runSweeps(ctx, logging.NewNop(), deps, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(deps.conv.RecentTurns("sess-sweep", 0)) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := deps.conv.RecentTurns("sess-sweep", 0); len(got) != 0 {
		t.Errorf("expired turn survived the sweep: %d remaining", len(got))
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("runSweeps() error = %v", err)
	}
}

func TestRunServesAndShutsDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Fixed local port to avoid colliding with a developer's daemon.
	t.Setenv("ADVISORD_SERVER_ADDR", "127.0.0.1:9981")
	t.Setenv("ADVISORD_LOGGING_LEVEL", "error")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "")
	}()

	base := "http://127.0.0.1:9981"
	var resp *http.Response
	var err error
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get(base + "/health")
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health never succeeded: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	for _, path := range []string{"/v1/stats", "/metrics"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}
}
