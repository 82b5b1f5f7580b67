package config

import (
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestNewDefaultConfig_Values(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Addr != ":9180" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9180")
	}
	if cfg.Orchestrator.RetrievalDeadline.Duration() != 3000*time.Millisecond {
		t.Errorf("Orchestrator.RetrievalDeadline = %v, want 3s", cfg.Orchestrator.RetrievalDeadline.Duration())
	}
	if cfg.Orchestrator.DefaultMaxBytes != 8192 {
		t.Errorf("Orchestrator.DefaultMaxBytes = %d, want 8192", cfg.Orchestrator.DefaultMaxBytes)
	}
	if cfg.Orchestrator.RelevanceFloor != 0.15 {
		t.Errorf("Orchestrator.RelevanceFloor = %f, want 0.15", cfg.Orchestrator.RelevanceFloor)
	}
	if !cfg.Orchestrator.Cache.Enabled {
		t.Error("Orchestrator.Cache.Enabled = false, want true")
	}
	if cfg.Conversation.RetentionDays != 90 {
		t.Errorf("Conversation.RetentionDays = %d, want 90", cfg.Conversation.RetentionDays)
	}
	if cfg.Conversation.MaxTurns != 50 {
		t.Errorf("Conversation.MaxTurns = %d, want 50", cfg.Conversation.MaxTurns)
	}
	if cfg.Stakeholder.SweepEvery != 50 {
		t.Errorf("Stakeholder.SweepEvery = %d, want 50", cfg.Stakeholder.SweepEvery)
	}
	if cfg.Stakeholder.Steps.PositiveQuality != 0.05 {
		t.Errorf("Stakeholder.Steps.PositiveQuality = %f, want 0.05", cfg.Stakeholder.Steps.PositiveQuality)
	}
	if cfg.Stakeholder.Steps.NegativeQuality != 0.10 {
		t.Errorf("Stakeholder.Steps.NegativeQuality = %f, want 0.10", cfg.Stakeholder.Steps.NegativeQuality)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled = true, want false by default")
	}
	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled = true, want false by default")
	}
	if cfg.Maintenance.SweepInterval.Duration() != time.Hour {
		t.Errorf("Maintenance.SweepInterval = %v, want 1h", cfg.Maintenance.SweepInterval.Duration())
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Server.RateLimit = -1 },
			wantErr: "server.rate_limit",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint",
		},
		{
			name:    "relevance floor above one",
			mutate:  func(c *Config) { c.Orchestrator.RelevanceFloor = 1.5 },
			wantErr: "relevance_floor",
		},
		{
			name:    "zero max turns",
			mutate:  func(c *Config) { c.Conversation.MaxTurns = -1 },
			wantErr: "max_turns",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Learning.RetentionDays = -5 },
			wantErr: "learning.retention_days",
		},
		{
			name:    "non-increasing buckets",
			mutate:  func(c *Config) { c.Monitor.LatencyBucketsMS = []float64{10, 5, 20} },
			wantErr: "strictly increasing",
		},
		{
			name: "events enabled without url",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.URL = ""
			},
			wantErr: "events.url",
		},
		{
			name:    "non-positive sweep interval",
			mutate:  func(c *Config) { c.Maintenance.SweepInterval = Duration(-time.Second) },
			wantErr: "maintenance.sweep_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2500ms")); err != nil {
		t.Fatalf("UnmarshalText(2500ms) error = %v", err)
	}
	if d.Duration() != 2500*time.Millisecond {
		t.Errorf("Duration() = %v, want 2.5s", d.Duration())
	}

	if err := d.UnmarshalText([]byte("-1s")); err == nil {
		t.Error("UnmarshalText(-1s) = nil, want error for negative duration")
	}

	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("UnmarshalText(garbage) = nil, want error")
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `"1.5s"` {
		t.Errorf("MarshalJSON() = %s, want %q", b, `"1.5s"`)
	}
}
