// Package config provides configuration loading for advisord.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. Every option has a default, so the engine runs with zero
// required configuration.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete advisord configuration.
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Logging        LoggingConfig        `koanf:"logging"`
	Telemetry      TelemetryConfig      `koanf:"telemetry"`
	Orchestrator   OrchestratorConfig   `koanf:"orchestrator"`
	Conversation   ConversationConfig   `koanf:"conversation"`
	Strategic      StrategicConfig      `koanf:"strategic"`
	Stakeholder    StakeholderConfig    `koanf:"stakeholder"`
	Learning       LearningConfig       `koanf:"learning"`
	Organizational OrganizationalConfig `koanf:"organizational"`
	Monitor        MonitorConfig        `koanf:"monitor"`
	Events         EventsConfig         `koanf:"events"`
	Archive        ArchiveConfig        `koanf:"archive"`
	Maintenance    MaintenanceConfig    `koanf:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"` // requests/sec per client on /v1
	RateBurst       int      `koanf:"rate_burst"`
}

// LoggingConfig holds the subset of logging options exposed through the
// main config file. The logging package owns the full config shape.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// OrchestratorConfig holds retrieval pipeline configuration.
type OrchestratorConfig struct {
	RetrievalDeadline Duration    `koanf:"retrieval_deadline"`
	DefaultMaxBytes   int         `koanf:"default_max_bytes"`
	RelevanceFloor    float64     `koanf:"relevance_floor"`
	Cache             CacheConfig `koanf:"cache"`
}

// CacheConfig holds bundle cache configuration.
type CacheConfig struct {
	Enabled    bool     `koanf:"enabled"`
	TTL        Duration `koanf:"ttl"`
	MaxEntries int      `koanf:"max_entries"`
}

// ConversationConfig holds conversation layer configuration.
type ConversationConfig struct {
	RetentionDays int `koanf:"retention_days"`
	MaxTurns      int `koanf:"max_turns"` // per-session ring buffer cap
	FragmentLimit int `koanf:"fragment_limit"`
}

// StrategicConfig holds strategic layer configuration.
type StrategicConfig struct {
	RetentionDays int `koanf:"retention_days"`
	FragmentLimit int `koanf:"fragment_limit"`
}

// StakeholderConfig holds stakeholder layer configuration.
type StakeholderConfig struct {
	RetentionDays int         `koanf:"retention_days"`
	FragmentLimit int         `koanf:"fragment_limit"`
	SweepEvery    int         `koanf:"sweep_every"` // retention sweep cadence, in interactions
	Steps         StepsConfig `koanf:"steps"`
}

// StepsConfig holds the interaction-driven mutation step sizes.
type StepsConfig struct {
	Frequency       float64 `koanf:"frequency"`
	PositiveQuality float64 `koanf:"positive_quality"`
	PositiveTrust   float64 `koanf:"positive_trust"`
	NegativeQuality float64 `koanf:"negative_quality"`
	NegativeTrust   float64 `koanf:"negative_trust"`
}

// LearningConfig holds learning layer configuration.
type LearningConfig struct {
	RetentionDays int `koanf:"retention_days"`
	FragmentLimit int `koanf:"fragment_limit"`
}

// OrganizationalConfig holds organizational layer configuration.
type OrganizationalConfig struct {
	HistoryCap    int `koanf:"history_cap"` // retained snapshots per team
	FragmentLimit int `koanf:"fragment_limit"`
}

// MonitorConfig holds performance monitor configuration.
type MonitorConfig struct {
	LatencyBucketsMS []float64 `koanf:"latency_buckets_ms"`
}

// EventsConfig holds NATS event publishing configuration.
type EventsConfig struct {
	Enabled           bool    `koanf:"enabled"`
	URL               string  `koanf:"url"`
	SubjectPrefix     string  `koanf:"subject_prefix"`
	DegradedThreshold float64 `koanf:"degraded_threshold"` // coverage below this emits a degraded event
}

// ArchiveConfig holds the evicted-turn archive configuration.
type ArchiveConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"` // empty = in-memory
	Compress   bool   `koanf:"compress"`
	Collection string `koanf:"collection"`
	Dimensions int    `koanf:"dimensions"`
}

// MaintenanceConfig holds the background retention sweep configuration.
type MaintenanceConfig struct {
	SweepInterval Duration `koanf:"sweep_interval"`
}

// DefaultLatencyBucketsMS are the fixed histogram bounds used for latency
// percentile approximation, in milliseconds.
var DefaultLatencyBucketsMS = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// NewDefaultConfig returns a Config with every field set to its default.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":9180"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 50
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 100
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if !cfg.Telemetry.Enabled {
		cfg.Telemetry.Insecure = true
	}

	if cfg.Orchestrator.RetrievalDeadline == 0 {
		cfg.Orchestrator.RetrievalDeadline = Duration(3000 * time.Millisecond)
	}
	if cfg.Orchestrator.DefaultMaxBytes == 0 {
		cfg.Orchestrator.DefaultMaxBytes = 8192
	}
	if cfg.Orchestrator.RelevanceFloor == 0 {
		cfg.Orchestrator.RelevanceFloor = 0.15
	}
	if cfg.Orchestrator.Cache.TTL == 0 {
		cfg.Orchestrator.Cache.TTL = Duration(30 * time.Second)
		cfg.Orchestrator.Cache.Enabled = true
	}
	if cfg.Orchestrator.Cache.MaxEntries == 0 {
		cfg.Orchestrator.Cache.MaxEntries = 256
	}

	if cfg.Conversation.RetentionDays == 0 {
		cfg.Conversation.RetentionDays = 90
	}
	if cfg.Conversation.MaxTurns == 0 {
		cfg.Conversation.MaxTurns = 50
	}
	if cfg.Conversation.FragmentLimit == 0 {
		cfg.Conversation.FragmentLimit = 10
	}

	if cfg.Strategic.RetentionDays == 0 {
		cfg.Strategic.RetentionDays = 365
	}
	if cfg.Strategic.FragmentLimit == 0 {
		cfg.Strategic.FragmentLimit = 5
	}

	if cfg.Stakeholder.RetentionDays == 0 {
		cfg.Stakeholder.RetentionDays = 365
	}
	if cfg.Stakeholder.FragmentLimit == 0 {
		cfg.Stakeholder.FragmentLimit = 5
	}
	if cfg.Stakeholder.SweepEvery == 0 {
		cfg.Stakeholder.SweepEvery = 50
	}
	if cfg.Stakeholder.Steps.Frequency == 0 {
		cfg.Stakeholder.Steps.Frequency = 0.1
	}
	if cfg.Stakeholder.Steps.PositiveQuality == 0 {
		cfg.Stakeholder.Steps.PositiveQuality = 0.05
	}
	if cfg.Stakeholder.Steps.PositiveTrust == 0 {
		cfg.Stakeholder.Steps.PositiveTrust = 0.03
	}
	if cfg.Stakeholder.Steps.NegativeQuality == 0 {
		cfg.Stakeholder.Steps.NegativeQuality = 0.10
	}
	if cfg.Stakeholder.Steps.NegativeTrust == 0 {
		cfg.Stakeholder.Steps.NegativeTrust = 0.05
	}

	if cfg.Learning.RetentionDays == 0 {
		cfg.Learning.RetentionDays = 365
	}
	if cfg.Learning.FragmentLimit == 0 {
		cfg.Learning.FragmentLimit = 5
	}

	if cfg.Organizational.HistoryCap == 0 {
		cfg.Organizational.HistoryCap = 20
	}
	if cfg.Organizational.FragmentLimit == 0 {
		cfg.Organizational.FragmentLimit = 5
	}

	if len(cfg.Monitor.LatencyBucketsMS) == 0 {
		cfg.Monitor.LatencyBucketsMS = append([]float64(nil), DefaultLatencyBucketsMS...)
	}

	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "advisord"
	}
	if cfg.Events.DegradedThreshold == 0 {
		cfg.Events.DegradedThreshold = 0.4
	}

	if cfg.Archive.Collection == "" {
		cfg.Archive.Collection = "conversation_archive"
	}
	if cfg.Archive.Dimensions == 0 {
		cfg.Archive.Dimensions = 128
	}

	if cfg.Maintenance.SweepInterval == 0 {
		cfg.Maintenance.SweepInterval = Duration(time.Hour)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got %f", c.Server.RateLimit)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint required when telemetry is enabled")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
	}

	if c.Orchestrator.RetrievalDeadline.Duration() <= 0 {
		return errors.New("orchestrator.retrieval_deadline must be positive")
	}
	if c.Orchestrator.DefaultMaxBytes <= 0 {
		return fmt.Errorf("orchestrator.default_max_bytes must be positive, got %d", c.Orchestrator.DefaultMaxBytes)
	}
	if c.Orchestrator.RelevanceFloor < 0 || c.Orchestrator.RelevanceFloor > 1 {
		return fmt.Errorf("orchestrator.relevance_floor must be between 0 and 1, got %f", c.Orchestrator.RelevanceFloor)
	}
	if c.Orchestrator.Cache.Enabled && c.Orchestrator.Cache.MaxEntries <= 0 {
		return errors.New("orchestrator.cache.max_entries must be positive when cache enabled")
	}

	for _, sect := range []struct {
		name string
		days int
	}{
		{"conversation", c.Conversation.RetentionDays},
		{"strategic", c.Strategic.RetentionDays},
		{"stakeholder", c.Stakeholder.RetentionDays},
		{"learning", c.Learning.RetentionDays},
	} {
		if sect.days <= 0 {
			return fmt.Errorf("%s.retention_days must be positive, got %d", sect.name, sect.days)
		}
	}

	if c.Conversation.MaxTurns <= 0 {
		return fmt.Errorf("conversation.max_turns must be positive, got %d", c.Conversation.MaxTurns)
	}
	if c.Stakeholder.SweepEvery <= 0 {
		return fmt.Errorf("stakeholder.sweep_every must be positive, got %d", c.Stakeholder.SweepEvery)
	}
	if c.Organizational.HistoryCap <= 0 {
		return fmt.Errorf("organizational.history_cap must be positive, got %d", c.Organizational.HistoryCap)
	}

	for _, lim := range []struct {
		name  string
		limit int
	}{
		{"conversation", c.Conversation.FragmentLimit},
		{"strategic", c.Strategic.FragmentLimit},
		{"stakeholder", c.Stakeholder.FragmentLimit},
		{"learning", c.Learning.FragmentLimit},
		{"organizational", c.Organizational.FragmentLimit},
	} {
		if lim.limit <= 0 {
			return fmt.Errorf("%s.fragment_limit must be positive, got %d", lim.name, lim.limit)
		}
	}

	if len(c.Monitor.LatencyBucketsMS) == 0 {
		return errors.New("monitor.latency_buckets_ms must not be empty")
	}
	for i := 1; i < len(c.Monitor.LatencyBucketsMS); i++ {
		if c.Monitor.LatencyBucketsMS[i] <= c.Monitor.LatencyBucketsMS[i-1] {
			return errors.New("monitor.latency_buckets_ms must be strictly increasing")
		}
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events.url required when events are enabled")
	}
	if c.Archive.Enabled && c.Archive.Dimensions <= 0 {
		return fmt.Errorf("archive.dimensions must be positive, got %d", c.Archive.Dimensions)
	}
	if c.Maintenance.SweepInterval.Duration() <= 0 {
		return errors.New("maintenance.sweep_interval must be positive")
	}

	return nil
}
