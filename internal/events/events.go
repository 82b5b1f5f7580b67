// Package events publishes engine lifecycle events to NATS so external
// consumers (digests, alerting) can follow the advisory loop without
// polling the API. Publishing is fire-and-forget: failures are logged and
// never surface to the orchestrator.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

const (
	subjectOutcomeRecorded   = "outcome.recorded"
	subjectRetrievalDegraded = "retrieval.degraded"
)

// Config controls the event publisher.
type Config struct {
	// Enabled turns event publishing on. Off by default so the daemon
	// runs without a broker.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server address.
	URL string `koanf:"url"`

	// SubjectPrefix prefixes every published subject.
	SubjectPrefix string `koanf:"subject_prefix"`
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "advisord"
	}
}

// OutcomeEvent is the payload published to <prefix>.outcome.recorded.
// It carries the question and write counts but never the response, so
// the advice text stays off the bus.
type OutcomeEvent struct {
	SessionID    string    `json:"session_id"`
	Query        string    `json:"query"`
	Frameworks   []string  `json:"frameworks,omitempty"`
	Initiatives  int       `json:"initiatives"`
	Interactions int       `json:"interactions"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// DegradedEvent is the payload published to <prefix>.retrieval.degraded.
type DegradedEvent struct {
	SessionID  string                      `json:"session_id"`
	Coverage   float64                     `json:"coverage"`
	Misses     map[memory.LayerKind]string `json:"misses,omitempty"`
	OccurredAt time.Time                   `json:"occurred_at"`
}

// Connect dials cfg.URL with options suited to a daemon that should come
// up even when the broker is down.
func Connect(cfg Config) (*nats.Conn, error) {
	cfg.ApplyDefaults()
	nc, err := nats.Connect(cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Publisher emits engine events over an established NATS connection. The
// caller owns the connection's lifecycle.
type Publisher struct {
	cfg    Config
	logger *logging.Logger
	nc     *nats.Conn
}

// NewPublisher wraps nc. A nil logger falls back to a nop logger.
func NewPublisher(nc *nats.Conn, cfg Config, logger *logging.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("%w: nil NATS connection", memory.ErrInvalidArgument)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.ApplyDefaults()

	return &Publisher{cfg: cfg, logger: logger, nc: nc}, nil
}

// OutcomeRecorded publishes a summary of a persisted outcome record.
func (p *Publisher) OutcomeRecorded(ctx context.Context, rec memory.OutcomeRecord) {
	p.publish(ctx, subjectOutcomeRecorded, OutcomeEvent{
		SessionID:    rec.SessionID,
		Query:        rec.Query,
		Frameworks:   rec.Frameworks,
		Initiatives:  len(rec.Initiatives),
		Interactions: len(rec.Interactions),
		RecordedAt:   time.Now().UTC(),
	})
}

// RetrievalDegraded publishes a coverage warning for one retrieval.
func (p *Publisher) RetrievalDegraded(ctx context.Context, sessionID string, coverage float64, misses map[memory.LayerKind]string) {
	p.publish(ctx, subjectRetrievalDegraded, DegradedEvent{
		SessionID:  sessionID,
		Coverage:   coverage,
		Misses:     misses,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, suffix string, payload any) {
	subject := p.cfg.SubjectPrefix + "." + suffix
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn(ctx, "marshal event failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}
