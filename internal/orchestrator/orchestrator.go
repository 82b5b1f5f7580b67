// Package orchestrator is the engine's front door. Retrieve fans a query
// out to the five context layers concurrently, floors and packs the
// returned fragments into a byte-bounded bundle, and degrades to a
// synthetic fallback rather than erroring when every layer misses.
// RecordOutcome fans an advisory exchange back out to the layers that
// learn from it, best-effort, with an aggregate error only when every
// write fails.
//
// The orchestrator owns no layer state. Layers are injected at
// construction and remain the sole owners of their stores; test doubles
// slot in through the same interfaces.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"

	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

var tracer = otel.Tracer("advisord.orchestrator")

const (
	// DefaultRetrievalDeadline bounds one whole retrieval fan-out.
	DefaultRetrievalDeadline = 3 * time.Second

	// MinLayerTimeout is the floor for the derived per-layer deadline.
	MinLayerTimeout = 200 * time.Millisecond

	// DefaultMaxBytes is the bundle budget when a caller requests none.
	DefaultMaxBytes = 8192

	// DefaultRelevanceFloor drops fragments scoring below it.
	DefaultRelevanceFloor = 0.15

	// DefaultDegradedCoverage is the layer-coverage threshold under which
	// a retrieval is reported as degraded.
	DefaultDegradedCoverage = 0.4

	// DefaultCacheSize and DefaultCacheTTL shape the bundle cache.
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Second
)

// Config tunes retrieval behavior. The zero value yields the defaults
// above; set a negative RelevanceFloor or DegradedCoverage to disable
// flooring or degradation events outright.
type Config struct {
	// RetrievalDeadline is the global budget for one Retrieve call.
	RetrievalDeadline time.Duration `koanf:"retrieval_deadline"`

	// LayerTimeout overrides the derived per-layer deadline when positive.
	// Zero derives RetrievalDeadline divided by the layer count, floored
	// at MinLayerTimeout.
	LayerTimeout time.Duration `koanf:"layer_timeout"`

	// DefaultMaxBytes is the budget applied by callers that pass none.
	DefaultMaxBytes int `koanf:"default_max_bytes"`

	// RelevanceFloor drops weaker fragments before packing.
	RelevanceFloor float64 `koanf:"relevance_floor"`

	// LayerLimit caps fragments requested per layer; zero lets each layer
	// apply its own default.
	LayerLimit int `koanf:"layer_limit"`

	// DegradedCoverage is the coverage threshold for degradation events.
	DegradedCoverage float64 `koanf:"degraded_coverage"`

	// Cache configures the bundle cache.
	Cache CacheConfig `koanf:"cache"`
}

// CacheConfig shapes the retrieval bundle cache.
type CacheConfig struct {
	Disabled bool          `koanf:"disabled"`
	Size     int           `koanf:"size"`
	TTL      time.Duration `koanf:"ttl"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		RetrievalDeadline: DefaultRetrievalDeadline,
		DefaultMaxBytes:   DefaultMaxBytes,
		RelevanceFloor:    DefaultRelevanceFloor,
		DegradedCoverage:  DefaultDegradedCoverage,
		Cache: CacheConfig{
			Size: DefaultCacheSize,
			TTL:  DefaultCacheTTL,
		},
	}
}

// layerTimeout resolves the per-layer deadline for n layers.
func (c Config) layerTimeout(n int) time.Duration {
	if c.LayerTimeout > 0 {
		return c.LayerTimeout
	}
	if n <= 0 {
		return MinLayerTimeout
	}
	share := c.RetrievalDeadline / time.Duration(n)
	if share < MinLayerTimeout {
		return MinLayerTimeout
	}
	return share
}

// TurnWriter appends one conversation turn to the session history.
type TurnWriter interface {
	AppendTurn(ctx context.Context, turn *memory.ConversationTurn) error
}

// InitiativeWriter applies one strategic update, creating the initiative
// when it does not exist yet.
type InitiativeWriter interface {
	Apply(ctx context.Context, update memory.InitiativeUpdate) (*memory.Initiative, error)
}

// UsageWriter appends one framework usage record.
type UsageWriter interface {
	RecordUsage(ctx context.Context, usage *memory.FrameworkUsage) error
}

// InteractionWriter records one stakeholder interaction.
type InteractionWriter interface {
	RecordInteraction(ctx context.Context, stakeholderID, kind, detail string, outcome memory.InteractionOutcome) (*memory.Interaction, error)
}

// Recorder observes completed operations for aggregate monitoring.
type Recorder interface {
	Record(metrics memory.RetrievalMetrics, bundle memory.ContextBundle)
	RecordWrite(attempted, failed int)
}

// Notifier publishes engine lifecycle events. Implementations must not
// block the calling goroutine; delivery is best-effort.
type Notifier interface {
	OutcomeRecorded(ctx context.Context, rec memory.OutcomeRecord)
	RetrievalDegraded(ctx context.Context, sessionID string, coverage float64, misses map[memory.LayerKind]string)
}

// Options collects the collaborators an orchestrator fans out to. Layers
// is required; every other member is optional and skipped when nil.
type Options struct {
	// Layers are the queryable context layers.
	Layers []memory.Layer

	// Turns, Initiatives, Usage, and Interactions are the write surfaces
	// RecordOutcome distributes to.
	Turns        TurnWriter
	Initiatives  InitiativeWriter
	Usage        UsageWriter
	Interactions InteractionWriter

	// Recorder receives per-call metrics.
	Recorder Recorder

	// Notifier receives outcome and degradation events.
	Notifier Notifier

	// Logger defaults to a nop logger.
	Logger *logging.Logger
}

// Orchestrator coordinates retrieval and outcome fan-out across the
// context layers. Safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	logger *logging.Logger
	layers []memory.Layer

	turns        TurnWriter
	initiatives  InitiativeWriter
	usage        UsageWriter
	interactions InteractionWriter

	recorder Recorder
	notifier Notifier

	cache *expirable.LRU[string, memory.ContextBundle]

	genMu sync.Mutex
	gen   map[string]uint64
}

// New builds an orchestrator over the given layers.
func New(cfg Config, opts Options) (*Orchestrator, error) {
	if len(opts.Layers) == 0 {
		return nil, fmt.Errorf("%w: at least one layer is required", memory.ErrInvalidArgument)
	}
	seen := make(map[memory.LayerKind]bool, len(opts.Layers))
	for _, layer := range opts.Layers {
		if layer == nil {
			return nil, fmt.Errorf("%w: nil layer", memory.ErrInvalidArgument)
		}
		if seen[layer.Kind()] {
			return nil, fmt.Errorf("%w: duplicate layer %q", memory.ErrInvalidArgument, layer.Kind())
		}
		seen[layer.Kind()] = true
	}

	if cfg.RetrievalDeadline <= 0 {
		cfg.RetrievalDeadline = DefaultRetrievalDeadline
	}
	if cfg.DefaultMaxBytes <= 0 {
		cfg.DefaultMaxBytes = DefaultMaxBytes
	}
	if cfg.RelevanceFloor == 0 {
		cfg.RelevanceFloor = DefaultRelevanceFloor
	}
	if cfg.DegradedCoverage == 0 {
		cfg.DegradedCoverage = DefaultDegradedCoverage
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	o := &Orchestrator{
		cfg:          cfg,
		logger:       logger,
		layers:       append([]memory.Layer(nil), opts.Layers...),
		turns:        opts.Turns,
		initiatives:  opts.Initiatives,
		usage:        opts.Usage,
		interactions: opts.Interactions,
		recorder:     opts.Recorder,
		notifier:     opts.Notifier,
		gen:          make(map[string]uint64),
	}
	if !cfg.Cache.Disabled {
		size := cfg.Cache.Size
		if size <= 0 {
			size = DefaultCacheSize
		}
		ttl := cfg.Cache.TTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		o.cache = expirable.NewLRU[string, memory.ContextBundle](size, nil, ttl)
	}
	return o, nil
}

// DefaultBudget returns the byte budget used when a caller supplies none.
func (o *Orchestrator) DefaultBudget() int { return o.cfg.DefaultMaxBytes }
