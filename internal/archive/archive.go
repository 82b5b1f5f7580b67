// Package archive gives evicted conversation turns a long-horizon home:
// an embedded chromem-go vector collection searchable well after the
// session buffer has moved on. Embeddings come from a deterministic
// keyword-hash function, so the archive needs no model runtime and
// returns identical rankings across runs.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/chriscantu/advisord/internal/logging"
	"github.com/chriscantu/advisord/internal/memory"
)

var tracer = otel.Tracer("advisord.archive")

// Config holds archive settings.
type Config struct {
	// Path is the persistence directory; empty keeps the archive
	// in-memory.
	Path string

	// Compress enables gzip for persisted documents.
	Compress bool

	// Collection names the chromem collection.
	Collection string

	// Dimensions is the embedding width.
	Dimensions int
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "conversation_archive"
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 128
	}
}

// Hit is one archive search result.
type Hit struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Store is the conversation archive. Safe for concurrent use; chromem
// serializes collection mutations internally.
type Store struct {
	cfg        Config
	logger     *logging.Logger
	db         *chromem.DB
	collection *chromem.Collection
}

// New opens the archive, creating the persistence directory and the
// collection as needed.
func New(cfg Config, logger *logging.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err = os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("creating archive directory %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening archive db: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, hashEmbedding(cfg.Dimensions))
	if err != nil {
		return nil, fmt.Errorf("opening archive collection %s: %w", cfg.Collection, err)
	}

	logger.Info(context.Background(), "conversation archive opened",
		zap.String("collection", cfg.Collection),
		zap.Bool("persistent", cfg.Path != ""),
		zap.Int("dimensions", cfg.Dimensions),
	)
	return &Store{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		collection: collection,
	}, nil
}

// Archive stores one turn. Re-archiving the same turn id overwrites the
// previous document, so duplicate hand-offs are harmless.
func (s *Store) Archive(ctx context.Context, turn *memory.ConversationTurn) error {
	if turn == nil || turn.ID == "" {
		return fmt.Errorf("%w: archivable turn needs an id", memory.ErrInvalidArgument)
	}
	ctx, span := tracer.Start(ctx, "Store.Archive")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", turn.ID))

	doc := chromem.Document{
		ID:      turn.ID,
		Content: turn.Content(),
		Metadata: map[string]string{
			"session_id": turn.SessionID,
			"created_at": turn.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		span.RecordError(err)
		return fmt.Errorf("archiving turn %s: %w", turn.ID, err)
	}
	return nil
}

// Search returns up to limit archived turns ranked by similarity to the
// query. An empty archive yields no hits and no error.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: archive query is empty", memory.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 10
	}
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()

	// chromem rejects nResults above the document count.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("searching archive: %w", err)
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hit := Hit{
			ID:        r.ID,
			Content:   r.Content,
			Score:     float64(r.Similarity),
			SessionID: r.Metadata["session_id"],
		}
		if raw, ok := r.Metadata["created_at"]; ok {
			if ts, perr := time.Parse(time.RFC3339, raw); perr == nil {
				hit.CreatedAt = ts
			}
		}
		hits[i] = hit
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// Len reports how many turns the archive holds.
func (s *Store) Len() int {
	return s.collection.Count()
}
