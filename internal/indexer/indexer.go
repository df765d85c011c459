// Package indexer loads the scraped policy corpus into the vector store.
// It embeds each document, ensures the collection matches the embedding
// dimension the collaborator actually produces, and upserts with backoff
// so a briefly unavailable store does not abort a long indexing run.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/ahrav/policybot/internal/configuration"
)

// ErrEmptyCorpus indicates the corpus directory holds no .txt documents.
var ErrEmptyCorpus = errors.New("no .txt documents in corpus directory")

// Embedder turns document text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the slice of the vector store client the indexer needs.
type Store interface {
	EnsureCollection(ctx context.Context, vectorSize int) error
	Upsert(ctx context.Context, id, title, text string, vector []float32) error
	Count(ctx context.Context) (int64, error)
}

// Indexer drives one corpus indexing run.
type Indexer struct {
	embedder Embedder
	store    Store
	cfg      configuration.CorpusConfig
	logger   *slog.Logger
}

// New creates an indexer over the configured corpus directory.
func New(embedder Embedder, store Store, cfg configuration.CorpusConfig, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger.With("component", "indexer"),
	}
}

// Run indexes every .txt document in the corpus directory and returns the
// store's final point count. The collection dimension is taken from the
// first document's embedding, so a model change transparently rebuilds the
// collection.
func (ix *Indexer) Run(ctx context.Context) (int64, error) {
	paths, err := filepath.Glob(filepath.Join(ix.cfg.Dir, "*.txt"))
	if err != nil {
		return 0, fmt.Errorf("listing corpus: %w", err)
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyCorpus, ix.cfg.Dir)
	}
	ix.logger.Info("indexing corpus", "dir", ix.cfg.Dir, "documents", len(paths))

	ensured := false
	indexed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			ix.logger.Warn("skipping unreadable document", "path", path, "error", err)
			continue
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			ix.logger.Warn("skipping empty document", "path", path)
			continue
		}

		id := filepath.Base(path)
		vector, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embedding %s: %w", id, err)
		}

		if !ensured {
			if err := ix.store.EnsureCollection(ctx, len(vector)); err != nil {
				return 0, fmt.Errorf("ensuring collection (dim %d): %w", len(vector), err)
			}
			ensured = true
		}

		title := documentTitle(id, text)
		upsert := func() error {
			return ix.store.Upsert(ctx, id, title, text, vector)
		}
		policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		if err := backoff.Retry(upsert, policy); err != nil {
			return 0, fmt.Errorf("upserting %s: %w", id, err)
		}

		indexed++
		ix.logger.Debug("document indexed", "id", id, "title", title)
	}

	count, err := ix.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	ix.logger.Info("indexing complete", "indexed", indexed, "stored", count)
	return count, nil
}

// documentTitle takes the document's first line, falling back to the file
// name stem. Scraped policy files start with a "Policy NNN: Title" line.
func documentTitle(id, text string) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if line != "" && len(line) <= 200 {
		return line
	}
	return strings.TrimSuffix(id, ".txt")
}
