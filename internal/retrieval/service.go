// Package retrieval implements the retrieval stage: embed the query text,
// search the vector store, and hand back candidate matches in the store's
// order. A failed or empty retrieval is a normal outcome, not a fault; the
// coordinator continues with whatever this stage produced.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahrav/policybot/internal/domain"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store runs nearest-neighbor searches over the policy collection.
type Store interface {
	Search(ctx context.Context, vector []float32, topK int) ([]domain.CandidateMatch, error)
}

// Service is the local retrieval stage backed by an embedder and a vector
// store.
type Service struct {
	embedder Embedder
	store    Store
	topK     int
	logger   *slog.Logger
}

// NewService creates a retrieval service.
func NewService(embedder Embedder, store Store, topK int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		store:    store,
		topK:     topK,
		logger:   logger.With("component", "retrieval"),
	}
}

// Search retrieves the topK candidate matches for a query. On any failure
// it returns an empty slice alongside the error so callers can degrade to
// the no-matches path without nil checks.
func (s *Service) Search(ctx context.Context, q domain.Query) ([]domain.CandidateMatch, error) {
	vector, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		s.logger.Warn("embedding failed, returning no matches",
			"query_id", q.ID, "error", err)
		return []domain.CandidateMatch{}, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.store.Search(ctx, vector, s.topK)
	if err != nil {
		s.logger.Warn("vector search failed, returning no matches",
			"query_id", q.ID, "error", err)
		return []domain.CandidateMatch{}, fmt.Errorf("searching store: %w", err)
	}

	s.logger.Debug("retrieval complete",
		"query_id", q.ID, "matches", len(matches))
	return matches, nil
}
