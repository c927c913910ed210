// Package retrieval ranks index records against a query by cosine similarity.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// Service embeds queries and scans an index snapshot.
type Service struct {
	embedder domain.Embedder
}

// New creates a retrieval service using the same embedder the index was built with.
func New(embedder domain.Embedder) *Service {
	return &Service{embedder: embedder}
}

// Search returns the top k records of h by similarity to query, best first.
// Equal scores keep insertion order. k larger than the index returns everything.
func (s *Service) Search(ctx context.Context, h *domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k=%d: %w", k, domain.ErrInvalidTopK)
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if h.Len() == 0 {
		return nil, nil
	}

	res, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(res.Embedding) != h.Info.Dimensions {
		return nil, &domain.DimensionMismatchError{Index: h.Info.Dimensions, Embedder: len(res.Embedding)}
	}

	return Rank(h.Records, res.Embedding, k), nil
}

// Rank scores records against vec and keeps the best k.
func Rank(records []domain.Record, vec []float32, k int) []domain.ScoredChunk {
	scored := make([]domain.ScoredChunk, len(records))
	for i, r := range records {
		scored[i] = domain.ScoredChunk{Chunk: r.Chunk, Score: domain.CosineSimilarity(vec, r.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored[:min(k, len(scored))]
}
