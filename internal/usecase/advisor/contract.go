package advisor

import (
	"context"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// IndexLoader opens the active index snapshot.
type IndexLoader interface {
	Load(ctx context.Context, embedder domain.Embedder) (*domain.IndexHandle, error)
}

// Retriever ranks index records against a query.
type Retriever interface {
	Search(ctx context.Context, h *domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error)
}

// Gate screens queries before retrieval and scrubs model output after it.
type Gate interface {
	Match(text string) (string, bool)
	Sanitize(text string) (string, int)
	Warning() string
}
