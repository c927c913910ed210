package health

import (
	"context"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// IndexInspector reads the active index snapshot metadata.
type IndexInspector interface {
	Info(ctx context.Context) (domain.IndexInfo, error)
}

// CachePinger checks cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ModelChecker checks language model provider availability.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}
