package ingest

import (
	"context"
	"io"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// CorpusLoader reads a zip archive of tables.
type CorpusLoader interface {
	Load(ctx context.Context, r io.Reader) (domain.Corpus, error)
	LoadFile(ctx context.Context, path string) (domain.Corpus, error)
}

// IndexBuilder persists a new index snapshot over the active one.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder) (domain.IndexInfo, error)
	Info(ctx context.Context) (domain.IndexInfo, error)
}
