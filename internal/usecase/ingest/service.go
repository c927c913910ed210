// Package ingest rebuilds the course index from an uploaded archive.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/logger"
	"github.com/kailas-cloud/courseadvisor/internal/metrics"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/chunker"
)

// Summary describes one completed rebuild.
type Summary struct {
	Index     domain.IndexInfo
	Documents int
	Chunks    int
	Failures  []*domain.UnreadableTableError
	Skipped   []string
	Duration  time.Duration
}

// Service runs load, chunk and build as one admin operation.
type Service struct {
	loader   CorpusLoader
	index    IndexBuilder
	embedder domain.Embedder
	chunks   chunker.Config
	logger   *zap.Logger
}

// New creates an ingest service. The chunk config is validated here so a bad
// deployment fails at startup rather than on the first upload.
func New(loader CorpusLoader, index IndexBuilder, embedder domain.Embedder, chunks chunker.Config, logger *zap.Logger) (*Service, error) {
	if err := chunks.Validate(); err != nil {
		return nil, err
	}
	return &Service{loader: loader, index: index, embedder: embedder, chunks: chunks, logger: logger}, nil
}

// Ingest replaces the index with the tables in archive. Only Admin sessions
// may call it; any other session fails before the archive is read.
func (s *Service) Ingest(ctx context.Context, sess domain.Session, archive io.Reader) (Summary, error) {
	if err := sess.RequireAdmin(); err != nil {
		return Summary{}, err
	}
	return s.run(ctx, sess, func() (domain.Corpus, error) { return s.loader.Load(ctx, archive) })
}

// IngestFile is Ingest for an archive on disk.
func (s *Service) IngestFile(ctx context.Context, sess domain.Session, path string) (Summary, error) {
	if err := sess.RequireAdmin(); err != nil {
		return Summary{}, err
	}
	return s.run(ctx, sess, func() (domain.Corpus, error) { return s.loader.LoadFile(ctx, path) })
}

// Status returns the active index snapshot to any logged-in session.
func (s *Service) Status(ctx context.Context, sess domain.Session) (domain.IndexInfo, error) {
	if err := sess.RequireLogin(); err != nil {
		return domain.IndexInfo{}, err
	}
	return s.index.Info(ctx)
}

func (s *Service) run(ctx context.Context, sess domain.Session, load func() (domain.Corpus, error)) (Summary, error) {
	log := logger.FromContext(ctx, s.logger)
	start := time.Now()

	sum, err := s.rebuild(ctx, load)
	sum.Duration = time.Since(start)
	if err != nil {
		metrics.IngestRunsTotal.WithLabelValues(outcome(err)).Inc()
		log.Error("Ingestion failed",
			zap.Error(err),
			zap.String("username", sess.Username),
			zap.Int("failures", len(sum.Failures)),
		)
		return sum, err
	}

	metrics.IngestRunsTotal.WithLabelValues("success").Inc()
	log.Info("Ingestion complete",
		zap.String("username", sess.Username),
		zap.String("snapshot", sum.Index.SnapshotID),
		zap.Int("documents", sum.Documents),
		zap.Int("chunks", sum.Chunks),
		zap.Int("failures", len(sum.Failures)),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (s *Service) rebuild(ctx context.Context, load func() (domain.Corpus, error)) (Summary, error) {
	corpus, err := load()
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		Documents: len(corpus.Documents),
		Failures:  corpus.Failures,
		Skipped:   corpus.Skipped,
	}
	if len(corpus.Documents) == 0 {
		return sum, domain.ErrEmptyCorpus
	}

	chunks, err := chunker.Split(corpus.Documents, s.chunks)
	if err != nil {
		return sum, err
	}
	sum.Chunks = len(chunks)

	info, err := s.index.Build(ctx, chunks, s.embedder)
	if err != nil {
		return sum, fmt.Errorf("build index: %w", err)
	}
	sum.Index = info
	return sum, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnreadableArchive):
		return "unreadable_archive"
	case errors.Is(err, domain.ErrEmptyCorpus):
		return "empty_corpus"
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "embedding_error"
	default:
		return "error"
	}
}
