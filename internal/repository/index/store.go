// Package index persists embedded chunks as one SQLite file per snapshot.
// A rebuild writes a fresh file next to the live one and renames it into place,
// so readers either see the previous snapshot or the new one, never a mix.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/metrics"
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE records (
	id        INTEGER PRIMARY KEY,
	source_id TEXT    NOT NULL,
	char_off  INTEGER NOT NULL,
	text      TEXT    NOT NULL,
	vector    BLOB    NOT NULL
);`

const (
	metaSnapshot   = "snapshot_id"
	metaModel      = "model"
	metaDimensions = "dimensions"
	metaRecords    = "records"
	metaBuiltAt    = "built_at"
)

// Store builds and loads the index at a fixed path.
type Store struct {
	path   string
	model  string
	logger *zap.Logger

	buildMu sync.Mutex

	cacheMu sync.Mutex
	cached  *domain.IndexHandle
	// file the cached handle was read from; a rebuild renames a new inode in,
	// so identity catches replacements that keep mtime and size
	cachedFile os.FileInfo
}

// New creates a store for the index file at path. model is recorded in the
// snapshot metadata.
func New(path, model string, logger *zap.Logger) *Store {
	return &Store{path: path, model: model, logger: logger}
}

// Path returns the live index file path.
func (s *Store) Path() string { return s.path }

// Build embeds every chunk and replaces the live index with the result.
// Nothing on disk changes unless every chunk was embedded.
func (s *Store) Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder) (domain.IndexInfo, error) {
	if len(chunks) == 0 {
		return domain.IndexInfo{}, domain.ErrEmptyCorpus
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	res, err := domain.EmbedAll(ctx, embedder, texts)
	if err != nil {
		return domain.IndexInfo{}, providerError(err)
	}
	if len(res.Embeddings) != len(chunks) {
		return domain.IndexInfo{}, fmt.Errorf("embedder returned %d vectors for %d chunks: %w",
			len(res.Embeddings), len(chunks), domain.ErrEmbeddingProviderError)
	}

	dims, err := uniformDimensions(res.Embeddings, domain.DimensionsOf(embedder))
	if err != nil {
		return domain.IndexInfo{}, err
	}

	info := domain.IndexInfo{
		SnapshotID: uuid.NewString(),
		Path:       s.path,
		Model:      s.model,
		Dimensions: dims,
		Records:    len(chunks),
		BuiltAt:    time.Now().UTC().Truncate(time.Second),
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := s.writeSnapshot(ctx, info, chunks, res.Embeddings); err != nil {
		return domain.IndexInfo{}, err
	}
	s.invalidate()

	metrics.IndexRecords.Set(float64(info.Records))
	s.logger.Info("Index replaced",
		zap.String("snapshot_id", info.SnapshotID),
		zap.String("path", s.path),
		zap.Int("records", info.Records),
		zap.Int("dimensions", info.Dimensions),
	)
	return info, nil
}

func providerError(err error) error {
	if errors.Is(err, domain.ErrEmbeddingProviderError) || errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		return fmt.Errorf("embed chunks: %w", err)
	}
	return fmt.Errorf("embed chunks: %w: %w", domain.ErrEmbeddingProviderError, err)
}

// uniformDimensions checks that all vectors share one non-zero size matching
// the embedder's declared size, when it declares one.
func uniformDimensions(vectors [][]float32, declared int) (int, error) {
	dims := len(vectors[0])
	if dims == 0 {
		return 0, fmt.Errorf("empty vector: %w", domain.ErrEmbeddingProviderError)
	}
	for _, v := range vectors[1:] {
		if len(v) != dims {
			return 0, &domain.DimensionMismatchError{Index: dims, Embedder: len(v)}
		}
	}
	if declared > 0 && declared != dims {
		return 0, &domain.DimensionMismatchError{Index: declared, Embedder: dims}
	}
	return dims, nil
}

func (s *Store) writeSnapshot(
	ctx context.Context, info domain.IndexInfo, chunks []domain.Chunk, vectors [][]float32,
) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
			_ = os.Remove(tmpPath + "-journal")
		}
	}()

	if err := writeDB(ctx, tmpPath, info, chunks, vectors); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func writeDB(ctx context.Context, path string, info domain.IndexInfo, chunks []domain.Chunk, vectors [][]float32) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open temp index: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	meta := map[string]string{
		metaSnapshot:   info.SnapshotID,
		metaModel:      info.Model,
		metaDimensions: strconv.Itoa(info.Dimensions),
		metaRecords:    strconv.Itoa(info.Records),
		metaBuiltAt:    info.BuiltAt.Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, source_id, char_off, text, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.SourceID, c.Offset, c.Text, domain.VectorToBytes(vectors[i])); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close temp index: %w", err)
	}
	return nil
}

// Load returns the live snapshot. The handle is cached until the file changes.
// When the embedder declares a vector size it must match the snapshot's.
func (s *Store) Load(ctx context.Context, embedder domain.Embedder) (*domain.IndexHandle, error) {
	h, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if d := domain.DimensionsOf(embedder); d > 0 && d != h.Info.Dimensions {
		return nil, &domain.DimensionMismatchError{Index: h.Info.Dimensions, Embedder: d}
	}
	return h, nil
}

// Info returns the live snapshot's metadata.
func (s *Store) Info(ctx context.Context) (domain.IndexInfo, error) {
	h, err := s.current(ctx)
	if err != nil {
		return domain.IndexInfo{}, err
	}
	return h.Info, nil
}

// Exists reports whether an index file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *Store) current(ctx context.Context) (*domain.IndexHandle, error) {
	st, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.cached != nil && sameSnapshot(s.cachedFile, st) {
		return s.cached, nil
	}

	h, err := readDB(ctx, s.path)
	if err != nil {
		return nil, err
	}
	s.cached, s.cachedFile = h, st
	metrics.IndexRecords.Set(float64(h.Len()))
	s.logger.Debug("Index loaded",
		zap.String("snapshot_id", h.Info.SnapshotID),
		zap.Int("records", h.Len()),
	)
	return h, nil
}

func sameSnapshot(prev, cur os.FileInfo) bool {
	return os.SameFile(prev, cur) &&
		prev.ModTime().Equal(cur.ModTime()) &&
		prev.Size() == cur.Size()
}

func (s *Store) invalidate() {
	s.cacheMu.Lock()
	s.cached, s.cachedFile = nil, nil
	s.cacheMu.Unlock()
}

func readDB(ctx context.Context, path string) (*domain.IndexHandle, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	info, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	info.Path = path

	rows, err := db.QueryContext(ctx, `SELECT id, source_id, char_off, text, vector FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	h := &domain.IndexHandle{Info: info, Records: make([]domain.Record, 0, info.Records)}
	for rows.Next() {
		var (
			r    domain.Record
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Chunk.SourceID, &r.Chunk.Offset, &r.Chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.Vector, err = domain.BytesToVector(blob); err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		if len(r.Vector) != info.Dimensions {
			return nil, fmt.Errorf("record %d: %w", r.ID,
				&domain.DimensionMismatchError{Index: info.Dimensions, Embedder: len(r.Vector)})
		}
		h.Records = append(h.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return h, nil
}

func readMeta(ctx context.Context, db *sql.DB) (domain.IndexInfo, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return domain.IndexInfo{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.IndexInfo{}, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("read meta: %w", err)
	}

	info := domain.IndexInfo{SnapshotID: meta[metaSnapshot], Model: meta[metaModel]}
	if info.Dimensions, err = strconv.Atoi(meta[metaDimensions]); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("meta dimensions: %w", err)
	}
	if info.Records, err = strconv.Atoi(meta[metaRecords]); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("meta records: %w", err)
	}
	if info.BuiltAt, err = time.Parse(time.RFC3339, meta[metaBuiltAt]); err != nil {
		return domain.IndexInfo{}, fmt.Errorf("meta built_at: %w", err)
	}
	return info, nil
}
