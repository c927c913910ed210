// Package corpus turns an uploaded archive of course tables into documents.
package corpus

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// DefaultExtensions are the archive members read as tables.
var DefaultExtensions = []string{".csv", ".tsv", ".txt", ".xlsx"}

var errTooLarge = errors.New("member exceeds size limit")

// Options configure a Loader.
type Options struct {
	// MaxFileBytes limits one member's uncompressed size. Zero means no limit.
	MaxFileBytes int64
	// Extensions lists accepted member extensions, lower case with the dot.
	Extensions []string
	// TempDir is where the scoped extraction area is created; "" uses os.TempDir.
	TempDir string
}

// Loader reads tables out of zip archives.
type Loader struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Loader.
func New(opts Options, logger *zap.Logger) *Loader {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	exts := make([]string, len(opts.Extensions))
	for i, e := range opts.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[i] = e
	}
	opts.Extensions = exts
	return &Loader{opts: opts, logger: logger}
}

// Load extracts the archive read from r into a temporary area, parses every
// accepted member and removes the area before returning. A member that cannot
// be parsed is recorded in Corpus.Failures and does not stop the batch.
func (l *Loader) Load(ctx context.Context, r io.Reader) (domain.Corpus, error) {
	dir, err := os.MkdirTemp(l.opts.TempDir, "courseadvisor-ingest-*")
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("create extraction area: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			l.logger.Warn("Failed to remove extraction area", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()

	archivePath := filepath.Join(dir, "upload.zip")
	if err := writeFile(archivePath, r); err != nil {
		return domain.Corpus{}, err
	}
	return l.loadArchive(ctx, archivePath, dir)
}

// LoadFile is Load for an archive already on disk.
func (l *Loader) LoadFile(ctx context.Context, archivePath string) (domain.Corpus, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("open %s: %w: %w", archivePath, domain.ErrUnreadableArchive, err)
	}
	defer f.Close()
	return l.Load(ctx, f)
}

func writeFile(dst string, r io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func (l *Loader) loadArchive(ctx context.Context, archivePath, dir string) (domain.Corpus, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return domain.Corpus{}, fmt.Errorf("%w: %w", domain.ErrUnreadableArchive, err)
	}
	defer zr.Close()

	var out domain.Corpus
	for i, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return domain.Corpus{}, fmt.Errorf("load archive: %w", err)
		}

		name, ok := memberName(f)
		if !ok {
			continue
		}
		ext := strings.ToLower(path.Ext(name))
		if !slices.Contains(l.opts.Extensions, ext) {
			out.Skipped = append(out.Skipped, name)
			continue
		}

		docs, err := l.readMember(f, filepath.Join(dir, fmt.Sprintf("member-%04d%s", i, ext)), name, ext)
		if err != nil {
			l.logger.Warn("Skipping unreadable table", zap.String("file", name), zap.Error(err))
			out.Failures = append(out.Failures, &domain.UnreadableTableError{File: name, Err: err})
			continue
		}
		out.Documents = append(out.Documents, docs...)
	}
	return out, nil
}

// memberName returns the cleaned member path, or false for directories,
// resource forks, dot-files and paths escaping the archive root.
func memberName(f *zip.File) (string, bool) {
	if f.FileInfo().IsDir() {
		return "", false
	}
	name := path.Clean(strings.ReplaceAll(f.Name, `\`, "/"))
	if name == "." || path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
		return "", false
	}
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), ".") {
		return "", false
	}
	return name, true
}

// readMember extracts one member to dst and parses it from there.
func (l *Loader) readMember(f *zip.File, dst, name, ext string) ([]domain.Document, error) {
	limit := l.opts.MaxFileBytes
	if limit > 0 && f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%d bytes: %w", f.UncompressedSize64, errTooLarge)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member: %w", err)
	}
	var src io.Reader = rc
	if limit > 0 {
		src = io.LimitReader(rc, limit+1)
	}
	err = writeFile(dst, src)
	_ = rc.Close()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read member: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errTooLarge
	}

	if ext == ".xlsx" {
		return workbookDocuments(name, data)
	}
	return delimitedDocument(name, ext, data)
}

func delimitedDocument(name, ext string, data []byte) ([]domain.Document, error) {
	text, enc := decodeText(data)
	rows, err := parseDelimited(text, delimiterFor(ext, text))
	if err != nil {
		return nil, err
	}
	out, err := serialize(rows)
	if err != nil {
		return nil, err
	}
	return []domain.Document{{SourceID: name, RawText: out, EncodingUsed: enc}}, nil
}

func workbookDocuments(name string, data []byte) ([]domain.Document, error) {
	sheets, err := parseWorkbook(data)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(sheets))
	for _, s := range sheets {
		out, err := serialize(s.rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.Document{
			SourceID:     name + "#" + s.name,
			RawText:      out,
			EncodingUsed: encodingUTF8,
		})
	}
	return docs, nil
}
