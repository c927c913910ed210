package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// --- Mocks ---

type mockLoader struct {
	corpus domain.Corpus
	err    error
	calls  int
}

func (m *mockLoader) Load(_ context.Context, _ io.Reader) (domain.Corpus, error) {
	m.calls++
	return m.corpus, m.err
}

func (m *mockLoader) LoadFile(_ context.Context, _ string) (domain.Corpus, error) {
	m.calls++
	return m.corpus, m.err
}

type mockIndex struct {
	info   domain.IndexInfo
	err    error
	built  []domain.Chunk
	builds int
}

func (m *mockIndex) Build(_ context.Context, chunks []domain.Chunk, _ domain.Embedder) (domain.IndexInfo, error) {
	m.builds++
	if m.err != nil {
		return domain.IndexInfo{}, m.err
	}
	m.built = chunks
	info := m.info
	info.Records = len(chunks)
	return info, nil
}

func (m *mockIndex) Info(_ context.Context) (domain.IndexInfo, error) {
	if m.builds == 0 && m.info.SnapshotID == "" {
		return domain.IndexInfo{}, domain.ErrIndexNotFound
	}
	return m.info, m.err
}

// lenEmbedder returns a 3-dim vector derived from the text length.
type lenEmbedder struct{}

func (lenEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	n := float32(len(text))
	return domain.EmbeddingResult{Embedding: []float32{n, 1, n / 2}, TotalTokens: len(text) / 4}, nil
}

func (lenEmbedder) Dimensions() int { return 3 }

// --- Helpers ---

var (
	admin   = domain.Session{LoggedIn: true, Role: domain.RoleAdmin, Username: "registrar"}
	student = domain.Session{LoggedIn: true, Role: domain.RoleUser, Username: "sam"}
)

func zipOf(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := io.Copy(w, strings.NewReader(body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}
