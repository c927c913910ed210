package advisor

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/guard"
)

// --- Mocks ---

type mockIndex struct {
	handle *domain.IndexHandle
	err    error
	calls  int
}

func (m *mockIndex) Load(_ context.Context, _ domain.Embedder) (*domain.IndexHandle, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.handle, nil
}

type mockRetriever struct {
	hits  []domain.ScoredChunk
	err   error
	calls int
	lastK int
	lastQ string
}

func (m *mockRetriever) Search(_ context.Context, _ *domain.IndexHandle, query string, k int) ([]domain.ScoredChunk, error) {
	m.calls++
	m.lastK = k
	m.lastQ = query
	return m.hits, m.err
}

type mockModel struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (m *mockModel) Complete(_ context.Context, prompt string) (domain.Completion, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return domain.Completion{}, m.err
	}
	return domain.Completion{Text: m.reply, PromptTokens: 100, CompletionTokens: 20}, nil
}

type nopEmbedder struct{}

func (nopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, nil
}

// --- Helpers ---

var student = domain.Session{LoggedIn: true, Role: domain.RoleUser, Username: "sam"}

func hit(source, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: domain.Chunk{Text: text, SourceID: source}, Score: score}
}

type fixture struct {
	svc       *Service
	index     *mockIndex
	retriever *mockRetriever
	model     *mockModel
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	g, err := guard.New(guard.Config{})
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	f := &fixture{
		index: &mockIndex{handle: &domain.IndexHandle{
			Info: domain.IndexInfo{SnapshotID: "snap-1", Dimensions: 2, Records: 2},
		}},
		retriever: &mockRetriever{hits: []domain.ScoredChunk{
			hit("courses.csv", "Data Science,3 years,Analytics", 0.9),
			hit("careers.csv", "Analyst,Finance,Growing", 0.7),
		}},
		model: &mockModel{reply: "Consider the Data Science course."},
	}
	f.svc, err = New(cfg, f.index, nopEmbedder{}, f.retriever, f.model, g, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}
