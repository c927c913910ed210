// Package advisor answers student questions from the course index through a
// single language model call, with an input gate in front and output
// redaction behind.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/logger"
	"github.com/kailas-cloud/courseadvisor/internal/metrics"
)

// Config holds advisor settings.
type Config struct {
	TopK           int
	PromptTemplate string
}

// Service is the guarded advisor.
type Service struct {
	index     IndexLoader
	embedder  domain.Embedder
	retriever Retriever
	model     domain.LanguageModel
	gate      Gate
	prompt    *template.Template
	topK      int
	logger    *zap.Logger
}

// New creates an advisor. embedder must be the one the index is built with.
func New(
	cfg Config,
	index IndexLoader,
	embedder domain.Embedder,
	retriever Retriever,
	model domain.LanguageModel,
	gate Gate,
	logger *zap.Logger,
) (*Service, error) {
	tmpl, err := ParseTemplate(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	return &Service{
		index:     index,
		embedder:  embedder,
		retriever: retriever,
		model:     model,
		gate:      gate,
		prompt:    tmpl,
		topK:      topK,
		logger:    logger,
	}, nil
}

// TopK returns the number of chunks retrieved per question.
func (s *Service) TopK() int { return s.topK }

// Ask answers query for a logged-in session. A query matching an input
// pattern returns a rejected Answer carrying the warning, with a nil error,
// and reaches neither the index nor the model.
func (s *Service) Ask(ctx context.Context, sess domain.Session, query string) (domain.Answer, error) {
	if err := sess.RequireLogin(); err != nil {
		return domain.Answer{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Answer{}, domain.ErrEmptyQuery
	}

	log := logger.FromContext(ctx, s.logger)

	if pattern, hit := s.gate.Match(query); hit {
		metrics.GateRejectionsTotal.WithLabelValues(pattern).Inc()
		log.Info("query_rejected",
			zap.String("pattern", pattern),
			zap.String("username", sess.Username),
			zap.String("role", string(sess.Role)),
		)
		return domain.Answer{Text: s.gate.Warning(), Verdict: domain.VerdictRejected}, nil
	}

	h, err := s.index.Load(ctx, s.embedder)
	if err != nil {
		if !errors.Is(err, domain.ErrIndexNotFound) {
			log.Error("Failed to load index", zap.Error(err))
		}
		return domain.Answer{}, fmt.Errorf("load index: %w", err)
	}

	hits, err := s.retriever.Search(ctx, h, query, s.topK)
	if err != nil {
		log.Error("Retrieval failed", zap.Error(err), zap.String("snapshot", h.Info.SnapshotID))
		return domain.Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	prompt, err := render(s.prompt, hits, query)
	if err != nil {
		return domain.Answer{}, err
	}

	completion, err := s.model.Complete(ctx, prompt)
	if err != nil {
		log.Error("Model call failed", zap.Error(err))
		if !errors.Is(err, domain.ErrModelProviderError) {
			err = fmt.Errorf("%w: %w", domain.ErrModelProviderError, err)
		}
		return domain.Answer{}, err
	}
	domain.UsageFromContext(ctx).AddModelTokens(completion.PromptTokens, completion.CompletionTokens)

	text, redactions := s.gate.Sanitize(completion.Text)
	if redactions > 0 {
		log.Warn("Model output redacted", zap.Int("redactions", redactions))
	}

	return domain.Answer{
		Text:       text,
		Verdict:    domain.VerdictAllowed,
		Sources:    sourcesOf(hits),
		Redactions: redactions,
	}, nil
}
