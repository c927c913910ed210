package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/metrics"
)

// ChatConfig holds the language model settings.
type ChatConfig struct {
	Config
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// ChatModel implements domain.LanguageModel with a single-turn chat completion.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	user        string
	logger      *zap.Logger
}

// NewChatModel creates an OpenAI-compatible chat completion client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	return &ChatModel{
		client:      newClient(&cfg.Config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		user:        cfg.User,
		logger:      cfg.Logger,
	}
}

// Model returns the configured model name.
func (m *ChatModel) Model() string { return m.model }

// Complete sends prompt as one user message and returns the first choice.
func (m *ChatModel) Complete(ctx context.Context, prompt string) (domain.Completion, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
		User:        m.user,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	metrics.LLMRequestDuration.WithLabelValues(m.model).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		return domain.Completion{}, parseAPIError("chat", err, domain.ErrModelProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrModelProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.model, "success").Inc()
	metrics.LLMTokensTotal.WithLabelValues(m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		m.logger.Warn("Completion truncated by max_tokens",
			zap.String("model", m.model),
			zap.Int("max_tokens", m.maxTokens),
		)
	}

	return domain.Completion{
		Text:             strings.TrimSpace(choice.Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
