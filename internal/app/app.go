// Package app is the composition root shared by the API server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/config"
	"github.com/kailas-cloud/courseadvisor/internal/db"
	dbRedis "github.com/kailas-cloud/courseadvisor/internal/db/redis"
	"github.com/kailas-cloud/courseadvisor/internal/domain"
	"github.com/kailas-cloud/courseadvisor/internal/metrics"
	budgetrepo "github.com/kailas-cloud/courseadvisor/internal/repository/budget"
	"github.com/kailas-cloud/courseadvisor/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/courseadvisor/internal/repository/index"
	sessionrepo "github.com/kailas-cloud/courseadvisor/internal/repository/session"
	chiTransport "github.com/kailas-cloud/courseadvisor/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/courseadvisor/internal/transport/openai"
	advisoruc "github.com/kailas-cloud/courseadvisor/internal/usecase/advisor"
	authuc "github.com/kailas-cloud/courseadvisor/internal/usecase/auth"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/chunker"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/corpus"
	embeddinguc "github.com/kailas-cloud/courseadvisor/internal/usecase/embedding"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/guard"
	healthuc "github.com/kailas-cloud/courseadvisor/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/courseadvisor/internal/usecase/ingest"
	"github.com/kailas-cloud/courseadvisor/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/courseadvisor/internal/usecase/usage"
)

// App holds the wired services.
type App struct {
	Config  config.Config
	Cache   db.Store // nil without a cache server
	Index   *indexrepo.Store
	Budget  *embeddinguc.BudgetTracker
	Auth    *authuc.Service
	Advisor *advisoruc.Service
	Ingest  *ingestuc.Service
	Usage   *usageuc.Service
	Health  *healthuc.Service
	logger  *zap.Logger
}

// New wires every service from cfg. Close releases the cache connection.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	a := &App{Config: cfg, logger: logger}

	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Cache.Addrs,
			Password:  cfg.Cache.Password,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			store.Close()
			return nil, fmt.Errorf("cache not ready: %w", err)
		}
		a.Cache = store
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	provName, vecCfg, provCfg := cfg.Vectorizer()

	a.Budget = newBudget(ctx, provName, provCfg.Budget, a.Cache, logger)
	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budgetChecker embeddinguc.BudgetChecker
	if a.Budget != nil {
		budgetChecker = a.Budget
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(base, provName, vecCfg, vecCfg.DocumentInstruction, a.Cache, budgetChecker, logger)
	queryEmbedder := buildEmbedder(base, provName, vecCfg, vecCfg.QueryInstruction, a.Cache, budgetChecker, logger)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	llmKey := cfg.LLM.APIKey
	if llmKey == "" {
		llmKey = provCfg.APIKey
	}
	model := openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
		Config: openaiTransport.Config{
			APIKey:   llmKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Provider: provName,
			Logger:   logger,
		},
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})
	logger.Info("Chat model created",
		zap.String("model", model.Model()),
		zap.Float32("temperature", cfg.LLM.Temperature),
	)

	gate, err := guard.New(guardConfig(cfg.Guard))
	if err != nil {
		return nil, a.fail(fmt.Errorf("guard: %w", err))
	}

	a.Index = indexrepo.New(cfg.Index.Path, vecCfg.Model, logger)

	a.Advisor, err = advisoruc.New(
		advisoruc.Config{TopK: cfg.Index.TopK, PromptTemplate: cfg.Advisor.PromptTemplate},
		a.Index, queryEmbedder, retrieval.New(queryEmbedder), model, gate, logger,
	)
	if err != nil {
		return nil, a.fail(err)
	}

	loader := corpus.New(corpus.Options{
		MaxFileBytes: int64(cfg.Corpus.MaxFileMB) << 20,
		Extensions:   cfg.Corpus.Extensions,
		TempDir:      cfg.Corpus.TempDir,
	}, logger)
	a.Ingest, err = ingestuc.New(loader, a.Index, docEmbedder,
		chunker.Config{Size: cfg.Index.ChunkSize, Overlap: cfg.Index.ChunkOverlap}, logger)
	if err != nil {
		return nil, a.fail(err)
	}

	users, err := authUsers(cfg.Auth.Users)
	if err != nil {
		return nil, a.fail(err)
	}
	var sessions authuc.SessionStore = authuc.NewMemorySessions()
	if a.Cache != nil {
		sessions = sessionrepo.New(a.Cache)
	}
	a.Auth = authuc.New(users, sessions, time.Duration(cfg.Auth.SessionTTLMin)*time.Minute, logger)

	// Usage service reads from the shared BudgetTracker
	var budgetReader usageuc.BudgetReader
	if a.Budget != nil {
		budgetReader = a.Budget
	}
	a.Usage = usageuc.New(budgetReader)

	var cachePinger healthuc.CachePinger
	if a.Cache != nil {
		cachePinger = a.Cache
	}
	a.Health = healthuc.New(a.Index, cachePinger, newEmbeddingHealthChecker(base)).WithLLM(model)

	return a, nil
}

// Server builds the HTTP API on top of the wired services.
func (a *App) Server() *chiTransport.Server {
	return chiTransport.NewServer(a.Auth, a.Advisor, a.Ingest, a.Usage, a.Health,
		chiTransport.Options{
			MaxUploadBytes: int64(a.Config.HTTP.MaxUploadMB) << 20,
			SecureCookies:  a.Config.HTTP.SecureCookies,
		}, a.logger)
}

// Close releases the cache connection, if any.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
}

func (a *App) fail(err error) error {
	a.Close()
	return err
}

// newBudget returns nil when neither limit is set.
func newBudget(
	ctx context.Context, provName string, cfg config.BudgetConfig, store db.Store, logger *zap.Logger,
) *embeddinguc.BudgetTracker {
	if cfg.DailyTokenLimit <= 0 && cfg.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if cfg.Action == "reject" {
		action = embeddinguc.BudgetActionReject
	}
	budget := embeddinguc.NewBudgetTracker(provName, embeddinguc.Limits{
		Daily:   cfg.DailyTokenLimit,
		Monthly: cfg.MonthlyTokenLimit,
	}, action, logger)
	if store != nil {
		// loads current counters so restarts do not reset the budget
		budget.WithStore(ctx, budgetrepo.New(store, 0, 0))
	}
	return budget
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	provName string,
	vecCfg config.VectorizerConfig,
	instruction string,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(base, store, vecCfg.Model, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (budget + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, budget, logger)

	// Instruction prefix (outermost, so the cache key includes the instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

func guardConfig(cfg config.GuardConfig) guard.Config {
	return guard.Config{
		InputRules:  rules(cfg.InputPatterns),
		OutputRules: rules(cfg.OutputPatterns),
		Warning:     cfg.Warning,
		Marker:      cfg.RedactionMarker,
	}
}

func rules(pp []config.PatternConfig) []guard.Rule {
	if len(pp) == 0 {
		return nil
	}
	out := make([]guard.Rule, len(pp))
	for i, p := range pp {
		out[i] = guard.Rule{Name: p.Name, Pattern: p.Pattern}
	}
	return out
}

func authUsers(cfg []config.UserConfig) ([]authuc.User, error) {
	users := make([]authuc.User, 0, len(cfg))
	for i, u := range cfg {
		role, err := domain.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("auth.users[%d]: %w", i, err)
		}
		users = append(users, authuc.User{Username: u.Username, Role: role, Salt: u.Salt, Hash: u.Hash})
	}
	return users, nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
