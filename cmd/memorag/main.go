package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/config"
	"github.com/kailas-cloud/memorag/internal/db/postgres"
	"github.com/kailas-cloud/memorag/internal/db/valkey"
	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
	logpkg "github.com/kailas-cloud/memorag/internal/logger"
	"github.com/kailas-cloud/memorag/internal/metrics"
	chunkrepo "github.com/kailas-cloud/memorag/internal/repository/chunk"
	"github.com/kailas-cloud/memorag/internal/repository/embcache"
	exchangerepo "github.com/kailas-cloud/memorag/internal/repository/exchange"
	memorepo "github.com/kailas-cloud/memorag/internal/repository/memo"
	projectrepo "github.com/kailas-cloud/memorag/internal/repository/project"
	usagerepo "github.com/kailas-cloud/memorag/internal/repository/usage"
	anthropicllm "github.com/kailas-cloud/memorag/internal/transport/anthropic"
	chiTransport "github.com/kailas-cloud/memorag/internal/transport/chi"
	googlellm "github.com/kailas-cloud/memorag/internal/transport/google"
	openaiTransport "github.com/kailas-cloud/memorag/internal/transport/openai"
	rerankclient "github.com/kailas-cloud/memorag/internal/transport/rerank"
	chatuc "github.com/kailas-cloud/memorag/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/memorag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/memorag/internal/usecase/health"
	llmuc "github.com/kailas-cloud/memorag/internal/usecase/llm"
	rerankuc "github.com/kailas-cloud/memorag/internal/usecase/rerank"
	"github.com/kailas-cloud/memorag/internal/usecase/retrieval"
	"github.com/kailas-cloud/memorag/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/memorag/internal/usecase/search"
	usageuc "github.com/kailas-cloud/memorag/internal/usecase/usage"
	"github.com/kailas-cloud/memorag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, Encoding: cfg.Logging.Encoding})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting memorag API server",
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("cache_addrs", cfg.Cache.Addrs),
		zap.String("llm_default", cfg.LLM.Default),
	)

	ctx := context.Background()

	pg, err := postgres.Open(postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	kv, err := valkey.NewStore(valkey.Config{
		Addrs:    cfg.Cache.Addrs,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create cache store", zap.Error(err))
	}
	defer kv.Close()
	if err := kv.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Cache not ready", zap.Error(err))
	}
	logger.Info("Connected to database and cache")

	// Register metrics explicitly (no init())
	metrics.Register()

	usageSvc := usageuc.New(
		usagerepo.New(kv, time.Duration(cfg.Cache.UsageTTLDays)*24*time.Hour),
		plansFromConfig(cfg.Usage.Plans),
		logger,
	)

	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		MaxTokens:  cfg.Embedding.MaxTokens,
		Logger:     logger,
	})
	queryEmbedder := buildEmbedder(baseEmbedder, cfg.Embedding, cfg.Cache, kv, usageSvc, logger)

	models, err := buildModels(ctx, cfg.LLM, logger)
	if err != nil {
		logger.Fatal("Failed to configure llm providers", zap.Error(err))
	}
	logger.Info("LLM providers ready", zap.Any("providers", models.Providers()))

	chunks := chunkrepo.New(pg.DB(), cfg.Embedding.Dimensions)
	memos := memorepo.New(pg.DB())

	rewriteModel, _, err := models.Get(llm.Provider(cfg.Rewrite.Provider))
	if err != nil {
		logger.Fatal("Rewrite provider unavailable", zap.Error(err))
	}
	rewriter := rewrite.New(rewriteModel, projectrepo.New(pg.DB()), rewrite.Config{
		Enabled:     cfg.Rewrite.Enabled,
		Temperature: cfg.Rewrite.Temperature,
		MaxTokens:   cfg.Rewrite.MaxTokens,
	}, logger)

	reranker, err := buildReranker(cfg.Rerank, logger)
	if err != nil {
		logger.Fatal("Failed to configure reranker", zap.Error(err))
	}

	assembler := retrieval.New(rewriter, queryEmbedder, chunks, memos, reranker, retrieval.Config{
		TopK:        cfg.Retrieval.ChatTopK,
		Threshold:   cfg.Retrieval.ChatThreshold,
		BatchSize:   cfg.Rerank.BatchSize,
		MaxParallel: cfg.Rerank.MaxParallel,
	}, logger)

	generator := chatuc.NewGenerator(chatuc.GeneratorConfig{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
	}, logger)
	chatSvc := chatuc.New(assembler, models, generator, exchangerepo.New(pg.DB()),
		cfg.Retrieval.ContextTopN, logger)
	searchSvc := searchuc.New(chunks, memos, queryEmbedder, cfg.Retrieval.SearchThreshold)
	healthSvc := healthuc.New(pg, kv, baseEmbedder)

	server := chiTransport.NewServer(searchSvc, chatSvc, usageSvc, healthSvc,
		chiTransport.Options{DetailedErrors: cfg.DetailedErrors(env)}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(apiKeyScopes(cfg.Auth), scopeFromConfig(cfg.Auth.Anonymous)))
	r.Use(metrics.Middleware())
	chiTransport.Mount(r, server)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	// usage writes are fire-and-forget; let them land before the stores close
	if err := usageSvc.Wait(shutdownCtx); err != nil {
		logger.Warn("Pending usage writes dropped", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	embCfg config.EmbeddingConfig,
	cacheCfg config.CacheConfig,
	kv *valkey.Store,
	gate embeddinguc.TokenGate,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embcache.New(base, kv, embcache.Config{
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		TTL:        time.Duration(cacheCfg.EmbeddingTTLHours) * time.Hour,
		CacheTotal: metrics.EmbeddingCacheTotal,
		Logger:     logger,
	})
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embCfg.Provider, embCfg.Model, gate, logger)

	// Outermost, so the cache key includes the instruction.
	return domain.NewInstructionEmbedder(embedder, embCfg.QueryInstruction)
}

// buildModels creates a chat model per configured provider.
func buildModels(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*llmuc.Registry, error) {
	models := make(map[llm.Provider]llmuc.ChatModel, len(cfg.Providers))
	for name, p := range cfg.Providers {
		provider := llm.Provider(name)
		log := logger.With(zap.String("llm_provider", name))

		var (
			model llmuc.ChatModel
			err   error
		)
		switch provider {
		case llm.OpenAI:
			model = openaiTransport.NewChatModel(&openaiTransport.Config{
				APIKey:    p.APIKey,
				BaseURL:   p.BaseURL,
				Model:     p.Model,
				MaxTokens: p.MaxTokens,
				Logger:    log,
			})
		case llm.Anthropic:
			model, err = anthropicllm.NewChatModel(&anthropicllm.Config{
				APIKey:     p.APIKey,
				BaseURL:    p.BaseURL,
				Model:      p.Model,
				MaxTokens:  p.MaxTokens,
				MaxRetries: p.MaxRetries,
				Logger:     log,
			})
		case llm.Google:
			model, err = googlellm.NewChatModel(ctx, &googlellm.Config{
				APIKey:    p.APIKey,
				BaseURL:   p.BaseURL,
				Model:     p.Model,
				MaxTokens: p.MaxTokens,
				Logger:    log,
			})
		default:
			err = fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, name)
		}
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		models[provider] = model
	}
	return llmuc.NewRegistry(models, llm.Provider(cfg.Default))
}

// buildReranker picks the HTTP reranker when an endpoint is configured, else the lexical one.
func buildReranker(cfg config.RerankConfig, logger *zap.Logger) (retrieval.Reranker, error) {
	if cfg.Endpoint == "" {
		logger.Info("Rerank endpoint not configured, using lexical reranker")
		return rerankuc.NewLexical(cfg.MinScore), nil
	}
	return rerankclient.New(&rerankclient.Config{
		BaseURL:   cfg.Endpoint,
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MinScore:  cfg.MinScore,
		RateLimit: cfg.RateLimit,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:    logger,
	})
}

func plansFromConfig(plans map[string]config.PlanConfig) map[string]usageuc.Plan {
	out := make(map[string]usageuc.Plan, len(plans))
	for name, p := range plans {
		out[name] = usageuc.Plan{
			domusage.KindChat:            p.Chat,
			domusage.KindSearch:          p.Search,
			domusage.KindEmbeddingTokens: p.EmbeddingTokens,
		}
	}
	return out
}

func apiKeyScopes(cfg config.AuthConfig) map[string]domain.Scope {
	keys := make(map[string]domain.Scope, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys[k.Key] = scopeFromConfig(k.ScopeConfig)
	}
	return keys
}

func scopeFromConfig(s config.ScopeConfig) domain.Scope {
	return domain.Scope{OrgID: s.OrgID, ProjectID: s.ProjectID, Plan: s.Plan}
}
