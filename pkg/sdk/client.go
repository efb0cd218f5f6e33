package memorag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/db/postgres"
	"github.com/kailas-cloud/memorag/internal/db/valkey"
	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	chunkrepo "github.com/kailas-cloud/memorag/internal/repository/chunk"
	"github.com/kailas-cloud/memorag/internal/repository/embcache"
	exchangerepo "github.com/kailas-cloud/memorag/internal/repository/exchange"
	memorepo "github.com/kailas-cloud/memorag/internal/repository/memo"
	projectrepo "github.com/kailas-cloud/memorag/internal/repository/project"
	anthropicllm "github.com/kailas-cloud/memorag/internal/transport/anthropic"
	googlellm "github.com/kailas-cloud/memorag/internal/transport/google"
	openaillm "github.com/kailas-cloud/memorag/internal/transport/openai"
	rerankclient "github.com/kailas-cloud/memorag/internal/transport/rerank"
	chatuc "github.com/kailas-cloud/memorag/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/memorag/internal/usecase/health"
	llmuc "github.com/kailas-cloud/memorag/internal/usecase/llm"
	rerankuc "github.com/kailas-cloud/memorag/internal/usecase/rerank"
	"github.com/kailas-cloud/memorag/internal/usecase/retrieval"
	"github.com/kailas-cloud/memorag/internal/usecase/rewrite"
	searchuc "github.com/kailas-cloud/memorag/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	embeddingCacheTTL       = 7 * 24 * time.Hour
)

// Внутренние интерфейсы для подмены в тестах.
type searchUseCase interface {
	Search(ctx context.Context, scope domain.Scope, req request.Search) ([]result.Enriched, error)
}

type chatUseCase interface {
	Answer(ctx context.Context, scope domain.Scope, req request.Chat) (chatuc.Answer, error)
	Stream(ctx context.Context, scope domain.Scope, req request.Chat) (*chatuc.Session, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the memorag SDK entry point.
type Client struct {
	closers   []func()
	searchSvc searchUseCase
	chatSvc   chatUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and connects to Postgres (and Valkey, if configured).
// The provided context is used for the readiness checks and provider setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	pg, err := postgres.Open(postgres.Config{DSN: cfg.dsn})
	if err != nil {
		return nil, fmt.Errorf("memorag: %w", err)
	}
	if err := pg.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		pg.Close()
		return nil, fmt.Errorf("memorag: database not ready: %w", err)
	}
	c := &Client{closers: []func(){pg.Close}, obs: obs}

	var embedder domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	var cache healthuc.Pinger
	if len(cfg.valkeyAddrs) > 0 {
		kv, err := valkey.NewStore(valkey.Config{Addrs: cfg.valkeyAddrs, Password: cfg.valkeyPassword})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("memorag: create valkey store: %w", err)
		}
		c.closers = append(c.closers, kv.Close)
		if err := kv.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			c.Close()
			return nil, fmt.Errorf("memorag: cache not ready: %w", err)
		}
		embedder = embcache.New(embedder, kv, embcache.Config{
			Model:      cfg.embeddingModel,
			Dimensions: cfg.dimensions,
			TTL:        embeddingCacheTTL,
		})
		cache = kv
	}

	if err := c.wire(ctx, cfg, pg, cache, embedder); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	if cfg.dsn == "" {
		return errors.New("memorag: postgres dsn required (use WithPostgres)")
	}
	if cfg.embedder == nil {
		return errors.New("memorag: embedder required (use WithEmbedder)")
	}
	if len(cfg.providers) == 0 {
		return errors.New("memorag: at least one chat provider required (use WithOpenAI, WithAnthropic or WithGoogle)")
	}
	if _, ok := cfg.providers[cfg.defaultProvider]; !ok {
		return fmt.Errorf("memorag: default provider %q is not configured", cfg.defaultProvider)
	}
	return nil
}

func (c *Client) wire(
	ctx context.Context, cfg *clientConfig, pg *postgres.Store, cache healthuc.Pinger, embedder domain.Embedder,
) error {
	// internal components log through zap; SDK operations log through the observer
	logger := zap.NewNop()

	models, err := buildModels(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reranker, err := buildReranker(cfg, logger)
	if err != nil {
		return err
	}

	chunks := chunkrepo.New(pg.DB(), cfg.dimensions)
	memos := memorepo.New(pg.DB())
	rewriter := rewrite.New(models.Default(), projectrepo.New(pg.DB()),
		rewrite.Config{Enabled: cfg.rewrite, Temperature: 0.1}, logger)

	assembler := retrieval.New(rewriter, embedder, chunks, memos, reranker, retrieval.Config{
		TopK:      cfg.chatTopK,
		Threshold: cfg.chatThreshold,
		BatchSize: cfg.batchSize,
	}, logger)
	generator := chatuc.NewGenerator(chatuc.GeneratorConfig{MaxTokens: cfg.maxTokens}, logger)

	c.chatSvc = chatuc.New(assembler, models, generator, exchangerepo.New(pg.DB()), cfg.contextTopN, logger)
	c.searchSvc = searchuc.New(chunks, memos, embedder, cfg.searchThreshold)
	c.healthSvc = healthuc.New(pg, cache, nil)
	return nil
}

func buildModels(ctx context.Context, cfg *clientConfig, logger *zap.Logger) (*llmuc.Registry, error) {
	models := make(map[llm.Provider]llmuc.ChatModel, len(cfg.providers))
	for p, pc := range cfg.providers {
		var (
			model llmuc.ChatModel
			err   error
		)
		switch p {
		case ProviderOpenAI:
			model = openaillm.NewChatModel(&openaillm.Config{
				APIKey: pc.apiKey, BaseURL: pc.baseURL, Model: pc.model, MaxTokens: cfg.maxTokens, Logger: logger,
			})
		case ProviderAnthropic:
			model, err = anthropicllm.NewChatModel(&anthropicllm.Config{
				APIKey: pc.apiKey, Model: pc.model, MaxTokens: cfg.maxTokens, Logger: logger,
			})
		case ProviderGoogle:
			model, err = googlellm.NewChatModel(ctx, &googlellm.Config{
				APIKey: pc.apiKey, Model: pc.model, MaxTokens: cfg.maxTokens, Logger: logger,
			})
		default:
			err = fmt.Errorf("%w: %q", ErrUnsupportedProvider, p)
		}
		if err != nil {
			return nil, fmt.Errorf("memorag: provider %s: %w", p, err)
		}
		models[llm.Provider(p)] = model
	}
	return llmuc.NewRegistry(models, llm.Provider(cfg.defaultProvider))
}

func buildReranker(cfg *clientConfig, logger *zap.Logger) (retrieval.Reranker, error) {
	if cfg.rerankURL == "" {
		return rerankuc.NewLexical(0), nil
	}
	r, err := rerankclient.New(&rerankclient.Config{
		BaseURL: cfg.rerankURL,
		APIKey:  cfg.rerankAPIKey,
		Model:   cfg.rerankModel,
		Timeout: 30 * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("memorag: %w", err)
	}
	return r, nil
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
