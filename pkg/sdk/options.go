package memorag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type providerConfig struct {
	apiKey  string
	baseURL string
	model   string
}

type clientConfig struct {
	dsn string

	valkeyAddrs    []string
	valkeyPassword string

	embedder       Embedder
	embeddingModel string
	dimensions     int

	providers       map[Provider]providerConfig
	defaultProvider Provider
	maxTokens       int

	rerankURL    string
	rerankAPIKey string
	rerankModel  string

	rewrite         bool
	chatTopK        int
	chatThreshold   float64
	searchThreshold float64
	contextTopN     int
	batchSize       int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		dimensions:      1536,
		providers:       make(map[Provider]providerConfig),
		chatTopK:        100,
		chatThreshold:   0.95,
		searchThreshold: 0.75,
		contextTopN:     10,
		batchSize:       25,
	}
}

// WithPostgres sets the Postgres DSN of the memo store. Required.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dsn = dsn
	})
}

// WithValkey enables the query embedding cache on a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.valkeyAddrs = []string{addr}
		c.valkeyPassword = password
	})
}

// WithEmbedder sets the query embedding provider. Required.
// model names the embedding model and partitions the cache.
func WithEmbedder(e Embedder, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.embeddingModel = model
		if dimensions > 0 {
			c.dimensions = dimensions
		}
	})
}

// WithOpenAI registers an OpenAI-compatible chat provider.
// The first registered provider is the default unless WithDefaultProvider is set.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return withProvider(ProviderOpenAI, providerConfig{apiKey: apiKey, baseURL: baseURL, model: model})
}

// WithAnthropic registers the Anthropic chat provider.
func WithAnthropic(apiKey, model string) Option {
	return withProvider(ProviderAnthropic, providerConfig{apiKey: apiKey, model: model})
}

// WithGoogle registers the Gemini chat provider.
func WithGoogle(apiKey, model string) Option {
	return withProvider(ProviderGoogle, providerConfig{apiKey: apiKey, model: model})
}

func withProvider(p Provider, pc providerConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.providers[p] = pc
		if c.defaultProvider == "" {
			c.defaultProvider = p
		}
	})
}

// WithDefaultProvider selects the provider used when a request names none.
func WithDefaultProvider(p Provider) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultProvider = p
	})
}

// WithMaxTokens caps the answer length for every provider.
func WithMaxTokens(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTokens = n
	})
}

// WithRerankEndpoint uses a Cohere/Jina compatible rerank API instead of the
// built-in lexical reranker.
func WithRerankEndpoint(url, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankURL = url
		c.rerankAPIKey = apiKey
		c.rerankModel = model
	})
}

// WithQueryRewrite rewrites follow-up questions into standalone queries using the
// default provider. Off by default.
func WithQueryRewrite(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.rewrite = enabled
	})
}

// WithRetrieval tunes chat retrieval: candidate count, maximum cosine distance and
// how many reranked snippets reach the model. Zero keeps the default.
// Defaults: topK=100, threshold=0.95, topN=10.
func WithRetrieval(topK int, threshold float64, topN int) Option {
	return optionFunc(func(c *clientConfig) {
		if topK > 0 {
			c.chatTopK = topK
		}
		if threshold > 0 {
			c.chatThreshold = threshold
		}
		if topN > 0 {
			c.contextTopN = topN
		}
	})
}

// WithSearchThreshold sets the maximum cosine distance of search results.
// Default: 0.75.
func WithSearchThreshold(threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.searchThreshold = threshold
	})
}

// WithRerankBatchSize sets how many snippets go into one rerank call.
// Default: 25.
func WithRerankBatchSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = size
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
