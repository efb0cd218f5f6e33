package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/memorag/internal/domain/llm"
)

// Config holds the memorag API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Rewrite   RewriteConfig   `yaml:"rewrite"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Chat      ChatConfig      `yaml:"chat"`
	Usage     UsageConfig     `yaml:"usage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error (default: determined by env)
	Encoding string `yaml:"encoding"` // json, console (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // SSE responses clear it per request
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	ReadinessTimeout   int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds Valkey settings for the embedding cache and usage counters.
type CacheConfig struct {
	Addrs             []string `yaml:"addrs"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DB                int      `yaml:"db"`
	EmbeddingTTLHours int      `yaml:"embedding_ttl_hours"`
	UsageTTLDays      int      `yaml:"usage_ttl_days"`
	ReadinessTimeout  int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds the query embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"` // label for metrics and logs
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	MaxTokens        int    `yaml:"max_tokens"`
}

// LLMConfig holds chat-completion providers.
type LLMConfig struct {
	Default   string                       `yaml:"default"`
	Providers map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig holds one chat-completion provider.
type LLMProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	MaxRetries int    `yaml:"max_retries"`
}

// RewriteConfig holds query rewriting settings.
type RewriteConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"` // empty = llm.default
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// RetrievalConfig holds vector search thresholds and context sizes.
type RetrievalConfig struct {
	SearchThreshold float64 `yaml:"search_threshold"`
	ChatThreshold   float64 `yaml:"chat_threshold"`
	ChatTopK        int     `yaml:"chat_top_k"`
	ContextTopN     int     `yaml:"context_top_n"`
}

// RerankConfig holds reranker settings. An empty endpoint selects the lexical reranker.
type RerankConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BatchSize   int     `yaml:"batch_size"`
	MaxParallel int     `yaml:"max_parallel"` // 0 = one goroutine per batch
	MinScore    float64 `yaml:"min_score"`
	RateLimit   float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// ChatConfig holds answer generation settings.
type ChatConfig struct {
	SystemPrompt string  `yaml:"system_prompt"` // must contain {context}
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	// DetailedErrors exposes provider errors in stream error events (default: on outside prod).
	DetailedErrors *bool `yaml:"detailed_errors"`
}

// UsageConfig holds monthly plan ceilings.
type UsageConfig struct {
	Plans map[string]PlanConfig `yaml:"plans"`
}

// PlanConfig holds the monthly ceilings of one plan. 0 = unlimited.
type PlanConfig struct {
	Chat            int64 `yaml:"chat"`
	Search          int64 `yaml:"search"`
	EmbeddingTokens int64 `yaml:"embedding_tokens"`
}

// AuthConfig holds API keys and the scope used when auth is disabled.
type AuthConfig struct {
	APIKeys   []APIKeyConfig `yaml:"api_keys"`
	Anonymous ScopeConfig    `yaml:"anonymous"`
}

// APIKeyConfig maps a bearer token to a tenant scope.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	ScopeConfig `yaml:",inline"`
}

// ScopeConfig identifies a tenant.
type ScopeConfig struct {
	OrgID     string `yaml:"org_id"`
	ProjectID string `yaml:"project_id"`
	Plan      string `yaml:"plan"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Cache.EmbeddingTTLHours <= 0 {
		c.Cache.EmbeddingTTLHours = 24 * 7
	}
	if c.Cache.UsageTTLDays <= 0 {
		c.Cache.UsageTTLDays = 62
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.LLM.Default == "" {
		c.LLM.Default = string(llm.OpenAI)
	}
	if c.Rewrite.Temperature == 0 {
		c.Rewrite.Temperature = 0.1
	}
	if c.Retrieval.SearchThreshold <= 0 {
		c.Retrieval.SearchThreshold = 0.75
	}
	if c.Retrieval.ChatThreshold <= 0 {
		c.Retrieval.ChatThreshold = 0.95
	}
	if c.Retrieval.ChatTopK <= 0 {
		c.Retrieval.ChatTopK = 100
	}
	if c.Retrieval.ContextTopN <= 0 {
		c.Retrieval.ContextTopN = 10
	}
	if c.Rerank.BatchSize <= 0 {
		c.Rerank.BatchSize = 25
	}
	if c.Rerank.TimeoutSec <= 0 {
		c.Rerank.TimeoutSec = 30
	}
	if c.Auth.Anonymous.OrgID == "" {
		c.Auth.Anonymous.OrgID = "local"
	}
	if c.Auth.Anonymous.ProjectID == "" {
		c.Auth.Anonymous.ProjectID = "default"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if c.Retrieval.ChatThreshold > 2 || c.Retrieval.SearchThreshold > 2 {
		return fmt.Errorf("retrieval thresholds are cosine distances and must be at most 2")
	}
	for name, p := range c.Usage.Plans {
		if p.Chat < 0 || p.Search < 0 || p.EmbeddingTokens < 0 {
			return fmt.Errorf("usage.plans.%s: limits must not be negative", name)
		}
	}
	for i, k := range c.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("auth.api_keys[%d].key is required", i)
		}
		if k.OrgID == "" || k.ProjectID == "" {
			return fmt.Errorf("auth.api_keys[%d] requires org_id and project_id", i)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("llm.providers must configure at least one provider")
	}
	for name := range c.LLM.Providers {
		if !llm.Provider(name).IsValid() {
			return fmt.Errorf("llm.providers.%s: unsupported provider", name)
		}
	}
	if _, ok := c.LLM.Providers[c.LLM.Default]; !ok {
		return fmt.Errorf("llm.default %q is not configured in llm.providers", c.LLM.Default)
	}
	if c.Rewrite.Provider != "" {
		if _, ok := c.LLM.Providers[c.Rewrite.Provider]; !ok {
			return fmt.Errorf("rewrite.provider %q is not configured in llm.providers", c.Rewrite.Provider)
		}
	}
	return nil
}

// DetailedErrors reports whether stream error events carry provider details.
func (c *Config) DetailedErrors(env string) bool {
	if c.Chat.DetailedErrors != nil {
		return *c.Chat.DetailedErrors
	}
	return env != "prod"
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
