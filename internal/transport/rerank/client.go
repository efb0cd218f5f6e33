package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/metrics"
	"github.com/kailas-cloud/memorag/internal/version"
)

const (
	backendLabel   = "http"
	rerankPath     = "/v1/rerank"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds the rerank endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// MinScore drops results scoring below it. Zero keeps everything.
	MinScore float64
	// RateLimit caps outgoing requests per second. Zero disables the limiter.
	RateLimit float64
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Client calls a Cohere/Jina compatible rerank endpoint.
type Client struct {
	http     *http.Client
	url      string
	apiKey   string
	model    string
	minScore float64
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// New creates a rerank client.
func New(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		http:     &http.Client{Timeout: timeout},
		url:      cfg.BaseURL + rerankPath,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		minScore: cfg.MinScore,
		logger:   cfg.Logger,
	}
	if cfg.RateLimit > 0 {
		burst := max(int(cfg.RateLimit), 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// Rerank scores snippets against query. Indexes in the output refer to positions in snippets.
func (c *Client) Rerank(ctx context.Context, query string, snippets []string, refs []result.Ref) ([]result.Reranked, error) {
	if len(snippets) == 0 {
		return nil, nil
	}
	if len(refs) != len(snippets) {
		return nil, fmt.Errorf("%w: %d snippets but %d refs", domain.ErrRerankFailed, len(snippets), len(refs))
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrRerankFailed, err)
		}
	}

	start := time.Now()
	resp, err := c.call(ctx, rerankRequest{Model: c.model, Query: query, Documents: snippets, TopN: len(snippets)})
	metrics.RerankBatchDuration.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RerankBatchesTotal.WithLabelValues(backendLabel, "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankFailed, err)
	}

	out := make([]result.Reranked, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(snippets) {
			metrics.RerankBatchesTotal.WithLabelValues(backendLabel, "error").Inc()
			return nil, fmt.Errorf("%w: result index %d out of range", domain.ErrRerankFailed, r.Index)
		}
		if r.RelevanceScore < c.minScore {
			continue
		}
		out = append(out, result.Reranked{
			Index:     r.Index,
			Snippet:   snippets[r.Index],
			Score:     r.RelevanceScore,
			MemoUUID:  refs[r.Index].MemoUUID,
			MemoTitle: refs[r.Index].MemoTitle,
		})
	}
	metrics.RerankBatchesTotal.WithLabelValues(backendLabel, "success").Inc()
	return out, nil
}

func (c *Client) call(ctx context.Context, body rerankRequest) (*rerankResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if c.logger != nil {
			c.logger.Warn("Rerank endpoint returned error",
				zap.Int("status", resp.StatusCode), zap.ByteString("body", detail))
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
		}
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
