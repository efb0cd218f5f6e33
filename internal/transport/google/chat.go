package google

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

const providerLabel = string(llm.Google)

// Config holds the Gemini provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// ChatModel is a chat-completion provider backed by the Gemini API.
//
// Stream emits the raw *genai.Part of every text part as chunk content, so
// consumers have to normalize it.
type ChatModel struct {
	client    *genai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewChatModel creates a Gemini chat model.
func NewChatModel(ctx context.Context, cfg *Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &ChatModel{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens, logger: cfg.Logger}, nil
}

// Invoke returns the full completion for prompt.
func (m *ChatModel) Invoke(ctx context.Context, p llm.Prompt) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents(p), m.config(p))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "error").Inc()
		return "", wrapError(err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "success").Inc()
	return resp.Text(), nil
}

// Stream opens a streamed completion. The first response is pulled before
// returning so that request failures surface as an error here.
func (m *ChatModel) Stream(ctx context.Context, p llm.Prompt) (<-chan llm.Chunk, error) {
	seq := m.client.Models.GenerateContentStream(ctx, m.model, contents(p), m.config(p))
	next, stop := iter.Pull2(seq)

	first, err, ok := next()
	if err != nil {
		stop()
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
		return nil, wrapError(err)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer stop()

		resp := first
		for ok {
			if !m.emit(ctx, out, resp) {
				return
			}
			resp, err, ok = next()
			if err != nil {
				metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
				llm.Send(ctx, out, llm.Chunk{Err: wrapError(err)})
				return
			}
		}
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "success").Inc()
	}()
	return out, nil
}

func (m *ChatModel) emit(ctx context.Context, out chan<- llm.Chunk, resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return true
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			// thinking parts are not part of the answer
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			metrics.LLMStreamChunksTotal.WithLabelValues(providerLabel).Inc()
			if !llm.Send(ctx, out, llm.Chunk{Content: part}) {
				return false
			}
		}
	}
	return true
}

func contents(p llm.Prompt) []*genai.Content {
	out := make([]*genai.Content, 0, len(p.Messages))
	for _, msg := range p.Messages {
		role := genai.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}})
	}
	return out
}

func (m *ChatModel) config(p llm.Prompt) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: p.System}}}
	}
	if p.Temperature > 0 {
		cfg.Temperature = genai.Ptr[float32](p.Temperature)
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(min(maxTokens, math.MaxInt32)) // #nosec G115 -- bounded
	}
	return cfg
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("google: %w: %w: %w", domain.ErrRateLimited, domain.ErrGenerationFailed, err)
	}
	return fmt.Errorf("google: %w: %w", domain.ErrGenerationFailed, err)
}
