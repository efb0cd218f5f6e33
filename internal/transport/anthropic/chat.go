package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

const (
	providerLabel    = string(llm.Anthropic)
	defaultMaxTokens = 1024
)

// Config holds the Anthropic provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
	Logger     *zap.Logger
}

// ChatModel is a chat-completion provider backed by the Anthropic Messages API.
type ChatModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewChatModel creates an Anthropic chat model.
func NewChatModel(cfg *Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &ChatModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    cfg.Logger,
	}, nil
}

// Invoke returns the full completion for prompt.
func (m *ChatModel) Invoke(ctx context.Context, p llm.Prompt) (string, error) {
	msg, err := m.client.Messages.New(ctx, m.params(p))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "error").Inc()
		return "", wrapError(err)
	}
	metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "success").Inc()

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stream opens a streamed completion. The first event is read before returning so
// that connection and authentication failures surface as an error here rather than
// mid-stream.
func (m *ChatModel) Stream(ctx context.Context, p llm.Prompt) (<-chan llm.Chunk, error) {
	stream := m.client.Messages.NewStreaming(ctx, m.params(p))
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err == nil {
			err = errors.New("empty stream")
		}
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
		return nil, wrapError(err)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			event := stream.Current()
			if event.Type == "content_block_delta" {
				delta := event.AsContentBlockDelta().Delta
				if delta.Type == "text_delta" && delta.Text != "" {
					metrics.LLMStreamChunksTotal.WithLabelValues(providerLabel).Inc()
					if !llm.Send(ctx, out, llm.Chunk{Content: delta.Text}) {
						return
					}
				}
			}
			if !stream.Next() {
				break
			}
		}

		if err := stream.Err(); err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
			llm.Send(ctx, out, llm.Chunk{Err: wrapError(err)})
			return
		}
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "success").Inc()
	}()
	return out, nil
}

func (m *ChatModel) params(p llm.Prompt) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(p.Messages))
	for _, msg := range p.Messages {
		if msg.Role == llm.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = m.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		Messages:  msgs,
		MaxTokens: int64(maxTokens),
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.Temperature))
	}
	return params
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("anthropic: %w: %w: %w", domain.ErrRateLimited, domain.ErrGenerationFailed, err)
	}
	return fmt.Errorf("anthropic: %w: %w", domain.ErrGenerationFailed, err)
}
