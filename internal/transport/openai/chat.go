package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

const providerLabel = string(llm.OpenAI)

// ChatModel is a chat-completion provider using the OpenAI-compatible API.
type ChatModel struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewChatModel creates an OpenAI-compatible chat model.
func NewChatModel(cfg *Config) *ChatModel {
	return &ChatModel{
		client:    newClient(cfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

// Invoke returns the full completion for prompt.
func (m *ChatModel) Invoke(ctx context.Context, p llm.Prompt) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, m.request(p, false))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "error").Inc()
		return "", parseAPIError("chat", err, domain.ErrGenerationFailed)
	}
	metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "invoke", "success").Inc()
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streamed completion. The returned channel is closed when the
// stream ends; a failure after opening arrives as a Chunk with Err set.
func (m *ChatModel) Stream(ctx context.Context, p llm.Prompt) (<-chan llm.Chunk, error) {
	stream, err := m.client.CreateChatCompletionStream(ctx, m.request(p, true))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
		return nil, parseAPIError("chat", err, domain.ErrGenerationFailed)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "success").Inc()
				return
			}
			if err != nil {
				metrics.LLMRequestsTotal.WithLabelValues(providerLabel, "stream", "error").Inc()
				llm.Send(ctx, out, llm.Chunk{Err: fmt.Errorf("openai stream: %w: %w", domain.ErrGenerationFailed, err)})
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			metrics.LLMStreamChunksTotal.WithLabelValues(providerLabel).Inc()
			if !llm.Send(ctx, out, llm.Chunk{Content: resp.Choices[0].Delta.Content}) {
				return
			}
		}
	}()
	return out, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (m *ChatModel) request(p llm.Prompt, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.Messages)+1)
	if strings.TrimSpace(p.System) != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	for _, msg := range p.Messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == llm.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = m.maxTokens
	}
	return openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    msgs,
		Temperature: p.Temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	}
}
