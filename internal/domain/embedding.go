package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// NewInstructionEmbedder prefixes every query with instruction before embedding.
// Stored chunks were embedded without it, so asymmetric models (e5, bge, Qwen3)
// need it on the query side only. An empty instruction returns inner as is.
func NewInstructionEmbedder(inner Embedder, instruction string) Embedder {
	if instruction == "" {
		return inner
	}
	return &instructionEmbedder{inner: inner, instruction: instruction}
}

type instructionEmbedder struct {
	inner       Embedder
	instruction string
}

func (e *instructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	if len(result.Embedding) == 0 {
		return EmbeddingResult{}, fmt.Errorf("%w: empty vector", ErrEmbeddingProviderError)
	}
	return result, nil
}
