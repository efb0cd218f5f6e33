package llm

import (
	"context"
	"fmt"
	"slices"

	"github.com/kailas-cloud/memorag/internal/domain"
	domllm "github.com/kailas-cloud/memorag/internal/domain/llm"
)

// ChatModel is the provider-neutral chat completion contract.
type ChatModel interface {
	Invoke(ctx context.Context, p domllm.Prompt) (string, error)
	Stream(ctx context.Context, p domllm.Prompt) (<-chan domllm.Chunk, error)
}

// Registry resolves configured chat models by provider name.
type Registry struct {
	models   map[domllm.Provider]ChatModel
	fallback domllm.Provider
}

// NewRegistry creates a registry. fallback must be one of the registered providers.
func NewRegistry(models map[domllm.Provider]ChatModel, fallback domllm.Provider) (*Registry, error) {
	if _, ok := models[fallback]; !ok {
		return nil, fmt.Errorf("default llm provider %q is not configured", fallback)
	}
	return &Registry{models: models, fallback: fallback}, nil
}

// Get returns the model for p, or the default model when p is empty.
func (r *Registry) Get(p domllm.Provider) (ChatModel, domllm.Provider, error) {
	if p == "" {
		p = r.fallback
	}
	m, ok := r.models[p]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q is not configured", domain.ErrUnsupportedProvider, p)
	}
	return m, p, nil
}

// Default returns the default model.
func (r *Registry) Default() ChatModel { return r.models[r.fallback] }

// Providers lists the configured providers in sorted order.
func (r *Registry) Providers() []domllm.Provider {
	out := make([]domllm.Provider, 0, len(r.models))
	for p := range r.models {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
