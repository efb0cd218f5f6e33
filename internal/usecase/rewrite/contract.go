package rewrite

import (
	"context"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
)

// Invoker runs a single non-streaming completion.
type Invoker interface {
	Invoke(ctx context.Context, p llm.Prompt) (string, error)
}

// ProjectSettings reads per-project switches.
type ProjectSettings interface {
	RewriteEnabled(ctx context.Context, scope domain.Scope) (bool, error)
}
