package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
)

// TokenGate enforces and records per-organization embedding token consumption.
type TokenGate interface {
	Check(ctx context.Context, scope domain.Scope, kind domusage.Kind) error
	RecordTokens(scope domain.Scope, tokens int)
}

// InstrumentedEmbedder wraps Embedder with plan enforcement and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
// Calls without a tenant scope in the context are neither checked nor recorded.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	gate     TokenGate
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with token accounting and observability.
// gate can be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	gate TokenGate, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		gate:     gate,
		logger:   logger,
	}
}

// Embed checks the token ceiling, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	scope, scoped := domain.ScopeFromContext(ctx)

	if p.gate != nil && scoped {
		if err := p.gate.Check(ctx, scope, domusage.KindEmbeddingTokens); err != nil {
			p.logger.Warn("Embedding token ceiling reached",
				zap.String("org_id", scope.OrgID),
				zap.String("plan", scope.Plan),
				zap.Error(err),
			)
			return domain.EmbeddingResult{}, fmt.Errorf("token check: %w", err)
		}
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	// Some OpenAI-compatible servers report only prompt tokens.
	if result.TotalTokens == 0 {
		result.TotalTokens = result.PromptTokens
	}
	if p.gate != nil && scoped && result.TotalTokens > 0 {
		p.gate.RecordTokens(scope, result.TotalTokens)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
