package chat

import (
	"context"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/llm"
	"github.com/kailas-cloud/memorag/internal/repository/exchange"
	"github.com/kailas-cloud/memorag/internal/usecase/retrieval"
	llmuc "github.com/kailas-cloud/memorag/internal/usecase/llm"
)

// Assembler builds the ranked context for a question.
type Assembler interface {
	Assemble(ctx context.Context, scope domain.Scope, in retrieval.Input) (retrieval.Context, error)
}

// Models resolves a chat model by provider; the empty provider selects the default.
type Models interface {
	Get(p llm.Provider) (llmuc.ChatModel, llm.Provider, error)
}

// StreamModel opens a streamed completion.
type StreamModel interface {
	Stream(ctx context.Context, p llm.Prompt) (<-chan llm.Chunk, error)
}

// ExchangeStore persists completed exchanges.
type ExchangeStore interface {
	Save(ctx context.Context, scope domain.Scope, ex exchange.Exchange) error
}
