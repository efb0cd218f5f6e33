package retrieval

import (
	"context"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/repository/chunk"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ChunkSearcher runs the similarity query over memo chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, scope domain.Scope, vector []float32, q chunk.Query) ([]result.Hit, error)
}

// MemoReader bulk-loads memo titles and summaries.
type MemoReader interface {
	Summaries(ctx context.Context, scope domain.Scope, memoIDs []string) (map[string]result.MemoSummary, error)
}

// Rewriter turns a follow-up question into a standalone query.
type Rewriter interface {
	Rewrite(ctx context.Context, scope domain.Scope, query string, history []conversation.Turn) string
}

// Reranker scores one batch of snippets against the query. Output indexes refer to
// positions in snippets; the output may be a subset of the input.
type Reranker interface {
	Rerank(ctx context.Context, query string, snippets []string, refs []result.Ref) ([]result.Reranked, error)
}
