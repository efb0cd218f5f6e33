package search

import (
	"context"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/repository/chunk"
)

// ChunkSearcher runs the similarity query over memo chunks.
type ChunkSearcher interface {
	Search(ctx context.Context, scope domain.Scope, vector []float32, q chunk.Query) ([]result.Hit, error)
}

// MemoReader reads memo titles and summaries for enrichment.
type MemoReader interface {
	Summaries(ctx context.Context, scope domain.Scope, memoIDs []string) (map[string]result.MemoSummary, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
