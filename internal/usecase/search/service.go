package search

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/metrics"
	"github.com/kailas-cloud/memorag/internal/repository/chunk"
)

// DefaultThreshold is the maximum cosine distance of a search hit.
const DefaultThreshold = 0.75

// Service handles semantic search over memo chunks.
type Service struct {
	chunks    ChunkSearcher
	memos     MemoReader
	embed     Embedder
	threshold float64
}

// New creates a search service. A non-positive threshold means DefaultThreshold.
func New(chunks ChunkSearcher, memos MemoReader, embed Embedder, threshold float64) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{chunks: chunks, memos: memos, embed: embed, threshold: threshold}
}

// Search embeds the query, returns the closest chunks in scope and joins each with its
// memo title and summary. Results keep the distance order of the similarity query.
func (s *Service) Search(ctx context.Context, scope domain.Scope, req request.Search) ([]result.Enriched, error) {
	embResult, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	start := time.Now()
	hits, err := s.chunks.Search(ctx, scope, embResult.Embedding, chunk.Query{
		TopK:      req.Limit(),
		Threshold: s.threshold,
		Filters:   req.Filters(),
	})
	metrics.VectorSearchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(hits) == 0 {
		return []result.Enriched{}, nil
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.MemoUUID)
	}
	summaries, err := s.memos.Summaries(ctx, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("load memo summaries: %w", err)
	}

	out := make([]result.Enriched, len(hits))
	for i, h := range hits {
		sum := summaries[h.MemoUUID]
		out[i] = result.Enriched{Hit: h, MemoTitle: sum.Title, MemoSummary: sum.Summary}
	}
	return out, nil
}
