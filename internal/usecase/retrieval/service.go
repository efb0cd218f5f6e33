package retrieval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/conversation"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/metrics"
	"github.com/kailas-cloud/memorag/internal/repository/chunk"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTopK      = 100
	DefaultThreshold = 0.95
	DefaultBatchSize = 25
	DefaultTopN      = 10
)

// Config tunes context assembly.
type Config struct {
	// TopK is how many chunks the similarity query may return.
	TopK int
	// Threshold is the maximum cosine distance of a candidate chunk.
	Threshold float64
	// BatchSize is how many snippets go into one rerank call.
	BatchSize int
	// MaxParallel caps concurrent rerank calls per request. Zero means no cap.
	MaxParallel int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// Input is one assembly request.
type Input struct {
	Query   string
	Filters []filter.Filter
	History []conversation.Turn
	// TopN is how many reranked results to keep. Zero means DefaultTopN.
	TopN int
}

// Context is the ranked material a chat answer is grounded on.
type Context struct {
	EffectiveQuery string
	Results        []result.Reranked
}

// Text renders the results as the prompt context block.
func (c Context) Text() string {
	var sb strings.Builder
	for i, r := range c.Results {
		sb.WriteString("Result ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(": ")
		sb.WriteString(r.Snippet)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Service assembles reranked context for a chat question.
type Service struct {
	rewriter Rewriter
	embed    Embedder
	chunks   ChunkSearcher
	memos    MemoReader
	reranker Reranker
	cfg      Config
	logger   *zap.Logger
}

// New creates a retrieval service. rewriter can be nil.
func New(
	rewriter Rewriter, embed Embedder, chunks ChunkSearcher, memos MemoReader,
	reranker Reranker, cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		rewriter: rewriter,
		embed:    embed,
		chunks:   chunks,
		memos:    memos,
		reranker: reranker,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Assemble rewrites the query, runs the similarity search, reranks the candidates in
// parallel batches and returns the best TopN. Any embedding, search, metadata or
// rerank failure aborts the whole assembly.
func (s *Service) Assemble(ctx context.Context, scope domain.Scope, in Input) (Context, error) {
	query := in.Query
	if s.rewriter != nil {
		query = s.rewriter.Rewrite(ctx, scope, in.Query, in.History)
	}
	out := Context{EffectiveQuery: query}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return out, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	start := time.Now()
	hits, err := s.chunks.Search(ctx, scope, emb.Embedding, chunk.Query{
		TopK:      s.cfg.TopK,
		Threshold: s.cfg.Threshold,
		Filters:   in.Filters,
	})
	metrics.VectorSearchDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	if err != nil {
		return out, fmt.Errorf("search chunks: %w", err)
	}
	if len(hits) == 0 {
		return out, nil
	}

	summaries, err := s.memos.Summaries(ctx, scope, memoIDs(hits))
	if err != nil {
		return out, fmt.Errorf("load memo summaries: %w", err)
	}

	snippets := make([]string, len(hits))
	refs := make([]result.Ref, len(hits))
	for i, h := range hits {
		sum := summaries[h.MemoUUID]
		snippets[i] = BuildSnippet(sum.Title, sum.Summary, h.Content)
		refs[i] = result.Ref{MemoUUID: h.MemoUUID, MemoTitle: sum.Title}
	}

	ranked, err := s.rerank(ctx, query, snippets, refs)
	if err != nil {
		return out, err
	}

	topN := in.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	s.logger.Debug("Context assembled",
		zap.String("org_id", scope.OrgID),
		zap.String("project_id", scope.ProjectID),
		zap.Int("candidates", len(hits)),
		zap.Int("results", len(ranked)),
	)

	out.Results = ranked
	return out, nil
}

// rerank fans batches out concurrently and merges the results ordered by score.
// Indexes in the output refer to positions in snippets.
func (s *Service) rerank(ctx context.Context, query string, snippets []string, refs []result.Ref) ([]result.Reranked, error) {
	snippetBatches := Batch(snippets, s.cfg.BatchSize)
	refBatches := Batch(refs, s.cfg.BatchSize)
	perBatch := make([][]result.Reranked, len(snippetBatches))

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}
	for i := range snippetBatches {
		offset := i * s.cfg.BatchSize
		g.Go(func() error {
			res, err := s.reranker.Rerank(gctx, query, snippetBatches[i], refBatches[i])
			if err != nil {
				return fmt.Errorf("rerank batch %d: %w", i, err)
			}
			for j := range res {
				res[j].Index += offset
			}
			perBatch[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, domain.ErrRerankFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrRerankFailed, err)
		}
		return nil, err
	}

	var merged []result.Reranked
	for _, res := range perBatch {
		merged = append(merged, res...)
	}
	slices.SortStableFunc(merged, func(a, b result.Reranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return merged, nil
}

// Batch splits items into consecutive slices of at most size elements, keeping order.
func Batch[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// BuildSnippet joins memo metadata and chunk text into the text that gets reranked.
func BuildSnippet(title, summary, content string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("Memo: ")
		sb.WriteString(title)
		sb.WriteByte('\n')
	}
	if summary != "" {
		sb.WriteString("Summary: ")
		sb.WriteString(summary)
		sb.WriteByte('\n')
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(content)
	return sb.String()
}

func memoIDs(hits []result.Hit) []string {
	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.MemoUUID]; ok {
			continue
		}
		seen[h.MemoUUID] = struct{}{}
		out = append(out, h.MemoUUID)
	}
	return out
}
