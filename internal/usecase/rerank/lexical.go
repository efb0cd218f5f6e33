package rerank

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	"github.com/kailas-cloud/memorag/internal/metrics"
)

const (
	backendLabel = "lexical"
	minTokenLen  = 3
)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "from": {}, "was": {},
	"are": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "does": {},
	"did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"can": {}, "this": {}, "that": {}, "these": {}, "those": {}, "you": {}, "she": {},
	"they": {}, "what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "why": {},
	"how": {}, "into": {}, "about": {}, "there": {}, "their": {}, "not": {},
}

// Lexical scores snippets by the share of query terms they contain.
// It is the fallback when no rerank endpoint is configured.
type Lexical struct {
	minScore float64
}

// NewLexical creates a term-overlap reranker. Results below minScore are dropped.
func NewLexical(minScore float64) *Lexical {
	return &Lexical{minScore: minScore}
}

// Rerank scores every snippet in [0, 1]. A query without meaningful terms scores all
// snippets 0 so the caller keeps the similarity order.
func (l *Lexical) Rerank(ctx context.Context, query string, snippets []string, refs []result.Ref) ([]result.Reranked, error) {
	if len(refs) != len(snippets) {
		metrics.RerankBatchesTotal.WithLabelValues(backendLabel, "error").Inc()
		return nil, fmt.Errorf("%w: %d snippets but %d refs", domain.ErrRerankFailed, len(snippets), len(refs))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankFailed, err)
	}

	start := time.Now()
	terms := uniqueTerms(query)

	out := make([]result.Reranked, 0, len(snippets))
	for i, s := range snippets {
		score := overlap(terms, s)
		if score < l.minScore {
			continue
		}
		out = append(out, result.Reranked{
			Index:     i,
			Snippet:   s,
			Score:     score,
			MemoUUID:  refs[i].MemoUUID,
			MemoTitle: refs[i].MemoTitle,
		})
	}

	metrics.RerankBatchDuration.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
	metrics.RerankBatchesTotal.WithLabelValues(backendLabel, "success").Inc()
	return out, nil
}

func overlap(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	seen := uniqueTerms(text)
	hits := 0
	for t := range terms {
		if _, ok := seen[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func uniqueTerms(text string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) < minTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
