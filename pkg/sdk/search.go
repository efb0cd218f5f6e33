package memorag

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
)

// SearchOption tunes a single search.
type SearchOption func(*searchParams)

type searchParams struct {
	limit   *int
	filters []Filter
}

// SearchLimit caps the number of results (1..50, default 10).
func SearchLimit(n int) SearchOption {
	return func(p *searchParams) { p.limit = &n }
}

// SearchFilters restricts results by memo fields.
func SearchFilters(filters ...Filter) SearchOption {
	return func(p *searchParams) { p.filters = append(p.filters, filters...) }
}

// Search returns the chunks closest to query, with their memo titles and summaries.
func (c *Client) Search(ctx context.Context, scope Scope, query string, opts ...SearchOption) (_ []SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", scope, start, err) }()

	var p searchParams
	for _, o := range opts {
		o(&p)
	}
	filters, err := toDomainFilters(p.filters)
	if err != nil {
		return nil, err
	}
	req, err := request.NewSearch(query, p.limit, filters)
	if err != nil {
		return nil, err
	}

	hits, err := c.searchSvc.Search(ctx, toDomainScope(scope), req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			ChunkUUID:   h.ChunkUUID,
			MemoUUID:    h.MemoUUID,
			MemoTitle:   h.MemoTitle,
			MemoSummary: h.MemoSummary,
			Content:     h.Content,
			Snippet:     h.Snippet(),
			Distance:    h.Distance,
		}
	}
	return out, nil
}

func toDomainFilters(in []Filter) ([]filter.Filter, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if len(in) > filter.MaxFilters {
		return nil, domain.NewValidationError("Invalid filter: too many filters (max %d)", filter.MaxFilters)
	}
	out := make([]filter.Filter, len(in))
	for i, f := range in {
		df, err := filter.New(f.Field, filter.Operator(f.Operator), filter.Type(f.Type), listValue(f.Value))
		if err != nil {
			return nil, domain.NewValidationError("Invalid filter: filters[%d]: %v", i, err)
		}
		out[i] = df
	}
	return out, nil
}

func toDomainScope(s Scope) domain.Scope {
	return domain.Scope{OrgID: s.OrgID, ProjectID: s.ProjectID}
}

// listValue turns typed slices into the []any that list operators expect.
func listValue(v any) any {
	switch vs := v.(type) {
	case []string:
		return toAny(vs)
	case []float64:
		return toAny(vs)
	case []int:
		return toAny(vs)
	case []bool:
		return toAny(vs)
	}
	return v
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
