package chunk

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kailas-cloud/memorag/internal/db/postgres"
	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/filter"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
)

// MaxTopK bounds the number of candidates a single query may request.
const MaxTopK = 1000

// querier is the consumer interface for the chunk repository (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query parameterizes a similarity search.
type Query struct {
	TopK int
	// Threshold is the maximum cosine distance a hit may have.
	Threshold float64
	Filters   []filter.Filter
}

// Repo runs nearest-neighbour queries over memo chunks.
type Repo struct {
	db         querier
	dimensions int
}

// New creates a chunk repository. dimensions, when positive, is enforced on query vectors.
func New(q querier, dimensions int) *Repo {
	return &Repo{db: q, dimensions: dimensions}
}

const searchSelect = `SELECT c.uuid::text, c.memo_uuid::text, c.content, c.position,
	(c.embedding <=> $1::vector) AS distance
FROM memo_chunks c
JOIN memos m ON m.uuid = c.memo_uuid
WHERE c.org_id = $2 AND c.project_id = $3
	AND m.org_id = $2 AND m.project_id = $3
	AND m.deleted_at IS NULL
	AND c.embedding IS NOT NULL
	AND (c.embedding <=> $1::vector) <= $4`

// Search returns up to TopK chunks of the scope's memos whose distance to vector is
// within Threshold, closest first. Ties are broken by chunk id so equal inputs
// produce equal output. User filters are ANDed with the scope predicate.
func (r *Repo) Search(ctx context.Context, scope domain.Scope, vector []float32, q Query) ([]result.Hit, error) {
	if err := scope.Validate(); err != nil {
		return nil, domain.NewVectorSearchError("validate", err)
	}
	if q.TopK <= 0 || q.TopK > MaxTopK {
		return nil, domain.NewVectorSearchError("validate", fmt.Errorf("top_k must be between 1 and %d, got %d", MaxTopK, q.TopK))
	}
	if q.Threshold < 0 || q.Threshold > 2 {
		return nil, domain.NewVectorSearchError("validate", fmt.Errorf("threshold must be between 0 and 2, got %v", q.Threshold))
	}
	if r.dimensions > 0 && len(vector) != r.dimensions {
		return nil, domain.NewVectorSearchError("validate",
			fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vector), r.dimensions))
	}
	vec, err := postgres.EncodeVector(vector)
	if err != nil {
		return nil, domain.NewVectorSearchError("encode vector", err)
	}

	args := []any{vec, scope.OrgID, scope.ProjectID, q.Threshold, q.TopK}
	pred, err := postgres.CompileFilters(q.Filters, len(args)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, pred.Args...)

	var sb strings.Builder
	sb.WriteString(searchSelect)
	for _, c := range pred.Clauses {
		sb.WriteString("\n\tAND ")
		sb.WriteString(c)
	}
	sb.WriteString("\nORDER BY distance ASC, c.uuid ASC\nLIMIT $5")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, domain.NewVectorSearchError("query chunks", err)
	}
	defer rows.Close()

	hits := make([]result.Hit, 0, q.TopK)
	for rows.Next() {
		h := result.Hit{OrgID: scope.OrgID, ProjectID: scope.ProjectID}
		if err := rows.Scan(&h.ChunkUUID, &h.MemoUUID, &h.Content, &h.Position, &h.Distance); err != nil {
			return nil, domain.NewVectorSearchError("scan chunk", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewVectorSearchError("iterate chunks", err)
	}
	return hits, nil
}
