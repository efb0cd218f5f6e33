package memo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/memorag/internal/db"
	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
)

// querier is the consumer interface for the memo repository (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Repo reads memo summaries.
type Repo struct {
	db querier
}

// New creates a memo repository.
func New(q querier) *Repo {
	return &Repo{db: q}
}

const summariesQuery = `SELECT memo_uuid::text, COALESCE(title, ''), COALESCE(summary, '')
FROM memo_summary_view
WHERE org_id = $1 AND project_id = $2 AND memo_uuid::text = ANY($3::text[])`

// Summaries returns the title and summary of each requested memo that exists in scope,
// keyed by memo id. Unknown ids are absent from the map.
func (r *Repo) Summaries(ctx context.Context, scope domain.Scope, memoIDs []string) (map[string]result.MemoSummary, error) {
	if len(memoIDs) == 0 {
		return map[string]result.MemoSummary{}, nil
	}
	rows, err := r.db.QueryContext(ctx, summariesQuery, scope.OrgID, scope.ProjectID, pq.StringArray(dedupe(memoIDs)))
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("memo summaries: %w", err)}
	}
	defer rows.Close()

	out := make(map[string]result.MemoSummary, len(memoIDs))
	for rows.Next() {
		var s result.MemoSummary
		if err := rows.Scan(&s.MemoUUID, &s.Title, &s.Summary); err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: fmt.Errorf("memo summary: %w", err)}
		}
		out[s.MemoUUID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("iterate memo summaries: %w", err)}
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
