package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/memorag/internal/db"
	"github.com/kailas-cloud/memorag/internal/domain"
)

// querier is the consumer interface for the project repository (ISP).
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo reads per-project settings.
type Repo struct {
	db querier
}

// New creates a project repository.
func New(q querier) *Repo {
	return &Repo{db: q}
}

const rewriteQuery = `SELECT query_rewrite_enabled FROM projects WHERE org_id = $1 AND uuid::text = $2`

// RewriteEnabled reports whether the project opted into query rewriting.
func (r *Repo) RewriteEnabled(ctx context.Context, scope domain.Scope) (bool, error) {
	var enabled sql.NullBool
	err := r.db.QueryRowContext(ctx, rewriteQuery, scope.OrgID, scope.ProjectID).Scan(&enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("project %s: %w", scope.ProjectID, domain.ErrNotFound)
		}
		return false, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("project settings: %w", err)}
	}
	return enabled.Valid && enabled.Bool, nil
}
