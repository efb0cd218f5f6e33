package exchange

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/memorag/internal/db"
	"github.com/kailas-cloud/memorag/internal/domain"
)

// execer is the consumer interface for the exchange repository (ISP).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exchange is one completed question/answer pair of a chat.
type Exchange struct {
	ChatID         string
	Query          string
	EffectiveQuery string
	Response       string
	Provider       string
	CreatedAt      time.Time
}

// Repo persists chat exchanges.
type Repo struct {
	db  execer
	now func() time.Time
}

// New creates an exchange repository.
func New(e execer) *Repo {
	return &Repo{db: e, now: time.Now}
}

const insertExchange = `INSERT INTO chat_exchanges
	(uuid, chat_id, org_id, project_id, query, effective_query, response, llm_provider, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Save stores a completed exchange.
func (r *Repo) Save(ctx context.Context, scope domain.Scope, ex Exchange) error {
	if ex.ChatID == "" {
		return fmt.Errorf("chat id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertExchange,
		uuid.NewString(), ex.ChatID, scope.OrgID, scope.ProjectID,
		ex.Query, ex.EffectiveQuery, ex.Response, ex.Provider, ex.CreatedAt)
	if err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("insert chat exchange: %w", err)}
	}
	return nil
}
