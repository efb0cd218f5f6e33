package chi

import (
	"context"

	"github.com/kailas-cloud/memorag/internal/domain"
	"github.com/kailas-cloud/memorag/internal/domain/search/request"
	"github.com/kailas-cloud/memorag/internal/domain/search/result"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
	chatuc "github.com/kailas-cloud/memorag/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/memorag/internal/usecase/health"
)

// SearchService runs semantic memo search.
type SearchService interface {
	Search(ctx context.Context, scope domain.Scope, req request.Search) ([]result.Enriched, error)
}

// ChatService answers chat questions.
type ChatService interface {
	Answer(ctx context.Context, scope domain.Scope, req request.Chat) (chatuc.Answer, error)
	Stream(ctx context.Context, scope domain.Scope, req request.Chat) (*chatuc.Session, error)
}

// UsageGate enforces plan ceilings and reports consumption.
type UsageGate interface {
	Check(ctx context.Context, scope domain.Scope, kind domusage.Kind) error
	Record(scope domain.Scope, kind domusage.Kind, n int64)
	Report(ctx context.Context, scope domain.Scope) (domusage.Report, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
