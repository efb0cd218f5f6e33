package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
)

// Counters persists per-organization monthly usage counters.
type Counters interface {
	IncrBy(ctx context.Context, orgID string, kind domusage.Kind, at time.Time, val int64) error
	Get(ctx context.Context, orgID string, kind domusage.Kind, at time.Time) (int64, error)
	GetMany(ctx context.Context, orgID string, kinds []domusage.Kind, at time.Time) (map[domusage.Kind]int64, error)
}
