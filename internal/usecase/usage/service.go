package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	domusage "github.com/kailas-cloud/memorag/internal/domain/usage"
)

const recordTimeout = 2 * time.Second

// Plan holds monthly ceilings per metered kind. A missing or zero ceiling is unlimited.
type Plan map[domusage.Kind]int64

// Service gates requests against plan ceilings and records consumption.
type Service struct {
	counters Counters
	plans    map[string]Plan
	logger   *zap.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates a Service. Scopes whose plan is not in plans are unlimited.
func New(counters Counters, plans map[string]Plan, logger *zap.Logger) *Service {
	return &Service{counters: counters, plans: plans, logger: logger, now: time.Now}
}

func (s *Service) limit(plan string, kind domusage.Kind) int64 {
	p, ok := s.plans[plan]
	if !ok {
		return 0
	}
	return p[kind]
}

// Check returns ErrPlanLimitExceeded when the scope's organization has used up the
// monthly ceiling for kind. Counter read failures are logged and let the request through.
func (s *Service) Check(ctx context.Context, scope domain.Scope, kind domusage.Kind) error {
	limit := s.limit(scope.Plan, kind)
	if limit <= 0 {
		return nil
	}
	used, err := s.counters.Get(ctx, scope.OrgID, kind, s.now())
	if err != nil {
		s.logger.Warn("Usage counter read failed, allowing request",
			zap.String("org_id", scope.OrgID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil
	}
	if used >= limit {
		return fmt.Errorf("%s: %d of %d used: %w", kind, used, limit, domain.ErrPlanLimitExceeded)
	}
	return nil
}

// Record adds n to the scope's counter in the background. Failures are logged only.
func (s *Service) Record(scope domain.Scope, kind domusage.Kind, n int64) {
	if n <= 0 {
		return
	}
	at := s.now()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.counters.IncrBy(ctx, scope.OrgID, kind, at, n); err != nil {
			s.logger.Warn("Failed to record usage",
				zap.String("org_id", scope.OrgID),
				zap.String("kind", string(kind)),
				zap.Int64("n", n),
				zap.Error(err),
			)
		}
	}()
}

// RecordTokens records embedding tokens for scope.
func (s *Service) RecordTokens(scope domain.Scope, tokens int) {
	s.Record(scope, domusage.KindEmbeddingTokens, int64(tokens))
}

// Wait blocks until pending Record writes finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report builds the scope's usage for the current month.
func (s *Service) Report(ctx context.Context, scope domain.Scope) (domusage.Report, error) {
	now := s.now()
	used, err := s.counters.GetMany(ctx, scope.OrgID, domusage.Kinds, now)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("read usage: %w", err)
	}
	meters := make([]domusage.Meter, 0, len(domusage.Kinds))
	for _, k := range domusage.Kinds {
		meters = append(meters, domusage.NewMeter(k, used[k], s.limit(scope.Plan, k)))
	}
	start, end := domusage.MonthBounds(now)
	return domusage.NewReport(scope.Plan, start, end, meters), nil
}
