package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const checkTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	check func(context.Context) error
	// critical components make the service unusable when down. The cache is not:
	// embedding lookups and usage accounting fail open without it.
	critical bool
}

// Service coordinates health checks.
type Service struct {
	components map[string]component
}

// New creates a Service. cache and embedding can be nil.
func New(db Pinger, cache Pinger, embedding EmbeddingChecker) *Service {
	components := map[string]component{"database": {check: db.Ping, critical: true}}
	if cache != nil {
		components["cache"] = component{check: cache.Ping}
	}
	if embedding != nil {
		components["embedding"] = component{check: embedding.HealthCheck, critical: true}
	}
	return &Service{components: components}
}

// Check runs all component checks concurrently. Any failed critical component makes
// the report Unhealthy; other failures make it Degraded.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var mu sync.Mutex
	checks := make(map[string]CheckResult, len(s.components))

	var g errgroup.Group
	for name, c := range s.components {
		g.Go(func() error {
			res := CheckOK
			if err := c.check(ctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for name, res := range checks {
		if res != CheckError {
			continue
		}
		if s.components[name].critical {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
