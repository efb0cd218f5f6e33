package memorag

import (
	"context"
	"time"
)

// Health checks the database and, when configured, the embedding cache.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:    string(report.Status),
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}
