package newsrank

import (
	"context"
	"time"

	healthuc "github.com/kailas-cloud/newsrank/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health probes every configured backend and the embedder, if it supports it.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	var err error
	if report.Status != healthuc.Healthy {
		err = errUnhealthy(report.Status)
	}
	c.obs.observe("health", start, err)
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type errUnhealthy healthuc.Status

func (e errUnhealthy) Error() string { return "newsrank: health " + string(e) }
