package health

import (
	"context"
	"sync"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates no search backend is reachable.
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

// Check names for the optional components.
const (
	CheckCache     = "cache"
	CheckEmbedding = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Backend is a search backend to probe, keyed by its name in the report.
type Backend struct {
	Name   string
	URL    string
	Header map[string]string
}

// Service coordinates health checks.
type Service struct {
	prober    BackendProber
	backends  []Backend
	cache     DBPinger
	embedding EmbeddingChecker
}

// New creates a Service. cache and embedding can be nil.
func New(prober BackendProber, backends []Backend, cache DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{prober: prober, backends: backends, cache: cache, embedding: embedding}
}

// Check runs every component check concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult)
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := CheckOK
			if err := fn(ctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}

	for _, b := range s.backends {
		run(b.Name, func(ctx context.Context) error {
			return s.prober.Probe(ctx, b.URL, b.Header)
		})
	}
	if s.cache != nil {
		run(CheckCache, s.cache.Ping)
	}
	if s.embedding != nil {
		run(CheckEmbedding, s.embedding.HealthCheck)
	}
	wg.Wait()

	return Report{Status: s.status(checks), Checks: checks}
}

func (s *Service) status(checks map[string]CheckResult) Status {
	backendsDown := 0
	for _, b := range s.backends {
		if checks[b.Name] == CheckError {
			backendsDown++
		}
	}
	if len(s.backends) > 0 && backendsDown == len(s.backends) {
		return Unhealthy
	}
	for _, v := range checks {
		if v == CheckError {
			return Degraded
		}
	}
	return Healthy
}
