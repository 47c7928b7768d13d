package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BackendProber checks that a search backend answers at its base URL.
type BackendProber interface {
	Probe(ctx context.Context, url string, header map[string]string) error
}
