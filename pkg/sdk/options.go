package newsrank

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/newsrank/internal/db/opensearch"
	"github.com/kailas-cloud/newsrank/internal/db/qdrant"
)

// OpenSearchConfig configures the keyword backend.
type OpenSearchConfig = opensearch.Config

// QdrantConfig configures the vector backend.
type QdrantConfig = qdrant.Config

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	opensearch *OpenSearchConfig
	qdrant     *QdrantConfig

	embedder Embedder

	httpClient  *http.Client
	timeout     time.Duration
	maxParallel int
	ratePerSec  float64
	burst       int

	scoring       bool
	halfLifeHours float64
	recencyBias   float64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithOpenSearch adds the keyword backend.
func WithOpenSearch(cfg OpenSearchConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.opensearch = &cfg
	})
}

// WithQdrant adds the vector backend. Hybrid plans go to it when configured.
func WithQdrant(cfg QdrantConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.qdrant = &cfg
	})
}

// WithEmbedder sets the query embedding provider.
// Without one, hybrid plans need a caller-supplied vector.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithHTTPClient replaces the pooled client used for backend requests.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithExecutor bounds backend calls: per-request timeout and concurrent requests.
// Defaults: 15s, 4.
func WithExecutor(timeout time.Duration, maxParallel int) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = timeout
		c.maxParallel = maxParallel
	})
}

// WithRateLimit caps outbound backend requests per second. Default: unlimited.
func WithRateLimit(perSec float64, burst int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ratePerSec = perSec
		c.burst = burst
	})
}

// WithScoring sets the recency half-life and the recency share of the
// combined score. Defaults: 36h, 0.35. Bias is clamped to [0, 0.9].
func WithScoring(halfLifeHours, recencyBias float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.scoring = true
		c.halfLifeHours = halfLifeHours
		c.recencyBias = recencyBias
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
