package newsrank

import "github.com/kailas-cloud/newsrank/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnsupportedIntent      = domain.ErrUnsupportedIntent
	ErrMissingEmbedding       = domain.ErrMissingEmbedding
	ErrInvalidPlan            = domain.ErrInvalidPlan
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
