package search

import (
	"context"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Planner builds and decodes backend requests for a plan.
type Planner interface {
	NeedsEmbedding(pl plan.Plan) bool
	Plan(pl plan.Plan, embedding []float32) ([]request.Descriptor, error)
	Decode(d request.Descriptor, body []byte) ([]result.Raw, error)
}

// Executor runs a descriptor set and returns every response, in order.
type Executor interface {
	ExecuteAll(ctx context.Context, ds []request.Descriptor) ([]request.Response, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
