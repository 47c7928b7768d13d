package newsrank

import (
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/usecase/assemble"
	searchuc "github.com/kailas-cloud/newsrank/internal/usecase/search"
)

// Intent is the requested retrieval behavior.
type Intent = plan.Intent

// Supported intents.
const (
	LatestBySite       = plan.LatestBySite
	SearchArticles     = plan.SearchArticles
	SearchChunks       = plan.SearchChunks
	FilterOnlyArticles = plan.FilterOnlyArticles
	FilterOnlyChunks   = plan.FilterOnlyChunks
	CompareViewpoints  = plan.CompareViewpoints
	Summarize          = plan.Summarize
	Backgrounder       = plan.Backgrounder
)

// Index names accepted by QueryBuilder.Return.
const (
	IndexArticles = plan.Articles
	IndexChunks   = plan.Chunks
)

type (
	// Plan is a normalized retrieval plan.
	Plan = plan.Plan
	// Request is one backend request a plan expands to.
	Request = request.Descriptor
	// Planned pairs a plan with its backend requests.
	Planned = searchuc.Planned
	// Response holds ranked hits, per-site groups for latest_by_site, and
	// an optional context bundle for summarization intents.
	Response = assemble.Response
	// Item is one ranked hit.
	Item = assemble.Item
	// Scores are the rounded ranking components of an Item.
	Scores = assemble.Scores
	// ContextBundle groups the best chunks per article.
	ContextBundle = assemble.Bundle
)
