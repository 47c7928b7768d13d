package planner

import (
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Backend builds requests for one search engine family and decodes its responses.
type Backend interface {
	Name() string
	BaseURL() string
	// Vector reports whether relevance comes from embedding similarity.
	Vector() bool
	Search(q request.Query) (request.Descriptor, error)
	Scroll(q request.Query) request.Descriptor
	Latest(q request.Query) request.Descriptor
	Decode(data []byte) ([]result.Raw, error)
}
