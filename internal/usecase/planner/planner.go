// Package planner turns a normalized plan into the set of backend requests it needs.
// Planning is a pure transform: nothing is executed here.
package planner

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/mode"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Over-fetch factors applied to the requested topK / per-site counts.
const (
	VectorOverFetch  = 4
	ListingOverFetch = 2
	LatestOverFetch  = 3
	PhraseOverFetch  = 2
	ContextGrouping  = 6
	contextMinTopK   = 10
	contextMinWindow = 20
)

// ErrNoBackend is returned when the planner is built without any backend.
var ErrNoBackend = errors.New("no search backend configured")

// Planner routes plans to a keyword or vector backend and sizes each request.
type Planner struct {
	keyword Backend
	vector  Backend
}

// New creates a Planner. Each backend is slotted by its Vector() capability;
// at least one is required.
func New(backends ...Backend) (*Planner, error) {
	p := &Planner{}
	for _, b := range backends {
		if b == nil {
			continue
		}
		if b.Vector() {
			p.vector = b
		} else {
			p.keyword = b
		}
	}
	if p.keyword == nil && p.vector == nil {
		return nil, ErrNoBackend
	}
	return p, nil
}

// Backends returns the configured backends, keyword first.
func (p *Planner) Backends() []Backend {
	var out []Backend
	if p.keyword != nil {
		out = append(out, p.keyword)
	}
	if p.vector != nil {
		out = append(out, p.vector)
	}
	return out
}

// NeedsEmbedding reports whether executing pl would run a vector search.
func (p *Planner) NeedsEmbedding(pl plan.Plan) bool {
	return p.backendFor(pl).Vector() && searches(pl.Intent)
}

// Plan builds the descriptor set for pl. Hybrid plans go to the vector backend
// when one is configured, everything else to the keyword backend.
//
// A vector backend without an embedding degrades to a recency listing, unless
// the caller explicitly asked for hybrid mode with query text: that is a
// MissingEmbeddingError.
func (p *Planner) Plan(pl plan.Plan, embedding []float32) ([]request.Descriptor, error) {
	if err := pl.Intent.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // typed domain error
	}

	b := p.backendFor(pl)
	if b.Vector() && searches(pl.Intent) && len(embedding) == 0 {
		if pl.ModeExplicit && pl.Mode == mode.Hybrid && pl.QueryText != "" {
			return nil, domain.NewMissingEmbedding(string(pl.Intent), pl.QueryText)
		}
		return []request.Descriptor{fallback(b, pl)}, nil
	}

	k := max(pl.TopK, 1)
	switch pl.Intent {
	case plan.LatestBySite:
		var out []request.Descriptor
		for _, site := range sitesOf(pl.Filters) {
			q := query(pl, plan.Articles, max(pl.PerSite, 1)*LatestOverFetch)
			q.Filters = pl.Filters.WithSite(site)
			out = append(out, primary(b.Latest(q), site))
		}
		return out, nil

	case plan.FilterOnlyArticles:
		return []request.Descriptor{primary(b.Scroll(query(pl, plan.Articles, k*ListingOverFetch)), "")}, nil

	case plan.FilterOnlyChunks:
		return []request.Descriptor{primary(b.Scroll(query(pl, plan.Chunks, k*ListingOverFetch)), "")}, nil

	case plan.SearchArticles:
		limit := pl.TopK
		if b.Vector() {
			limit = k * VectorOverFetch
		}
		d, err := search(b, query(pl, plan.Articles, limit), embedding, "")
		if err != nil {
			return nil, err
		}
		return []request.Descriptor{d}, nil

	case plan.SearchChunks:
		limit := pl.TopK
		if b.Vector() {
			limit = k * VectorOverFetch
			if pl.ExactPhrase {
				limit *= PhraseOverFetch
			}
		}
		d, err := search(b, query(pl, plan.Chunks, limit), embedding, "")
		if err != nil {
			return nil, err
		}
		return []request.Descriptor{d}, nil

	case plan.Summarize, plan.Backgrounder:
		d, err := search(b, query(pl, plan.Articles, k*VectorOverFetch), embedding, "")
		if err != nil {
			return nil, err
		}
		ctxd, err := contextRequest(b, pl, embedding)
		if err != nil {
			return nil, err
		}
		return []request.Descriptor{d, ctxd}, nil

	case plan.CompareViewpoints:
		var out []request.Descriptor
		for _, site := range sitesOf(pl.Filters) {
			q := query(pl, plan.Articles, k*VectorOverFetch)
			q.Filters = pl.Filters.WithSite(site)
			d, err := search(b, q, embedding, site)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		ctxd, err := contextRequest(b, pl, embedding)
		if err != nil {
			return nil, err
		}
		return append(out, ctxd), nil
	}
	return nil, domain.NewUnsupportedIntent(string(pl.Intent))
}

// Decode parses a response with the backend that produced its descriptor.
func (p *Planner) Decode(d request.Descriptor, body []byte) ([]result.Raw, error) {
	for _, b := range p.Backends() {
		if b.Name() == d.Backend {
			raws, err := b.Decode(body)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", d.Backend, d.Operation, err)
			}
			return raws, nil
		}
	}
	return nil, fmt.Errorf("decode: unknown backend %q", d.Backend)
}

// ContextLimit is the chunk window fetched for a context bundle.
func ContextLimit(topK int) int {
	return max(max(topK, contextMinTopK)*VectorOverFetch, contextMinWindow) * ContextGrouping * VectorOverFetch
}

func (p *Planner) backendFor(pl plan.Plan) Backend {
	if pl.Mode == mode.Hybrid && p.vector != nil {
		return p.vector
	}
	if p.keyword != nil {
		return p.keyword
	}
	return p.vector
}

// searches reports intents that rank by relevance rather than recency.
func searches(i plan.Intent) bool {
	switch i {
	case plan.SearchArticles, plan.SearchChunks, plan.Summarize, plan.Backgrounder, plan.CompareViewpoints:
		return true
	}
	return false
}

// fallback lists the newest matching records of the index the intent targets.
func fallback(b Backend, pl plan.Plan) request.Descriptor {
	index := plan.Articles
	if pl.Intent == plan.SearchChunks {
		index = plan.Chunks
	}
	return primary(b.Scroll(query(pl, index, max(pl.TopK, 1)*ListingOverFetch)), "")
}

func search(b Backend, q request.Query, embedding []float32, site string) (request.Descriptor, error) {
	if b.Vector() {
		q.Vector = embedding
	}
	d, err := b.Search(q)
	if err != nil {
		return request.Descriptor{}, fmt.Errorf("build %s search: %w", b.Name(), err)
	}
	return primary(d, site), nil
}

func contextRequest(b Backend, pl plan.Plan, embedding []float32) (request.Descriptor, error) {
	q := query(pl, plan.Chunks, ContextLimit(pl.TopK))
	if b.Vector() {
		q.Vector = embedding
	}
	d, err := b.Search(q)
	if err != nil {
		return request.Descriptor{}, fmt.Errorf("build %s context search: %w", b.Name(), err)
	}
	d.Role = request.Context
	return d, nil
}

func primary(d request.Descriptor, site string) request.Descriptor {
	d.Role = request.Primary
	d.Site = site
	return d
}

func query(pl plan.Plan, index plan.ReturnIndex, limit int) request.Query {
	fields := plan.DefaultArticleFields
	if index == plan.Chunks {
		fields = plan.DefaultChunkFields
	}
	if index == pl.ReturnIndex && len(pl.ReturnFields) > 0 {
		fields = pl.ReturnFields
	}
	return request.Query{
		Index:   index,
		Filters: pl.Filters,
		Text:    pl.QueryText,
		Phrase:  pl.PhraseMatch(),
		Limit:   limit,
		Sort:    pl.Sort,
		Fields:  fields,
	}
}

// sitesOf returns one entry per explicit site filter, or a single empty entry
// meaning "all sites".
func sitesOf(f filter.Filters) []string {
	if len(f.Site) == 0 {
		return []string{""}
	}
	return f.Site
}
