// Package qdrant builds vector-native search and scroll requests and decodes their responses.
package qdrant

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Name identifies this backend in descriptors.
const Name = "qdrant"

// DefaultHNSWEf is the search-time HNSW beam width.
const DefaultHNSWEf = 256

// Config holds the collection layout and search parameters.
type Config struct {
	URL                string
	ArticlesCollection string
	ChunksCollection   string
	APIKey             string
	HNSWEf             int
	Exact              bool
	IndexedOnly        bool
}

// Backend translates queries into Qdrant REST requests.
type Backend struct {
	cfg Config
}

// New creates a Backend. Empty collection names default to "articles" and "chunks".
func New(cfg Config) *Backend {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.ArticlesCollection == "" {
		cfg.ArticlesCollection = "articles"
	}
	if cfg.ChunksCollection == "" {
		cfg.ChunksCollection = "chunks"
	}
	if cfg.HNSWEf <= 0 {
		cfg.HNSWEf = DefaultHNSWEf
	}
	return &Backend{cfg: cfg}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// BaseURL returns the service root, used for health probes.
func (b *Backend) BaseURL() string { return b.cfg.URL }

// Vector reports that this backend ranks by embedding similarity.
func (b *Backend) Vector() bool { return true }

// Search builds a point search request. A query vector is mandatory.
func (b *Backend) Search(q request.Query) (request.Descriptor, error) {
	if len(q.Vector) == 0 {
		return request.Descriptor{}, fmt.Errorf("%w: vector search needs a query vector", domain.ErrMissingEmbedding)
	}
	body := SearchBody{
		Vector:      q.Vector,
		Limit:       q.Limit,
		WithPayload: true,
		WithVectors: false,
		SearchParams: SearchParams{
			HNSWEf:      b.cfg.HNSWEf,
			Exact:       b.cfg.Exact,
			IndexedOnly: b.cfg.IndexedOnly,
		},
		Filter: BuildFilter(q.Filters),
	}
	return b.descriptor(request.OpSearch, q, "search", body), nil
}

// Scroll builds a filter-only listing request.
func (b *Backend) Scroll(q request.Query) request.Descriptor {
	return b.descriptor(request.OpScroll, q, "scroll", b.scrollBody(q))
}

// Latest builds the per-site listing request. Qdrant has no grouping
// aggregation, so this is a scroll that the assembler groups by site.
func (b *Backend) Latest(q request.Query) request.Descriptor {
	return b.descriptor(request.OpLatest, q, "scroll", b.scrollBody(q))
}

// Decode parses a search or scroll response body.
func (b *Backend) Decode(data []byte) ([]result.Raw, error) {
	return Decode(data)
}

func (b *Backend) scrollBody(q request.Query) ScrollBody {
	return ScrollBody{
		Filter:      BuildFilter(q.Filters),
		WithPayload: true,
		Limit:       q.Limit,
	}
}

func (b *Backend) descriptor(op request.Operation, q request.Query, action string, body any) request.Descriptor {
	d := request.NewJSON(Name, op, b.pointsURL(q.Index, action), body)
	d.Index = q.Index
	d.Limit = q.Limit
	for k, v := range b.AuthHeader() {
		d.Header[k] = v
	}
	return d
}

// AuthHeader returns the api-key header, or nil when none is configured.
func (b *Backend) AuthHeader() map[string]string {
	if b.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"api-key": b.cfg.APIKey}
}

func (b *Backend) pointsURL(index plan.ReturnIndex, action string) string {
	collection := b.cfg.ArticlesCollection
	if index == plan.Chunks {
		collection = b.cfg.ChunksCollection
	}
	return fmt.Sprintf("%s/collections/%s/points/%s", b.cfg.URL, url.PathEscape(collection), action)
}

// BuildFilter translates sanitized filters into a Qdrant filter.
// List filters become match-any conditions; the date range is an OR over the
// published and indexed epochs since some records lack a publish date.
// Returns nil when nothing constrains the query.
func BuildFilter(f filter.Filters) *Filter {
	var must []Condition
	for _, l := range f.Lists() {
		must = append(must, Condition{Key: l.Field, Match: &MatchAny{Any: l.Values}})
	}

	if r := f.Range(); !r.IsEmpty() {
		rng := &Range{}
		if r.HasFrom {
			from := r.From
			rng.GTE = &from
		}
		if r.HasTo {
			to := r.To
			rng.LTE = &to
		}
		must = append(must, Condition{Should: []Condition{
			{Key: result.FieldPublishedAtTS, Range: rng},
			{Key: result.FieldIndexedAtTS, Range: rng},
		}})
	}

	if len(must) == 0 {
		return nil
	}
	return &Filter{Must: must}
}
