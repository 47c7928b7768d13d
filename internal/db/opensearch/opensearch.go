// Package opensearch builds full-text query-DSL requests and decodes their responses.
package opensearch

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Name identifies this backend in descriptors.
const Name = "opensearch"

// Aggregation sizing for latest_by_site.
const (
	SiteBuckets = 50
	bySiteAgg   = "by_site"
	latestAgg   = "latest"
)

// Field boosts for article best-match relevance, short high-precision fields first.
var articleMatchFields = []string{"search_text_short^4", "title^3", "description^2", "content"}

// exactCapable lists filter fields indexed both analyzed and as an exact subfield.
var exactCapable = map[string]struct{}{
	filter.FieldSite:   {},
	filter.FieldAuthor: {},
	filter.FieldLang:   {},
}

// Config holds index names, credentials and the exact-subfield suffix.
type Config struct {
	URL           string
	ArticlesIndex string
	ChunksIndex   string
	Username      string
	Password      string
	// ExactSubfield is appended to site/author/lang for term filters ("keyword").
	// Empty means those fields are mapped as keywords directly.
	ExactSubfield string
}

// Backend translates queries into OpenSearch _search requests.
type Backend struct {
	cfg Config
}

// New creates a Backend. Index names default to the live aliases.
func New(cfg Config) *Backend {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.ArticlesIndex == "" {
		cfg.ArticlesIndex = "articles-live"
	}
	if cfg.ChunksIndex == "" {
		cfg.ChunksIndex = "chunks-live"
	}
	return &Backend{cfg: cfg}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return Name }

// BaseURL returns the cluster root, used for health probes.
func (b *Backend) BaseURL() string { return b.cfg.URL }

// Vector reports that ranking comes from full-text relevance.
func (b *Backend) Vector() bool { return false }

// Search builds a relevance query. Hits are sorted by score, then by date.
func (b *Backend) Search(q request.Query) (request.Descriptor, error) {
	body := b.baseBody(q)
	body.Query.Bool.Should = relevanceClauses(q)
	if len(body.Query.Bool.Should) > 0 {
		body.Query.Bool.MinimumShouldMatch = 1
	}
	body.Sort = append([]SortClause{{"_score": {Order: string(plan.Desc)}}}, body.Sort...)
	return b.descriptor(request.OpSearch, q, body), nil
}

// Scroll builds a filter-only listing sorted by date.
func (b *Backend) Scroll(q request.Query) request.Descriptor {
	return b.descriptor(request.OpScroll, q, b.baseBody(q))
}

// Latest builds a zero-size aggregation: buckets per exact site, each holding
// its newest hits.
func (b *Backend) Latest(q request.Query) request.Descriptor {
	body := b.baseBody(q)
	body.Size = 0
	body.Aggs = map[string]any{
		bySiteAgg: map[string]any{
			"terms": map[string]any{"field": b.exactField(filter.FieldSite), "size": SiteBuckets},
			"aggs": map[string]any{
				latestAgg: map[string]any{
					"top_hits": map[string]any{
						"size":    q.Limit,
						"sort":    body.Sort,
						"_source": body.Source,
					},
				},
			},
		},
	}
	body.Sort = nil
	body.Source = nil
	return b.descriptor(request.OpLatest, q, body)
}

// Decode parses hits and aggregation buckets.
func (b *Backend) Decode(data []byte) ([]result.Raw, error) {
	return Decode(data)
}

func (b *Backend) baseBody(q request.Query) SearchBody {
	return SearchBody{
		Size: q.Limit,
		Query: Query{Bool: BoolQuery{
			Must:   b.FilterClauses(q.Filters),
			Should: []Clause{},
		}},
		Sort:   []SortClause{dateSort(q.Sort)},
		Source: sourceFields(q.Index, q.Fields),
	}
}

func (b *Backend) descriptor(op request.Operation, q request.Query, body SearchBody) request.Descriptor {
	d := request.NewJSON(Name, op, b.searchURL(q.Index), body)
	d.Index = q.Index
	d.Limit = q.Limit
	for k, v := range b.AuthHeader() {
		d.Header[k] = v
	}
	return d
}

// AuthHeader returns the basic-auth header, or nil without credentials.
func (b *Backend) AuthHeader() map[string]string {
	if b.cfg.Username == "" {
		return nil
	}
	creds := base64.StdEncoding.EncodeToString([]byte(b.cfg.Username + ":" + b.cfg.Password))
	return map[string]string{"Authorization": "Basic " + creds}
}

func (b *Backend) searchURL(index plan.ReturnIndex) string {
	name := b.cfg.ArticlesIndex
	if index == plan.Chunks {
		name = b.cfg.ChunksIndex
	}
	return fmt.Sprintf("%s/%s/_search", b.cfg.URL, url.PathEscape(name))
}

// FilterClauses translates sanitized filters into must clauses: one terms
// clause per non-empty list, and a date range OR-ed over published and indexed dates.
func (b *Backend) FilterClauses(f filter.Filters) []Clause {
	must := []Clause{}
	for _, l := range f.Lists() {
		must = append(must, Clause{"terms": map[string]any{b.exactField(l.Field): l.Values}})
	}
	if r := f.Range(); !r.IsEmpty() {
		bounds := map[string]any{"format": "epoch_second"}
		if r.HasFrom {
			bounds["gte"] = r.From
		}
		if r.HasTo {
			bounds["lte"] = r.To
		}
		must = append(must, Clause{"bool": map[string]any{
			"should": []Clause{
				{"range": map[string]any{result.FieldPublishedAt: bounds}},
				{"range": map[string]any{result.FieldIndexedAt: bounds}},
			},
			"minimum_should_match": 1,
		}})
	}
	return must
}

func (b *Backend) exactField(field string) string {
	if _, ok := exactCapable[field]; ok && b.cfg.ExactSubfield != "" {
		return field + "." + b.cfg.ExactSubfield
	}
	return field
}

// relevanceClauses emits phrase matches when phrase matching is requested,
// else a weighted best-match over the text fields.
func relevanceClauses(q request.Query) []Clause {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []Clause{}
	}
	if q.Phrase {
		fields := []string{result.FieldTitle, result.FieldDescription}
		if q.Index == plan.Chunks {
			fields = []string{result.FieldContent}
		}
		clauses := make([]Clause, 0, len(fields))
		for _, f := range fields {
			clauses = append(clauses, Clause{"match_phrase": map[string]any{f: text}})
		}
		return clauses
	}
	fields := articleMatchFields
	if q.Index == plan.Chunks {
		fields = []string{result.FieldContent}
	}
	return []Clause{{"multi_match": map[string]any{
		"query":  text,
		"fields": fields,
		"type":   "best_fields",
	}}}
}

func dateSort(s plan.Sort) SortClause {
	by := s.By
	if by == "" {
		by = plan.DefaultSortField
	}
	order := s.Order
	if order == "" {
		order = plan.Desc
	}
	return SortClause{by: {Order: string(order), UnmappedType: "date"}}
}

// sourceFields returns the requested projection plus the fields scoring and
// grouping always read.
func sourceFields(index plan.ReturnIndex, requested []string) []string {
	required := []string{
		result.FieldSite, result.FieldURL, result.FieldPublishedAt, result.FieldIndexedAt,
		result.FieldPublishedAtTS, result.FieldIndexedAtTS, result.FieldTitle, result.FieldAuthor,
	}
	if index == plan.Chunks {
		required = append(required,
			result.FieldChunkIx, result.FieldContent, result.FieldArticleID, result.FieldDocID,
			result.FieldArticleTitle, result.FieldArticleDescription,
		)
	}
	seen := make(map[string]struct{}, len(requested)+len(required))
	out := make([]string, 0, len(requested)+len(required))
	for _, f := range append(append([]string{}, requested...), required...) {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
