// Package plan normalizes loosely typed retrieval requests into canonical plans.
package plan

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/mode"
)

// Plan limits and defaults.
const (
	DefaultTopK    = 5
	MaxTopK        = 50
	DefaultPerSite = 5
	// DefaultQueryText is used when the request carries neither a phrase nor keywords.
	DefaultQueryText = "notícies rellevants"
	DefaultSortField = "published_at"
)

// Intent is the requested retrieval behavior.
type Intent string

// Supported intents.
const (
	LatestBySite       Intent = "latest_by_site"
	SearchArticles     Intent = "search_articles"
	SearchChunks       Intent = "search_chunks"
	FilterOnlyArticles Intent = "filter_only_articles"
	FilterOnlyChunks   Intent = "filter_only_chunks"
	CompareViewpoints  Intent = "compare_viewpoints"
	Summarize          Intent = "summarize"
	Backgrounder       Intent = "backgrounder"
)

// Intents lists every supported intent.
var Intents = []Intent{
	LatestBySite, SearchArticles, SearchChunks, FilterOnlyArticles,
	FilterOnlyChunks, CompareViewpoints, Summarize, Backgrounder,
}

// IsValid checks if the intent is one of the supported values.
func (i Intent) IsValid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// IsPureListing reports intents ranked by recency alone.
func (i Intent) IsPureListing() bool {
	return i == LatestBySite || i == FilterOnlyArticles || i == FilterOnlyChunks
}

// WantsContext reports intents that attach a chunk context bundle.
func (i Intent) WantsContext() bool {
	return i == Summarize || i == Backgrounder || i == CompareViewpoints
}

// Validate returns an UnsupportedIntentError for unknown intents.
func (i Intent) Validate() error {
	if !i.IsValid() {
		return domain.NewUnsupportedIntent(string(i))
	}
	return nil
}

// ReturnIndex selects which index the caller wants projected.
type ReturnIndex string

// Return index values.
const (
	Articles ReturnIndex = "articles"
	Chunks   ReturnIndex = "chunks"
)

// QuerySource records where the query text came from.
type QuerySource string

// Query sources, in priority order.
const (
	SourcePhrase   QuerySource = "phrase"
	SourceKeywords QuerySource = "keywords"
	SourceDefault  QuerySource = "default"
)

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Sort is the backend-side ordering of listing requests.
type Sort struct {
	By    string `json:"by"`
	Order Order  `json:"order"`
}

// DefaultArticleFields is the projection for the articles index.
var DefaultArticleFields = []string{"title", "url", "published_at", "site", "author", "description"}

// DefaultChunkFields is the projection for the chunks index.
var DefaultChunkFields = []string{"url", "content", "chunk_ix", "published_at", "site", "lang", "author"}

// Plan is the canonical description of one retrieval request.
type Plan struct {
	Intent       Intent         `json:"intent"`
	Mode         mode.Mode      `json:"mode"`
	ModeExplicit bool           `json:"mode_explicit"`
	QueryText    string         `json:"query_text"`
	QuerySource  QuerySource    `json:"query_source"`
	ExactPhrase  bool           `json:"exact_phrase"`
	TopK         int            `json:"topK"`
	PerSite      int            `json:"per_site"`
	Filters      filter.Filters `json:"filters"`
	Sort         Sort           `json:"sort"`
	ReturnIndex  ReturnIndex    `json:"return_index"`
	ReturnFields []string       `json:"return_fields"`
}

// PhraseMatch reports whether lexical relevance should use phrase matching.
func (p Plan) PhraseMatch() bool {
	return p.QueryText != "" && (p.ExactPhrase || p.QuerySource == SourcePhrase)
}

// FromJSON decodes and normalizes a plan. Only non-object input is an error.
func FromJSON(data []byte) (Plan, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Plan{}, fmt.Errorf("%w: %w", domain.ErrInvalidPlan, err)
	}
	return Normalize(raw), nil
}

var quotes = regexp.MustCompile(`[“”«»"']`)

// Normalize coerces a loosely typed plan object into a canonical Plan.
// It never fails: missing or malformed fields fall back to defaults.
func Normalize(raw map[string]any) Plan {
	p := Plan{
		Intent:  Intent(str(first(raw, "intent"))),
		TopK:    DefaultTopK,
		PerSite: DefaultPerSite,
	}
	if p.Intent == "" {
		p.Intent = SearchArticles
	}

	if k, ok := positiveInt(first(raw, "topK", "top_k")); ok {
		p.TopK = min(max(k, 1), MaxTopK)
	}
	if n, ok := positiveInt(first(raw, "per_site", "perSite")); ok {
		p.PerSite = n
	}

	if m, ok := mode.Parse(str(first(raw, "mode"))); ok {
		p.Mode, p.ModeExplicit = m, true
	} else if truthy(first(raw, "semantic")) {
		p.Mode = mode.Hybrid
	} else {
		p.Mode = mode.Lexical
	}

	switch {
	case str(raw["phrase"]) != "":
		p.QueryText = strings.TrimSpace(quotes.ReplaceAllString(str(raw["phrase"]), ""))
		p.QuerySource = SourcePhrase
	case str(raw["keywords"]) != "":
		p.QueryText = str(raw["keywords"])
		p.QuerySource = SourceKeywords
	default:
		p.QueryText = DefaultQueryText
		p.QuerySource = SourceDefault
	}
	p.ExactPhrase = truthy(first(raw, "exact_phrase", "exactPhrase"))

	ret, _ := raw["return"].(map[string]any)
	p.ReturnIndex = ReturnIndex(str(first(ret, "index")))
	if p.ReturnIndex == "" {
		p.ReturnIndex = ReturnIndex(str(first(raw, "return_index", "returnIndex")))
	}
	if p.ReturnIndex != Articles && p.ReturnIndex != Chunks {
		p.ReturnIndex = Articles
		if p.Intent == SearchChunks {
			p.ReturnIndex = Chunks
		}
	}
	fields := fieldList(first(ret, "fields"))
	if len(fields) == 0 {
		fields = fieldList(first(raw, "return_fields", "returnFields"))
	}
	if len(fields) == 0 {
		fields = DefaultArticleFields
		if p.ReturnIndex == Chunks {
			fields = DefaultChunkFields
		}
		fields = append([]string(nil), fields...)
	}
	p.ReturnFields = fields

	p.Sort = Sort{By: DefaultSortField, Order: Desc}
	if s, ok := raw["sort"].(map[string]any); ok {
		if by := str(s["by"]); by != "" {
			p.Sort.By = by
		}
		if strings.EqualFold(str(s["order"]), string(Asc)) {
			p.Sort.Order = Asc
		}
	}

	f, _ := raw["filters"].(map[string]any)
	p.Filters = filter.FromMap(f)
	return p
}

func first(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func positiveInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		f = float64(n)
	default:
		return 0, false
	}
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return strings.TrimSpace(t) != ""
		}
		return b
	default:
		return true
	}
}

func fieldList(v any) []string {
	var items []string
	switch t := v.(type) {
	case string:
		items = []string{t}
	case []string:
		items = t
	case []any:
		for _, it := range t {
			items = append(items, str(it))
		}
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
