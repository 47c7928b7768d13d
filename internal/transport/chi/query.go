package chi

import (
	"fmt"
	"net/url"

	"github.com/oapi-codegen/runtime"
)

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Intent      *string  `json:"intent,omitempty"`
	Q           *string  `json:"q,omitempty"`
	Phrase      *string  `json:"phrase,omitempty"`
	Mode        *string  `json:"mode,omitempty"`
	Semantic    *bool    `json:"semantic,omitempty"`
	ExactPhrase *bool    `json:"exact_phrase,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
	PerSite     *int     `json:"per_site,omitempty"`
	Site        []string `json:"site,omitempty"`
	Lang        []string `json:"lang,omitempty"`
	Author      []string `json:"author,omitempty"`
	DateFrom    *string  `json:"date_from,omitempty"`
	DateTo      *string  `json:"date_to,omitempty"`
	Index       *string  `json:"index,omitempty"`
	Fields      []string `json:"fields,omitempty"`
}

// bindSearchParams binds form-style, exploded query parameters.
func bindSearchParams(q url.Values) (SearchParams, error) {
	var p SearchParams
	binds := []struct {
		name string
		dest any
	}{
		{"intent", &p.Intent},
		{"q", &p.Q},
		{"phrase", &p.Phrase},
		{"mode", &p.Mode},
		{"semantic", &p.Semantic},
		{"exact_phrase", &p.ExactPhrase},
		{"topK", &p.TopK},
		{"per_site", &p.PerSite},
		{"site", &p.Site},
		{"lang", &p.Lang},
		{"author", &p.Author},
		{"date_from", &p.DateFrom},
		{"date_to", &p.DateTo},
		{"index", &p.Index},
		{"fields", &p.Fields},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return SearchParams{}, fmt.Errorf("parameter %q: %w", b.name, err)
		}
	}
	return p, nil
}

// raw converts bound parameters into the loose plan shape plan.Normalize accepts.
func (p SearchParams) raw() map[string]any {
	out := map[string]any{}
	setStr := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setStr("intent", p.Intent)
	setStr("keywords", p.Q)
	setStr("phrase", p.Phrase)
	setStr("mode", p.Mode)
	if p.Semantic != nil {
		out["semantic"] = *p.Semantic
	}
	if p.ExactPhrase != nil {
		out["exact_phrase"] = *p.ExactPhrase
	}
	if p.TopK != nil {
		out["topK"] = float64(*p.TopK)
	}
	if p.PerSite != nil {
		out["per_site"] = float64(*p.PerSite)
	}

	filters := map[string]any{}
	setList := func(key string, v []string) {
		if len(v) > 0 {
			items := make([]any, len(v))
			for i, s := range v {
				items[i] = s
			}
			filters[key] = items
		}
	}
	setList("site", p.Site)
	setList("lang", p.Lang)
	setList("author", p.Author)
	if p.DateFrom != nil {
		filters["date_from"] = *p.DateFrom
	}
	if p.DateTo != nil {
		filters["date_to"] = *p.DateTo
	}
	if len(filters) > 0 {
		out["filters"] = filters
	}

	if p.Index != nil || len(p.Fields) > 0 {
		ret := map[string]any{}
		if p.Index != nil {
			ret["index"] = *p.Index
		}
		if len(p.Fields) > 0 {
			fields := make([]any, len(p.Fields))
			for i, f := range p.Fields {
				fields[i] = f
			}
			ret["fields"] = fields
		}
		out["return"] = ret
	}
	return out
}
