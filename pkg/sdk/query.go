package newsrank

import "context"

// QueryBuilder is a fluent builder for retrieval plans. Unset fields take the
// same defaults as a plan posted to the HTTP API.
type QueryBuilder struct {
	client    *Client
	intent    Intent
	keywords  string
	phrase    string
	exact     bool
	mode      string
	topK      int
	perSite   int
	filters   map[string]any
	index     string
	fields    []string
	embedding []float32
}

// Intent sets the retrieval intent. Default: search_articles.
func (b *QueryBuilder) Intent(i Intent) *QueryBuilder {
	b.intent = i
	return b
}

// Keywords sets free-text query terms.
func (b *QueryBuilder) Keywords(q string) *QueryBuilder {
	b.keywords = q
	return b
}

// Phrase sets a quoted phrase. It takes precedence over Keywords.
func (b *QueryBuilder) Phrase(p string) *QueryBuilder {
	b.phrase = p
	return b
}

// ExactPhrase requires phrase matching on the query text.
func (b *QueryBuilder) ExactPhrase() *QueryBuilder {
	b.exact = true
	return b
}

// Hybrid asks for vector retrieval blended with recency. Without an embedder
// or vector, this fails with ErrMissingEmbedding instead of degrading.
func (b *QueryBuilder) Hybrid() *QueryBuilder {
	b.mode = "hybrid"
	return b
}

// Lexical asks for backend full-text relevance only.
func (b *QueryBuilder) Lexical() *QueryBuilder {
	b.mode = "lexical"
	return b
}

// TopK sets the number of hits, clamped to [1, 50]. Default: 10.
func (b *QueryBuilder) TopK(n int) *QueryBuilder {
	b.topK = n
	return b
}

// PerSite sets hits per site for latest_by_site. Default: 5.
func (b *QueryBuilder) PerSite(n int) *QueryBuilder {
	b.perSite = n
	return b
}

// Sites restricts hits to the given sites.
func (b *QueryBuilder) Sites(sites ...string) *QueryBuilder {
	return b.list("site", sites)
}

// Langs restricts hits to the given language codes.
func (b *QueryBuilder) Langs(langs ...string) *QueryBuilder {
	return b.list("lang", langs)
}

// Authors restricts hits to the given authors.
func (b *QueryBuilder) Authors(authors ...string) *QueryBuilder {
	return b.list("author", authors)
}

// Since keeps hits published at or after date (any common date format).
func (b *QueryBuilder) Since(date string) *QueryBuilder {
	b.filters["date_from"] = date
	return b
}

// Until keeps hits published at or before date.
func (b *QueryBuilder) Until(date string) *QueryBuilder {
	b.filters["date_to"] = date
	return b
}

// Return selects the projected index and payload fields.
func (b *QueryBuilder) Return(index string, fields ...string) *QueryBuilder {
	b.index = index
	b.fields = fields
	return b
}

// Embedding supplies the query vector, skipping the embedder.
func (b *QueryBuilder) Embedding(vec []float32) *QueryBuilder {
	b.embedding = vec
	return b
}

// Do executes the plan.
func (b *QueryBuilder) Do(ctx context.Context) (Response, error) {
	return b.client.SearchRaw(ctx, b.Raw(), b.embedding)
}

// Plan returns the backend requests without executing them.
func (b *QueryBuilder) Plan(ctx context.Context) (Planned, error) {
	return b.client.PlanRaw(ctx, b.Raw(), b.embedding)
}

// Raw returns the plan in the loosely typed shape the HTTP API accepts.
func (b *QueryBuilder) Raw() map[string]any {
	raw := map[string]any{}
	if b.intent != "" {
		raw["intent"] = string(b.intent)
	}
	if b.keywords != "" {
		raw["keywords"] = b.keywords
	}
	if b.phrase != "" {
		raw["phrase"] = b.phrase
	}
	if b.exact {
		raw["exact_phrase"] = true
	}
	if b.mode != "" {
		raw["mode"] = b.mode
	}
	if b.topK > 0 {
		raw["topK"] = b.topK
	}
	if b.perSite > 0 {
		raw["per_site"] = b.perSite
	}
	if len(b.filters) > 0 {
		filters := make(map[string]any, len(b.filters))
		for k, v := range b.filters {
			filters[k] = v
		}
		raw["filters"] = filters
	}
	if b.index != "" || len(b.fields) > 0 {
		ret := map[string]any{}
		if b.index != "" {
			ret["index"] = b.index
		}
		if len(b.fields) > 0 {
			ret["fields"] = append([]string(nil), b.fields...)
		}
		raw["return"] = ret
	}
	return raw
}

func (b *QueryBuilder) list(key string, values []string) *QueryBuilder {
	if len(values) > 0 {
		b.filters[key] = append([]string(nil), values...)
	}
	return b
}
