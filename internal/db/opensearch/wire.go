package opensearch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// SearchBody is the POST /{index}/_search payload.
type SearchBody struct {
	Size   int            `json:"size"`
	Query  Query          `json:"query"`
	Sort   []SortClause   `json:"sort,omitempty"`
	Source []string       `json:"_source,omitempty"`
	Aggs   map[string]any `json:"aggs,omitempty"`
}

// Query wraps the boolean query.
type Query struct {
	Bool BoolQuery `json:"bool"`
}

// BoolQuery holds filter (must) and relevance (should) clauses.
type BoolQuery struct {
	Must               []Clause `json:"must"`
	Should             []Clause `json:"should"`
	MinimumShouldMatch int      `json:"minimum_should_match"`
}

// Clause is a single query-DSL clause.
type Clause map[string]any

// SortClause maps a field to its sort options.
type SortClause map[string]SortSpec

// SortSpec is the per-field sort configuration.
type SortSpec struct {
	Order        string `json:"order"`
	UnmappedType string `json:"unmapped_type,omitempty"`
}

type wireHit struct {
	ID     string         `json:"_id"`
	Score  *float64       `json:"_score"`
	Source map[string]any `json:"_source"`
}

type wireHits struct {
	Hits []wireHit `json:"hits"`
}

type wireResponse struct {
	Hits         wireHits `json:"hits"`
	Aggregations struct {
		BySite struct {
			Buckets []struct {
				Key    string `json:"key"`
				Latest struct {
					Hits wireHits `json:"hits"`
				} `json:"latest"`
			} `json:"buckets"`
		} `json:"by_site"`
	} `json:"aggregations"`
}

// Decode flattens top-level hits and by-site bucket hits into raw points.
// Hits carrying only date strings get epoch fields derived from them.
func Decode(data []byte) ([]result.Raw, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var resp wireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode opensearch response: %w", err)
	}

	hits := resp.Hits.Hits
	for _, bucket := range resp.Aggregations.BySite.Buckets {
		hits = append(hits, bucket.Latest.Hits.Hits...)
	}

	out := make([]result.Raw, 0, len(hits))
	for _, h := range hits {
		payload := result.Payload(h.Source)
		if payload == nil {
			payload = result.Payload{}
		}
		deriveEpoch(payload, result.FieldPublishedAt, result.FieldPublishedAtTS)
		deriveEpoch(payload, result.FieldIndexedAt, result.FieldIndexedAtTS)
		raw := result.Raw{ID: h.ID, Payload: payload}
		if h.Score != nil {
			raw.Score = *h.Score
		}
		out = append(out, raw)
	}
	return out, nil
}

func deriveEpoch(p result.Payload, dateField, tsField string) {
	if _, ok := p.Int64(tsField); ok {
		return
	}
	s := p.String(dateField)
	if s == "" {
		return
	}
	if t, err := filter.ParseTime(s); err == nil {
		p[tsField] = float64(t.Unix())
	}
}
