package assemble

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

const scoreDigits = 6

// Payload projections per hit kind.
var (
	ArticleFields = []string{
		result.FieldTitle, result.FieldURL, result.FieldSite, result.FieldAuthor, result.FieldPublishedAt,
	}
	ChunkFields = []string{
		result.FieldURL, result.FieldContent, result.FieldSite, result.FieldAuthor, result.FieldPublishedAt,
	}
)

// Scores carries the ranking components of an item, rounded for output.
type Scores struct {
	Vector   float64 `json:"vector"`
	Recency  float64 `json:"recency"`
	Combined float64 `json:"combined"`
}

// Item is one serialized hit.
type Item struct {
	ID      string         `json:"id"`
	Scores  Scores         `json:"scores"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is the assembled answer for one plan. Grouped intents fill
// Groups, the rest fill Hits.
type Response struct {
	Intent  plan.Intent
	Hits    []Item
	Groups  map[string][]Item
	Context *Bundle
}

// MarshalJSON emits {intent, groups, context?} for grouped responses and
// {intent, hits, context?} otherwise. Hits is never null.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Groups != nil {
		return json.Marshal(struct { //nolint:wrapcheck // plain struct encoding
			Intent  plan.Intent       `json:"intent"`
			Groups  map[string][]Item `json:"groups"`
			Context *Bundle           `json:"context,omitempty"`
		}{r.Intent, r.Groups, r.Context})
	}
	hits := r.Hits
	if hits == nil {
		hits = []Item{}
	}
	return json.Marshal(struct { //nolint:wrapcheck // plain struct encoding
		Intent  plan.Intent `json:"intent"`
		Hits    []Item      `json:"hits"`
		Context *Bundle     `json:"context,omitempty"`
	}{r.Intent, hits, r.Context})
}

// NewItem serializes a point with the given payload projection.
func NewItem(p *result.Point, fields []string) Item {
	return Item{
		ID: p.ID(),
		Scores: Scores{
			Vector:   round(p.VectorScore()),
			Recency:  round(p.RecencyWeight()),
			Combined: round(p.CombinedScore()),
		},
		Payload: project(p.Payload(), fields),
	}
}

func items(points []result.Point, fields []string) []Item {
	out := make([]Item, 0, len(points))
	for i := range points {
		out = append(out, NewItem(&points[i], fields))
	}
	return out
}

// project copies the requested fields, dropping empty values.
func project(p result.Payload, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := clean(p[f]); ok {
			out[f] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// clean trims strings and recursively drops nil, blank and empty values.
func clean(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			if c, ok := clean(nested); ok {
				out[k] = c
			}
		}
		return out, len(out) > 0
	case []any:
		out := make([]any, 0, len(t))
		for _, nested := range t {
			if c, ok := clean(nested); ok {
				out = append(out, c)
			}
		}
		return out, len(out) > 0
	default:
		return v, true
	}
}

func round(v float64) float64 {
	p := math.Pow10(scoreDigits)
	return math.Round(v*p) / p
}
