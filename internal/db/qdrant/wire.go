package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
)

// Filter is a Qdrant boolean filter.
type Filter struct {
	Must []Condition `json:"must"`
}

// Condition is either a field condition or a nested should-filter.
type Condition struct {
	Key    string      `json:"key,omitempty"`
	Match  *MatchAny   `json:"match,omitempty"`
	Range  *Range      `json:"range,omitempty"`
	Should []Condition `json:"should,omitempty"`
}

// MatchAny matches when the field equals any of the values.
type MatchAny struct {
	Any []string `json:"any"`
}

// Range is an inclusive numeric range.
type Range struct {
	GTE *int64 `json:"gte,omitempty"`
	LTE *int64 `json:"lte,omitempty"`
}

// SearchParams tunes the ANN search.
type SearchParams struct {
	HNSWEf      int  `json:"hnsw_ef"`
	Exact       bool `json:"exact"`
	IndexedOnly bool `json:"indexed_only"`
}

// SearchBody is the POST /points/search payload.
type SearchBody struct {
	Vector       []float32    `json:"vector"`
	Limit        int          `json:"limit"`
	WithPayload  bool         `json:"with_payload"`
	WithVectors  bool         `json:"with_vectors"`
	SearchParams SearchParams `json:"search_params"`
	Filter       *Filter      `json:"filter,omitempty"`
}

// ScrollBody is the POST /points/scroll payload. Offset nil starts from the first page.
type ScrollBody struct {
	Filter      *Filter `json:"filter,omitempty"`
	WithPayload bool    `json:"with_payload"`
	Limit       int     `json:"limit"`
	Offset      any     `json:"offset"`
}

type wirePoint struct {
	ID      json.RawMessage `json:"id"`
	Score   *float64        `json:"score"`
	Payload map[string]any  `json:"payload"`
}

type wirePage struct {
	ScoredPoints []wirePoint `json:"scored_points"`
	Points       []wirePoint `json:"points"`
}

// Decode accepts a flat list of points or an object exposing scored_points or
// points, optionally wrapped in a top-level "result".
func Decode(data []byte) ([]result.Raw, error) {
	body := bytes.TrimSpace(data)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '{' {
		var env struct {
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode qdrant response: %w", err)
		}
		if trimmed := bytes.TrimSpace(env.Result); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			body = trimmed
		}
	}

	var points []wirePoint
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &points); err != nil {
			return nil, fmt.Errorf("decode qdrant points: %w", err)
		}
	case '{':
		var page wirePage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode qdrant page: %w", err)
		}
		points = page.ScoredPoints
		if points == nil {
			points = page.Points
		}
	default:
		return nil, fmt.Errorf("decode qdrant response: unexpected %q", body[0])
	}

	out := make([]result.Raw, 0, len(points))
	for _, p := range points {
		raw := result.Raw{ID: pointID(p.ID), Payload: p.Payload}
		if p.Score != nil {
			raw.Score = *p.Score
		}
		out = append(out, raw)
	}
	return out, nil
}

// pointID renders numeric and UUID ids alike as strings.
func pointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		if s, err := strconv.Unquote(string(raw)); err == nil {
			return s
		}
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
