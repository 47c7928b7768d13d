package qdrant

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/filter"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
)

func newTestBackend() *Backend {
	return New(Config{URL: "http://qdrant:6333/", APIKey: "k"})
}

func TestSearch_Body(t *testing.T) {
	b := newTestBackend()
	d, err := b.Search(request.Query{
		Index:   plan.Chunks,
		Vector:  []float32{0.1, 0.2},
		Limit:   40,
		Filters: filter.Filters{Site: []string{"ara"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.URL != "http://qdrant:6333/collections/chunks/points/search" {
		t.Errorf("url: %s", d.URL)
	}
	if d.Header["api-key"] != "k" {
		t.Errorf("api key header missing: %v", d.Header)
	}
	if d.Operation != request.OpSearch || d.Limit != 40 || d.Index != plan.Chunks {
		t.Errorf("descriptor: %+v", d)
	}

	body, ok := d.Body.(SearchBody)
	if !ok {
		t.Fatalf("body type %T", d.Body)
	}
	if body.Limit != 40 || !body.WithPayload || body.WithVectors {
		t.Errorf("body flags: %+v", body)
	}
	if body.SearchParams.HNSWEf != DefaultHNSWEf {
		t.Errorf("hnsw_ef: %d", body.SearchParams.HNSWEf)
	}
	if body.Filter == nil || len(body.Filter.Must) != 1 || body.Filter.Must[0].Key != "site" {
		t.Errorf("filter: %+v", body.Filter)
	}
}

func TestSearch_RequiresVector(t *testing.T) {
	_, err := newTestBackend().Search(request.Query{Index: plan.Articles, Limit: 4})
	if !errors.Is(err, domain.ErrMissingEmbedding) {
		t.Fatalf("expected ErrMissingEmbedding, got %v", err)
	}
}

func TestSearch_NoAPIKey(t *testing.T) {
	b := New(Config{URL: "http://q"})
	d, err := b.Search(request.Query{Vector: []float32{1}, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.Header["api-key"]; ok {
		t.Error("api-key header should be absent")
	}
	if d.URL != "http://q/collections/articles/points/search" {
		t.Errorf("url: %s", d.URL)
	}
}

func TestScroll_JSONShape(t *testing.T) {
	d := newTestBackend().Scroll(request.Query{Index: plan.Articles, Limit: 10})
	data, err := json.Marshal(d.Body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"with_payload":true,"limit":10,"offset":null}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
	if !strings.HasSuffix(d.URL, "/collections/articles/points/scroll") {
		t.Errorf("url: %s", d.URL)
	}
}

func TestLatest_IsScroll(t *testing.T) {
	d := newTestBackend().Latest(request.Query{Index: plan.Articles, Limit: 15, Filters: filter.Filters{Site: []string{"x"}}})
	if d.Operation != request.OpLatest || !strings.HasSuffix(d.URL, "/points/scroll") {
		t.Errorf("descriptor: %+v", d)
	}
	if _, ok := d.Body.(ScrollBody); !ok {
		t.Errorf("body type %T", d.Body)
	}
}

func TestBuildFilter_Empty(t *testing.T) {
	if f := BuildFilter(filter.Filters{}); f != nil {
		t.Errorf("expected nil filter, got %+v", f)
	}
}

func TestBuildFilter_DateRange(t *testing.T) {
	f := BuildFilter(filter.Filters{Lang: []string{"ca", "es"}, DateFrom: "2024-01-01", DateTo: "2024-01-31"})
	if f == nil || len(f.Must) != 2 {
		t.Fatalf("expected 2 conditions, got %+v", f)
	}
	if got := f.Must[0].Match.Any; len(got) != 2 || got[0] != "ca" {
		t.Errorf("lang match: %v", got)
	}

	dates := f.Must[1]
	if len(dates.Should) != 2 {
		t.Fatalf("expected OR over two timestamp fields, got %+v", dates)
	}
	if dates.Should[0].Key != "published_at_ts" || dates.Should[1].Key != "indexed_at_ts" {
		t.Errorf("keys: %s %s", dates.Should[0].Key, dates.Should[1].Key)
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC).Unix()
	rng := dates.Should[0].Range
	if rng == nil || *rng.GTE != from || *rng.LTE != to {
		t.Errorf("range: %+v", rng)
	}

	data, _ := json.Marshal(f)
	if !strings.Contains(string(data), `{"should":[{"key":"published_at_ts"`) {
		t.Errorf("nested should not serialized: %s", data)
	}
}

func TestBuildFilter_OpenRange(t *testing.T) {
	f := BuildFilter(filter.Filters{DateTo: "2024-01-31"})
	rng := f.Must[0].Should[0].Range
	if rng.GTE != nil || rng.LTE == nil {
		t.Errorf("expected only lte, got %+v", rng)
	}
	data, _ := json.Marshal(rng)
	if strings.Contains(string(data), "gte") {
		t.Errorf("gte should be omitted: %s", data)
	}
}

func TestDecode_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat list", `[{"id":1,"score":0.5,"payload":{"title":"a"}}]`},
		{"result list", `{"result":[{"id":1,"score":0.5,"payload":{"title":"a"}}],"status":"ok"}`},
		{"scored_points", `{"scored_points":[{"id":1,"score":0.5,"payload":{"title":"a"}}]}`},
		{"points page", `{"result":{"points":[{"id":1,"score":0.5,"payload":{"title":"a"}}],"next_page_offset":null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := Decode([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(raws) != 1 {
				t.Fatalf("expected 1 point, got %d", len(raws))
			}
			if raws[0].ID != "1" || raws[0].Score != 0.5 || raws[0].Payload["title"] != "a" {
				t.Errorf("unexpected raw %+v", raws[0])
			}
		})
	}
}

func TestDecode_UUIDAndMissingScore(t *testing.T) {
	raws, err := Decode([]byte(`{"result":{"points":[{"id":"6f1c-uuid","payload":{"chunk_ix":0}}]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raws[0].ID != "6f1c-uuid" || raws[0].Score != 0 {
		t.Errorf("unexpected raw %+v", raws[0])
	}
}

func TestDecode_Errors(t *testing.T) {
	if raws, err := Decode(nil); err != nil || raws != nil {
		t.Errorf("empty body: %v %v", raws, err)
	}
	if _, err := Decode([]byte(`"nope"`)); err == nil {
		t.Error("expected error for scalar body")
	}
	if _, err := Decode([]byte(`{"result":`)); err == nil {
		t.Error("expected error for truncated body")
	}
}
