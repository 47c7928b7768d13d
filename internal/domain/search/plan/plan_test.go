package plan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/mode"
)

func TestNormalize_Defaults(t *testing.T) {
	p := Normalize(nil)

	if p.Intent != SearchArticles {
		t.Errorf("intent: got %q", p.Intent)
	}
	if p.TopK != DefaultTopK || p.PerSite != DefaultPerSite {
		t.Errorf("paging: topK=%d perSite=%d", p.TopK, p.PerSite)
	}
	if p.Mode != mode.Lexical || p.ModeExplicit {
		t.Errorf("mode: %q explicit=%v", p.Mode, p.ModeExplicit)
	}
	if p.QueryText != DefaultQueryText || p.QuerySource != SourceDefault {
		t.Errorf("query: %q from %q", p.QueryText, p.QuerySource)
	}
	if p.ReturnIndex != Articles {
		t.Errorf("return index: %q", p.ReturnIndex)
	}
	if !reflect.DeepEqual(p.ReturnFields, DefaultArticleFields) {
		t.Errorf("return fields: %v", p.ReturnFields)
	}
	if p.Sort != (Sort{By: "published_at", Order: Desc}) {
		t.Errorf("sort: %+v", p.Sort)
	}
	if !p.Filters.IsEmpty() {
		t.Errorf("filters: %+v", p.Filters)
	}
}

func TestNormalize_TopK(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"absent", nil, 5},
		{"valid", float64(12), 12},
		{"clamped", float64(500), 50},
		{"zero", float64(0), 5},
		{"negative", float64(-3), 5},
		{"fractional", 2.5, 5},
		{"string", "10", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(map[string]any{"topK": tt.in})
			if p.TopK != tt.want {
				t.Errorf("got %d, want %d", p.TopK, tt.want)
			}
		})
	}
}

func TestNormalize_Mode(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		want     mode.Mode
		explicit bool
	}{
		{"explicit lexical beats semantic", map[string]any{"mode": "lexical", "semantic": true}, mode.Lexical, true},
		{"explicit hybrid", map[string]any{"mode": "hybrid"}, mode.Hybrid, true},
		{"semantic flag", map[string]any{"semantic": true}, mode.Hybrid, false},
		{"semantic string", map[string]any{"semantic": "true"}, mode.Hybrid, false},
		{"semantic false", map[string]any{"semantic": false}, mode.Lexical, false},
		{"unknown mode falls through", map[string]any{"mode": "geo", "semantic": 1.0}, mode.Hybrid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.raw)
			if p.Mode != tt.want || p.ModeExplicit != tt.explicit {
				t.Errorf("got %q explicit=%v, want %q explicit=%v", p.Mode, p.ModeExplicit, tt.want, tt.explicit)
			}
		})
	}
}

func TestNormalize_QueryText(t *testing.T) {
	tests := []struct {
		name   string
		raw    map[string]any
		want   string
		source QuerySource
	}{
		{"phrase wins", map[string]any{"phrase": "“pau i justícia”", "keywords": "pau"}, "pau i justícia", SourcePhrase},
		{"angled quotes", map[string]any{"phrase": "«Sant Jordi»"}, "Sant Jordi", SourcePhrase},
		{"keywords", map[string]any{"keywords": "  bisbat girona "}, "bisbat girona", SourceKeywords},
		{"blank phrase", map[string]any{"phrase": "  ", "keywords": "x"}, "x", SourceKeywords},
		{"fallback", map[string]any{"keywords": ""}, DefaultQueryText, SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(tt.raw)
			if p.QueryText != tt.want || p.QuerySource != tt.source {
				t.Errorf("got %q (%s), want %q (%s)", p.QueryText, p.QuerySource, tt.want, tt.source)
			}
		})
	}
}

func TestNormalize_ReturnChunks(t *testing.T) {
	p := Normalize(map[string]any{"intent": "search_chunks"})
	if p.ReturnIndex != Chunks {
		t.Fatalf("return index: %q", p.ReturnIndex)
	}
	if !reflect.DeepEqual(p.ReturnFields, DefaultChunkFields) {
		t.Errorf("return fields: %v", p.ReturnFields)
	}
}

func TestNormalize_ReturnFieldsDeduplicated(t *testing.T) {
	p := Normalize(map[string]any{
		"return": map[string]any{"index": "articles", "fields": []any{"title", "url", "title", " "}},
	})
	if !reflect.DeepEqual(p.ReturnFields, []string{"title", "url"}) {
		t.Errorf("got %v", p.ReturnFields)
	}
}

func TestNormalize_DefaultFieldsNotShared(t *testing.T) {
	p := Normalize(nil)
	p.ReturnFields[0] = "mutated"
	if DefaultArticleFields[0] != "title" {
		t.Fatal("default field list was mutated through a plan")
	}
}

func TestNormalize_FiltersAndSort(t *testing.T) {
	p := Normalize(map[string]any{
		"intent":   "latest_by_site",
		"per_site": float64(3),
		"filters":  map[string]any{"site": []any{"ara", ""}, "lang": []any{}},
		"sort":     map[string]any{"by": "indexed_at", "order": "ASC"},
	})
	if p.PerSite != 3 {
		t.Errorf("per site: %d", p.PerSite)
	}
	if !reflect.DeepEqual(p.Filters.Site, []string{"ara"}) || p.Filters.Lang != nil {
		t.Errorf("filters: %+v", p.Filters)
	}
	if p.Sort != (Sort{By: "indexed_at", Order: Asc}) {
		t.Errorf("sort: %+v", p.Sort)
	}
}

func TestPhraseMatch(t *testing.T) {
	if !Normalize(map[string]any{"phrase": "x"}).PhraseMatch() {
		t.Error("phrase source should request phrase matching")
	}
	if !Normalize(map[string]any{"keywords": "x", "exact_phrase": true}).PhraseMatch() {
		t.Error("exact phrase flag should request phrase matching")
	}
	if Normalize(map[string]any{"keywords": "x"}).PhraseMatch() {
		t.Error("keywords should use best-match")
	}
}

func TestIntent(t *testing.T) {
	for _, i := range Intents {
		if err := i.Validate(); err != nil {
			t.Errorf("%q: unexpected error %v", i, err)
		}
	}
	err := Intent("translate").Validate()
	if !errors.Is(err, domain.ErrUnsupportedIntent) {
		t.Fatalf("expected ErrUnsupportedIntent, got %v", err)
	}
	if !FilterOnlyChunks.IsPureListing() || SearchArticles.IsPureListing() {
		t.Error("IsPureListing mismatch")
	}
	if !CompareViewpoints.WantsContext() || SearchChunks.WantsContext() {
		t.Error("WantsContext mismatch")
	}
}

func TestFromJSON(t *testing.T) {
	p, err := FromJSON([]byte(`{"intent":"summarize","topK":8,"semantic":true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Intent != Summarize || p.TopK != 8 || p.Mode != mode.Hybrid {
		t.Errorf("unexpected plan %+v", p)
	}

	if _, err := FromJSON([]byte(`[1,2]`)); !errors.Is(err, domain.ErrInvalidPlan) {
		t.Errorf("expected ErrInvalidPlan, got %v", err)
	}
}
