package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/newsrank/internal/db/opensearch"
	"github.com/kailas-cloud/newsrank/internal/db/qdrant"
	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
	"github.com/kailas-cloud/newsrank/internal/metrics"
	"github.com/kailas-cloud/newsrank/internal/usecase/planner"
)

func TestMain(m *testing.M) {
	metrics.RegisterSearchMetrics()
	os.Exit(m.Run())
}

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type mockExecutor struct {
	respond func(d request.Descriptor) string
	err     error
	got     []request.Descriptor
}

func (m *mockExecutor) ExecuteAll(_ context.Context, ds []request.Descriptor) ([]request.Response, error) {
	m.got = append(m.got, ds...)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]request.Response, len(ds))
	for i, d := range ds {
		out[i] = request.Response{Descriptor: d, Body: []byte(m.respond(d))}
	}
	return out, nil
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
	text   string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.called = true
	m.text = text
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: len(text)}, nil
}

// --- Helpers ---

func vectorPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	p, err := planner.New(qdrant.New(qdrant.Config{
		URL: "http://qd", ArticlesCollection: "articles", ChunksCollection: "chunks",
	}))
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return p
}

func keywordPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	p, err := planner.New(opensearch.New(opensearch.Config{URL: "http://os"}))
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return p
}

func newService(t *testing.T, p Planner, exec Executor, emb Embedder) *Service {
	t.Helper()
	return New(p, exec, emb, result.DefaultScorer(), WithClock(func() time.Time { return now }))
}

func article(id, site string, score float64, age time.Duration) string {
	return fmt.Sprintf(`{"id":%q,"score":%g,"payload":{"title":"t-%s","url":"https://%s/%s","site":%q,"published_at_ts":%d}}`,
		id, score, id, site, id, site, now.Add(-age).Unix())
}

func chunk(id, articleID string, ix int, score float64) string {
	return fmt.Sprintf(`{"id":%q,"score":%g,"payload":{"article_id":%q,"chunk_ix":%d,"content":"contingut %s","site":"vilaweb.cat","published_at_ts":%d}}`,
		id, score, articleID, ix, id, now.Add(-time.Hour).Unix())
}

func points(items ...string) string {
	return `{"result":[` + strings.Join(items, ",") + `]}`
}

func hitIDs(t *testing.T, body []byte) []string {
	t.Helper()
	var out struct {
		Hits []struct {
			ID string `json:"id"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	ids := make([]string, len(out.Hits))
	for i, h := range out.Hits {
		ids[i] = h.ID
	}
	return ids
}

// --- Tests ---

func TestSearch_UsesCallerEmbedding(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string {
		return points(article("old", "ara.cat", 0.9, 200*time.Hour), article("fresh", "ara.cat", 0.8, time.Hour))
	}}
	emb := &mockEmbedder{vec: []float32{9}}
	svc := newService(t, vectorPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_articles", "keywords": "pressupostos", "semantic": true, "topK": 2.0})
	resp, err := svc.Search(context.Background(), Query{Plan: pl, Embedding: []float32{0.1, 0.2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.called {
		t.Error("embedder must not be called when a vector is supplied")
	}
	if len(exec.got) != 1 || exec.got[0].Operation != request.OpSearch {
		t.Fatalf("expected one search request, got %+v", exec.got)
	}
	body, _ := json.Marshal(resp)
	ids := hitIDs(t, body)
	if len(ids) != 2 || ids[0] != "fresh" {
		t.Errorf("expected recency to lift fresh first, got %v", ids)
	}
}

func TestSearch_EmbedsHybridQuery(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string { return points() }}
	emb := &mockEmbedder{vec: []float32{0.5, 0.5}}
	svc := newService(t, vectorPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_chunks", "phrase": "“llei d'amnistia”", "mode": "hybrid"})
	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Search(ctx, Query{Plan: pl}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emb.called || emb.text != pl.QueryText {
		t.Fatalf("expected embedding of %q, got called=%v text=%q", pl.QueryText, emb.called, emb.text)
	}
	if !usage.Used || usage.TotalTokens != len(pl.QueryText) || usage.Fallback {
		t.Errorf("unexpected usage: %+v", usage)
	}
	sb, ok := exec.got[0].Body.(qdrant.SearchBody)
	if !ok {
		t.Fatalf("expected search body, got %T", exec.got[0].Body)
	}
	if len(sb.Vector) != 2 {
		t.Errorf("expected embedded vector in body, got %v", sb.Vector)
	}
}

func TestSearch_LexicalSkipsEmbedding(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string {
		return `{"hits":{"hits":[]}}`
	}}
	emb := &mockEmbedder{vec: []float32{1}}
	svc := newService(t, keywordPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_articles", "keywords": "eleccions", "semantic": true})
	if _, err := svc.Search(context.Background(), Query{Plan: pl}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.called {
		t.Error("keyword-only backends never need an embedding")
	}
}

func TestSearch_InferredHybridFallsBack(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string {
		return `{"result":{"points":[` + article("a", "ara.cat", 0, 48*time.Hour) + `,` + article("b", "ara.cat", 0, time.Hour) + `]}}`
	}}
	emb := &mockEmbedder{err: fmt.Errorf("%w: quota", domain.ErrEmbeddingProviderError)}
	svc := newService(t, vectorPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_articles", "keywords": "vaga", "semantic": true})
	before := testutil.ToFloat64(metrics.SearchFallbacksTotal.WithLabelValues("search_articles"))

	ctx, usage := domain.NewContextWithUsage(context.Background())
	resp, err := svc.Search(ctx, Query{Plan: pl})
	if err != nil {
		t.Fatalf("inferred hybrid must degrade, got %v", err)
	}
	if usage.Used || !usage.Fallback {
		t.Errorf("expected fallback without token usage, got %+v", usage)
	}
	if exec.got[0].Operation != request.OpScroll {
		t.Fatalf("expected scroll fallback, got %s", exec.got[0].Operation)
	}
	body, _ := json.Marshal(resp)
	if ids := hitIDs(t, body); len(ids) != 2 || ids[0] != "b" {
		t.Errorf("expected recency listing, got %v", ids)
	}
	after := testutil.ToFloat64(metrics.SearchFallbacksTotal.WithLabelValues("search_articles"))
	if after != before+1 {
		t.Errorf("expected fallback counter to increase, %v -> %v", before, after)
	}
}

func TestSearch_ExplicitHybridEmbeddingError(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string { return points() }}
	emb := &mockEmbedder{err: fmt.Errorf("%w: 503", domain.ErrEmbeddingProviderError)}
	svc := newService(t, vectorPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_articles", "keywords": "vaga", "mode": "hybrid"})
	_, err := svc.Search(context.Background(), Query{Plan: pl})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if len(exec.got) != 0 {
		t.Error("nothing must be executed after a failed explicit embedding")
	}
}

func TestSearch_ExplicitHybridWithoutEmbedder(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string { return points() }}
	svc := newService(t, vectorPlanner(t), exec, nil)

	pl := plan.Normalize(map[string]any{"intent": "search_chunks", "keywords": "vaga", "mode": "hybrid"})
	_, err := svc.Search(context.Background(), Query{Plan: pl})
	var me *domain.MissingEmbeddingError
	if !errors.As(err, &me) || me.Intent != "search_chunks" {
		t.Fatalf("expected MissingEmbeddingError, got %v", err)
	}
}

func TestSearch_UnsupportedIntent(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string { return points() }}
	svc := newService(t, vectorPlanner(t), exec, nil)

	before := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("unknown", "error"))
	pl := plan.Normalize(map[string]any{"intent": "horoscope"})
	_, err := svc.Search(context.Background(), Query{Plan: pl})
	if !errors.Is(err, domain.ErrUnsupportedIntent) {
		t.Fatalf("expected ErrUnsupportedIntent, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.SearchRequestsTotal.WithLabelValues("unknown", "error")); got != before+1 {
		t.Errorf("expected unknown/error counter to increase, got %v", got)
	}
}

func TestSearch_ExecutorError(t *testing.T) {
	exec := &mockExecutor{err: fmt.Errorf("%w: qdrant search returned 503", domain.ErrBackendUnavailable)}
	svc := newService(t, vectorPlanner(t), exec, nil)

	pl := plan.Normalize(map[string]any{"intent": "filter_only_articles"})
	_, err := svc.Search(context.Background(), Query{Plan: pl})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestSearch_DecodeError(t *testing.T) {
	exec := &mockExecutor{respond: func(request.Descriptor) string { return `{"result":` }}
	svc := newService(t, vectorPlanner(t), exec, nil)

	pl := plan.Normalize(map[string]any{"intent": "filter_only_chunks"})
	_, err := svc.Search(context.Background(), Query{Plan: pl})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestSearch_SummarizeSplitsContext(t *testing.T) {
	exec := &mockExecutor{respond: func(d request.Descriptor) string {
		if d.Role == request.Context {
			return points(chunk("c1", "a1", 0, 0.9), chunk("c2", "a1", 1, 0.8), chunk("c3", "a2", 0, 0.7))
		}
		return points(article("a1", "vilaweb.cat", 0.9, time.Hour), article("a2", "ara.cat", 0.7, time.Hour))
	}}
	svc := newService(t, vectorPlanner(t), exec, nil)

	pl := plan.Normalize(map[string]any{"intent": "summarize", "keywords": "sequera"})
	resp, err := svc.Search(context.Background(), Query{Plan: pl, Embedding: []float32{1, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.got) != 2 {
		t.Fatalf("expected primary + context requests, got %d", len(exec.got))
	}
	if resp.Context == nil {
		t.Fatal("expected a context bundle")
	}
	if len(resp.Context.Articles) != 2 || resp.Context.TotalChunks != 3 {
		t.Errorf("unexpected bundle: %+v", resp.Context)
	}
	if len(resp.Hits) != 2 {
		t.Errorf("expected 2 article hits, got %d", len(resp.Hits))
	}
}

func TestSearch_LatestBySiteGroups(t *testing.T) {
	exec := &mockExecutor{respond: func(d request.Descriptor) string {
		return `{"result":{"points":[` + article(d.Site+"-1", d.Site, 0, time.Hour) + `]}}`
	}}
	svc := newService(t, vectorPlanner(t), exec, nil)

	pl := plan.Normalize(map[string]any{
		"intent":  "latest_by_site",
		"filters": map[string]any{"site": []any{"ara.cat", "vilaweb.cat"}},
	})
	resp, err := svc.Search(context.Background(), Query{Plan: pl})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.got) != 2 {
		t.Fatalf("expected one request per site, got %d", len(exec.got))
	}
	if len(resp.Groups["ara.cat"]) != 1 || len(resp.Groups["vilaweb.cat"]) != 1 {
		t.Errorf("unexpected groups: %+v", resp.Groups)
	}
}

func TestPlan_DoesNotExecute(t *testing.T) {
	exec := &mockExecutor{}
	emb := &mockEmbedder{vec: []float32{1}}
	svc := newService(t, vectorPlanner(t), exec, emb)

	pl := plan.Normalize(map[string]any{"intent": "search_chunks", "keywords": "vaga", "semantic": true, "topK": 10.0})
	out, err := svc.Plan(context.Background(), Query{Plan: pl, Embedding: []float32{0.3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.got) != 0 || emb.called {
		t.Error("planning must not execute or embed")
	}
	if len(out.Requests) != 1 || out.Requests[0].Limit != 40 {
		t.Errorf("unexpected requests: %+v", out.Requests)
	}
	if out.Plan.Intent != plan.SearchChunks {
		t.Errorf("unexpected plan: %+v", out.Plan)
	}
}

func TestPlan_PropagatesErrors(t *testing.T) {
	svc := newService(t, vectorPlanner(t), &mockExecutor{}, nil)
	pl := plan.Normalize(map[string]any{"intent": "nope"})
	if _, err := svc.Plan(context.Background(), Query{Plan: pl}); !errors.Is(err, domain.ErrUnsupportedIntent) {
		t.Fatalf("expected ErrUnsupportedIntent, got %v", err)
	}
}
