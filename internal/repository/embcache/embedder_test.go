package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/db"
	"github.com/kailas-cloud/newsrank/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var gotTTL time.Duration
	var setCalled bool
	ms.setFn = func(_ context.Context, _ string, _ []byte, ttl time.Duration) error {
		setCalled = true
		gotTTL = ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 {
		t.Fatalf("expected TotalTokens=10, got %d", result.TotalTokens)
	}
	if !setCalled {
		t.Fatal("expected SET to be called for cache put")
	}
	if gotTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", gotTTL)
	}
	if ce.Len() != 1 {
		t.Errorf("expected local tier to hold 1 vector, got %d", ce.Len())
	}
}

func TestEmbed_RedisHitPopulatesLRU(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	gets := 0
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		gets++
		return cached, nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 {
		t.Fatalf("expected TotalTokens=0 on cache hit, got %d", result.TotalTokens)
	}

	if _, err := ce.Embed(context.Background(), "test text"); err != nil {
		t.Fatalf("second embed: %v", err)
	}
	if gets != 1 {
		t.Errorf("expected second lookup served by LRU, store gets = %d", gets)
	}
	if inner.calls != 0 {
		t.Errorf("expected no inner calls, got %d", inner.calls)
	}
}

func TestEmbed_LRUHitSkipsInner(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}, TotalTokens: 3}}
	ce, _ := newTestCachedEmbedder(t, inner)

	for range 3 {
		if _, err := ce.Embed(context.Background(), "barcelona"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestEmbed_KeyIgnoresSurroundingSpace(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{})
	if ce.cacheKey("  hola ") != ce.cacheKey("hola") {
		t.Error("expected trimmed text to share a key")
	}
	if ce.cacheKey("hola") == ce.cacheKey("adéu") {
		t.Error("expected distinct keys for distinct text")
	}
}

func TestEmbed_KeyIncludesModel(t *testing.T) {
	a, err := New(&mockEmbedder{}, nil, Options{Model: "m1"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(&mockEmbedder{}, nil, Options{Model: "m2"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.cacheKey("x") == b.cacheKey("x") {
		t.Error("expected model to change the cache key")
	}
	if len(a.cacheKey("x")) != len(DefaultKeyPrefix)+64 {
		t.Errorf("unexpected key shape: %s", a.cacheKey("x"))
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, _ := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "test text")
	if err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if ce.Len() != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreErrorsAreSoft(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, &db.Error{Op: db.OpGet, Err: errors.New("connection reset")}
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("readonly")
	}

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("store failures must not fail embedding: %v", err)
	}
	if result.Embedding[0] != 0.5 {
		t.Errorf("unexpected vector: %v", result.Embedding)
	}
}

func TestEmbed_CorruptStoreValue(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected fallback to inner, calls = %d", inner.calls)
	}
}

func TestEmbed_LRUOnly(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, err := New(inner, nil, Options{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if _, err := ce.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestEmbed_CacheMetrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"tier", "result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, err := New(inner, &mockKVStore{}, Options{}, counter, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	_, _ = ce.Embed(context.Background(), "x")
	_, _ = ce.Embed(context.Background(), "x")

	if got := testutil.ToFloat64(counter.WithLabelValues(tierLRU, "miss")); got != 1 {
		t.Errorf("lru miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues(tierLRU, "hit")); got != 1 {
		t.Errorf("lru hit = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues(tierRedis, "miss")); got != 1 {
		t.Errorf("redis miss = %v, want 1", got)
	}
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := bytesToVector([]byte{1}); err == nil {
		t.Error("expected error on truncated data")
	}
}
