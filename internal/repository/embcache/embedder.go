// Package embcache fronts the query embedder with an in-process LRU and a shared Redis tier.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/db"
	"github.com/kailas-cloud/newsrank/internal/domain"
)

// DefaultKeyPrefix namespaces cache keys in the shared store.
const DefaultKeyPrefix = "newsrank:emb_cache:"

const (
	tierLRU   = "lru"
	tierRedis = "redis"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options tunes the cache tiers. Zero values fall back to defaults.
type Options struct {
	KeyPrefix string
	LRUSize   int
	TTL       time.Duration
	// Model is folded into the key so a model switch never serves stale vectors.
	Model string
}

// CachedEmbedder caches embeddings in an LRU and, optionally, a key-value store.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	local      *lru.Cache[string, []float32]
	prefix     string
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. s may be nil to run with the LRU tier only.
// cacheTotal is a counter vec with labels "tier" and "result", passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*CachedEmbedder, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.LRUSize <= 0 {
		opts.LRUSize = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	local, err := lru.New[string, []float32](opts.LRUSize)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		local:      local,
		prefix:     opts.KeyPrefix,
		model:      opts.Model,
		ttl:        opts.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}, nil
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.local.Get(key); ok {
		c.incCache(tierLRU, "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache(tierLRU, "miss")

	if c.store != nil {
		if vec, ok := c.getFromStore(ctx, key); ok {
			c.incCache(tierRedis, "hit")
			c.local.Add(key, vec)
			return domain.EmbeddingResult{Embedding: vec}, nil
		}
		c.incCache(tierRedis, "miss")
	}

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.local.Add(key, result.Embedding)
	c.putToStore(ctx, key, result.Embedding)
	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Len reports the number of vectors held in the local tier.
func (c *CachedEmbedder) Len() int {
	return c.local.Len()
}

func (c *CachedEmbedder) incCache(tier, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(tier, result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.model + "\x00" + strings.TrimSpace(text)))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) getFromStore(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToStore(ctx context.Context, key string, vec []float32) {
	if c.store == nil {
		return
	}
	data := vectorToCacheBytes(vec)
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
