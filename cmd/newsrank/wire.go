package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/config"
	"github.com/kailas-cloud/newsrank/internal/db/opensearch"
	"github.com/kailas-cloud/newsrank/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/newsrank/internal/db/redis"
	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/metrics"
	"github.com/kailas-cloud/newsrank/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/newsrank/internal/transport/openai"
	healthuc "github.com/kailas-cloud/newsrank/internal/usecase/health"
	"github.com/kailas-cloud/newsrank/internal/usecase/planner"
)

// buildPlanner creates a backend per configured kind.
func buildPlanner(cfg config.Config) (*planner.Planner, error) {
	var backends []planner.Backend
	for _, kind := range cfg.Backend.Kinds {
		switch kind {
		case config.BackendOpenSearch:
			oc := cfg.Backend.OpenSearch
			backends = append(backends, opensearch.New(opensearch.Config{
				URL:           oc.URL,
				ArticlesIndex: oc.ArticlesIndex,
				ChunksIndex:   oc.ChunksIndex,
				Username:      oc.Username,
				Password:      oc.Password,
				ExactSubfield: oc.ExactSubfield,
			}))
		case config.BackendQdrant:
			qd := cfg.Backend.Qdrant
			backends = append(backends, qdrant.New(qdrant.Config{
				URL:                qd.URL,
				ArticlesCollection: qd.ArticlesCollection,
				ChunksCollection:   qd.ChunksCollection,
				APIKey:             qd.APIKey,
				HNSWEf:             qd.HNSWEf,
				Exact:              qd.Exact,
				IndexedOnly:        qd.IndexedOnly,
			}))
		}
	}
	p, err := planner.New(backends...)
	if err != nil {
		return nil, fmt.Errorf("build planner: %w", err)
	}
	return p, nil
}

// healthBackends lists every planner backend with its probe credentials.
func healthBackends(p *planner.Planner) []healthuc.Backend {
	type authenticated interface {
		AuthHeader() map[string]string
	}
	var out []healthuc.Backend
	for _, b := range p.Backends() {
		hb := healthuc.Backend{Name: b.Name(), URL: b.BaseURL()}
		if a, ok := b.(authenticated); ok {
			hb.Header = a.AuthHeader()
		}
		out = append(out, hb)
	}
	return out
}

// openCache connects the shared embedding cache. It returns nil when no
// address is configured.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (*dbRedis.Store, error) {
	if len(cfg.Addrs) == 0 {
		logger.Info("Embedding cache store disabled, using in-process LRU only")
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache store not ready: %w", err)
	}
	logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Addrs))
	return store, nil
}

// buildEmbedder assembles the query embedder chain: provider, cache, instruction.
// It returns nil when no API key is configured.
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) (domain.Embedder, error) {
	ec := cfg.Embedding
	if ec.APIKey == "" {
		logger.Info("Server-side embedding disabled, callers must supply vectors")
		return nil, nil
	}

	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Logger:     logger,
	})

	opts := embcache.Options{
		KeyPrefix: cfg.Cache.KeyPrefix,
		LRUSize:   cfg.Cache.LRUSize,
		TTL:       time.Duration(cfg.Cache.TTLHours) * time.Hour,
		Model:     ec.Model,
	}
	var cached *embcache.CachedEmbedder
	var err error
	if store != nil {
		cached, err = embcache.New(base, store, opts, metrics.EmbeddingCacheTotal, logger)
	} else {
		// Untyped nil: a nil *Store would make the interface non-nil.
		cached, err = embcache.New(base, nil, opts, metrics.EmbeddingCacheTotal, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}

	// Instruction prefix is outermost so the cache key includes it.
	if ec.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(cached, ec.QueryInstruction), nil
	}
	return cached, nil
}

// embeddingChecker adapts an optional embedder to the health contract.
func embeddingChecker(e domain.Embedder) healthuc.EmbeddingChecker {
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
