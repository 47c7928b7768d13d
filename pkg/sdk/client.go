package newsrank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/newsrank/internal/db/opensearch"
	"github.com/kailas-cloud/newsrank/internal/db/qdrant"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
	"github.com/kailas-cloud/newsrank/internal/transport/httpexec"
	healthuc "github.com/kailas-cloud/newsrank/internal/usecase/health"
	"github.com/kailas-cloud/newsrank/internal/usecase/planner"
	searchuc "github.com/kailas-cloud/newsrank/internal/usecase/search"
)

// searchUseCase is the internal interface for planning and searching.
type searchUseCase interface {
	Plan(ctx context.Context, q searchuc.Query) (searchuc.Planned, error)
	Search(ctx context.Context, q searchuc.Query) (Response, error)
}

// Client is the embedded newsrank entry point. It is safe for concurrent use.
type Client struct {
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. At least one of WithOpenSearch or WithQdrant is required.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	var backends []planner.Backend
	if cfg.opensearch != nil {
		backends = append(backends, opensearch.New(*cfg.opensearch))
	}
	if cfg.qdrant != nil {
		backends = append(backends, qdrant.New(*cfg.qdrant))
	}
	if len(backends) == 0 {
		return nil, errors.New("newsrank: backend required (use WithOpenSearch or WithQdrant)")
	}
	p, err := planner.New(backends...)
	if err != nil {
		return nil, fmt.Errorf("newsrank: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(p, cfg, obs), nil
}

func wireClient(p *planner.Planner, cfg *clientConfig, obs *observer) *Client {
	var execOpts []httpexec.Option
	if cfg.httpClient != nil {
		execOpts = append(execOpts, httpexec.WithHTTPClient(cfg.httpClient))
	}
	maxParallel := cfg.maxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	exec := httpexec.New(httpexec.Config{
		Timeout:     cfg.timeout,
		MaxParallel: maxParallel,
		RatePerSec:  cfg.ratePerSec,
		Burst:       cfg.burst,
	}, execOpts...)

	scorer := result.DefaultScorer()
	if cfg.scoring {
		halfLife := cfg.halfLifeHours
		if halfLife <= 0 {
			halfLife = result.DefaultHalfLifeHours
		}
		scorer = result.NewScorer(halfLife, cfg.recencyBias)
	}

	// Interfaces stay untyped nil without an embedder.
	var (
		embed     searchuc.Embedder
		embHealth healthuc.EmbeddingChecker
	)
	if cfg.embedder != nil {
		a := &embedderAdapter{inner: cfg.embedder}
		embed, embHealth = a, a
	}

	var probes []healthuc.Backend
	for _, b := range p.Backends() {
		hb := healthuc.Backend{Name: b.Name(), URL: b.BaseURL()}
		if a, ok := b.(interface{ AuthHeader() map[string]string }); ok {
			hb.Header = a.AuthHeader()
		}
		probes = append(probes, hb)
	}

	return &Client{
		searchSvc: searchuc.New(p, exec, embed, scorer),
		healthSvc: healthuc.New(exec, probes, nil, embHealth),
		obs:       obs,
	}
}

// PlanRaw normalizes a loosely typed plan and returns the backend requests it
// expands to, without executing them.
func (c *Client) PlanRaw(ctx context.Context, raw map[string]any, embedding []float32) (Planned, error) {
	return c.plan(ctx, searchuc.Query{Plan: plan.Normalize(raw), Embedding: embedding})
}

// SearchRaw normalizes a loosely typed plan, executes it and returns ranked hits.
func (c *Client) SearchRaw(ctx context.Context, raw map[string]any, embedding []float32) (Response, error) {
	return c.search(ctx, searchuc.Query{Plan: plan.Normalize(raw), Embedding: embedding})
}

// Query starts a fluent plan builder.
func (c *Client) Query() *QueryBuilder {
	return &QueryBuilder{client: c, filters: map[string]any{}}
}

func (c *Client) plan(ctx context.Context, q searchuc.Query) (_ Planned, err error) {
	start := time.Now()
	defer func() { c.obs.observe("plan", start, err) }()

	out, err := c.searchSvc.Plan(ctx, q)
	if err != nil {
		return Planned{}, fmt.Errorf("newsrank: %w", err)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, q searchuc.Query) (_ Response, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	resp, err := c.searchSvc.Search(ctx, q)
	if err != nil {
		return Response{}, fmt.Errorf("newsrank: %w", err)
	}
	return resp, nil
}
