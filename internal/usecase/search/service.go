// Package search runs a plan end to end: embed, plan, execute, score, assemble.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/mode"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
	"github.com/kailas-cloud/newsrank/internal/logger"
	"github.com/kailas-cloud/newsrank/internal/metrics"
	"github.com/kailas-cloud/newsrank/internal/usecase/assemble"
)

// Query is one retrieval request: a normalized plan plus an optional
// caller-supplied query vector.
type Query struct {
	Plan      plan.Plan
	Embedding []float32
}

// Planned is the descriptor set a plan expands to, nothing executed.
type Planned struct {
	Plan     plan.Plan            `json:"plan"`
	Requests []request.Descriptor `json:"requests"`
}

// Service executes retrieval plans against the configured backends.
type Service struct {
	planner Planner
	exec    Executor
	embed   Embedder
	scorer  result.Scorer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for recency weights.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a search service. embed can be nil when callers always
// supply vectors or only keyword backends are configured.
func New(p Planner, exec Executor, embed Embedder, scorer result.Scorer, opts ...Option) *Service {
	s := &Service{planner: p, exec: exec, embed: embed, scorer: scorer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan returns the descriptors q would execute. It never embeds or calls a backend.
func (s *Service) Plan(_ context.Context, q Query) (Planned, error) {
	ds, err := s.planner.Plan(q.Plan, q.Embedding)
	if err != nil {
		return Planned{}, fmt.Errorf("plan: %w", err)
	}
	return Planned{Plan: q.Plan, Requests: ds}, nil
}

// Search executes q and assembles the per-intent response.
func (s *Service) Search(ctx context.Context, q Query) (assemble.Response, error) {
	start := time.Now()
	label := intentLabel(q.Plan.Intent)

	resp, err := s.search(ctx, q)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(label, status).Inc()
	metrics.SearchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return resp, err
}

func (s *Service) search(ctx context.Context, q Query) (assemble.Response, error) {
	log := logger.FromContext(ctx)
	pl := q.Plan

	vec, err := s.embedding(ctx, q)
	if err != nil {
		return assemble.Response{}, err
	}

	ds, err := s.planner.Plan(pl, vec)
	if err != nil {
		return assemble.Response{}, fmt.Errorf("plan: %w", err)
	}

	resps, err := s.exec.ExecuteAll(ctx, ds)
	if err != nil {
		return assemble.Response{}, fmt.Errorf("execute: %w", err)
	}

	now := s.now()
	in := assemble.Input{Plan: pl}
	for _, r := range resps {
		raws, err := s.planner.Decode(r.Descriptor, r.Body)
		if err != nil {
			return assemble.Response{}, fmt.Errorf("%w: decode %s response: %w",
				domain.ErrBackendUnavailable, r.Descriptor.Backend, err)
		}
		points := s.scorer.ScoreAll(raws, now)
		if r.Descriptor.Role == request.Context {
			in.Context = append(in.Context, points...)
			continue
		}
		in.Primary = append(in.Primary, points...)
		if r.Descriptor.Operation == request.OpScroll {
			in.Listing = true
		}
	}

	if in.Listing && !pl.Intent.IsPureListing() {
		metrics.SearchFallbacksTotal.WithLabelValues(string(pl.Intent)).Inc()
		domain.UsageFromContext(ctx).MarkFallback()
		log.Info("Search degraded to recency listing",
			zap.String("intent", string(pl.Intent)),
			zap.String("mode", string(pl.Mode)),
		)
	}

	log.Debug("Plan executed",
		zap.String("intent", string(pl.Intent)),
		zap.Int("requests", len(ds)),
		zap.Int("primary_points", len(in.Primary)),
		zap.Int("context_points", len(in.Context)),
	)

	return assemble.Assemble(in), nil
}

// embedding returns the caller's vector, or embeds the query text when the
// plan asks for hybrid retrieval on a vector backend. Inferred hybrid mode
// tolerates provider failures and lets the planner fall back to a listing.
func (s *Service) embedding(ctx context.Context, q Query) ([]float32, error) {
	pl := q.Plan
	if len(q.Embedding) > 0 || s.embed == nil {
		return q.Embedding, nil
	}
	if pl.Mode != mode.Hybrid || pl.QueryText == "" || !s.planner.NeedsEmbedding(pl) {
		return nil, nil
	}

	res, err := s.embed.Embed(ctx, pl.QueryText)
	if err != nil {
		if pl.ModeExplicit || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("vectorize query: %w", err)
		}
		logger.FromContext(ctx).Warn("Query embedding failed, falling back to listing",
			zap.String("intent", string(pl.Intent)),
			zap.Error(err),
		)
		return nil, nil
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.Embedding, nil
}

func intentLabel(i plan.Intent) string {
	if i.IsValid() {
		return string(i)
	}
	return "unknown"
}
