// Package httpexec executes backend request descriptors over HTTP.
package httpexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/request"
	"github.com/kailas-cloud/newsrank/internal/logger"
	"github.com/kailas-cloud/newsrank/internal/metrics"
)

const (
	maxBodyBytes   = 32 << 20
	excerptBytes   = 256
	defaultTimeout = 15 * time.Second
)

// sharedTransport is reused by every executor so backend connections are pooled.
var sharedTransport = &http.Transport{
	MaxIdleConns:        32,
	MaxIdleConnsPerHost: 16,
	IdleConnTimeout:     120 * time.Second,
}

// Config controls timeouts, concurrency and the outbound rate limit.
type Config struct {
	Timeout     time.Duration
	MaxParallel int
	// RatePerSec limits outbound requests; 0 means unlimited.
	RatePerSec float64
	Burst      int
}

// Option customizes an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// Executor sends descriptors and collects their raw response bodies.
type Executor struct {
	client      *http.Client
	limiter     *rate.Limiter
	maxParallel int
}

// New creates an Executor backed by the shared connection pool.
func New(cfg Config, opts ...Option) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	e := &Executor{
		client:      &http.Client{Timeout: timeout, Transport: sharedTransport},
		maxParallel: cfg.MaxParallel,
	}
	if cfg.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteAll runs every descriptor concurrently, bounded by MaxParallel, and
// returns responses in descriptor order. The first failure cancels the rest.
func (e *Executor) ExecuteAll(ctx context.Context, ds []request.Descriptor) ([]request.Response, error) {
	out := make([]request.Response, len(ds))
	g, gctx := errgroup.WithContext(ctx)
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, d := range ds {
		g.Go(func() error {
			body, err := e.Do(gctx, d)
			if err != nil {
				return err
			}
			out[i] = request.Response{Descriptor: d, Body: body}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per request
	}
	return out, nil
}

// Do sends one descriptor. Transport failures and non-2xx statuses wrap
// domain.ErrBackendUnavailable.
func (e *Executor) Do(ctx context.Context, d request.Descriptor) ([]byte, error) {
	start := time.Now()
	body, status, err := e.do(ctx, d)
	metrics.BackendRequestDuration.WithLabelValues(d.Backend, string(d.Operation)).Observe(time.Since(start).Seconds())
	metrics.BackendRequestsTotal.WithLabelValues(d.Backend, string(d.Operation), status).Inc()
	if err != nil {
		logger.FromContext(ctx).Warn("backend request failed",
			zap.String("backend", d.Backend),
			zap.String("operation", string(d.Operation)),
			zap.String("url", d.URL),
			zap.Error(err),
		)
		return nil, err
	}
	return body, nil
}

// Probe checks that a backend root answers with a non-5xx status.
func (e *Executor) Probe(ctx context.Context, url string, header map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build probe: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: probe %s returned %d", domain.ErrBackendUnavailable, url, resp.StatusCode)
	}
	return nil
}

func (e *Executor) do(ctx context.Context, d request.Descriptor) ([]byte, string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, "canceled", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader = http.NoBody
	if d.Body != nil {
		payload, err := json.Marshal(d.Body)
		if err != nil {
			return nil, "error", fmt.Errorf("encode %s %s body: %w", d.Backend, d.Operation, err)
		}
		reader = bytes.NewReader(payload)
	}
	method := d.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, d.URL, reader)
	if err != nil {
		return nil, "error", fmt.Errorf("build %s request: %w", d.Backend, err)
	}
	for k, v := range d.Header {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "error", fmt.Errorf("%w: %s %s: %w", domain.ErrBackendUnavailable, d.Backend, d.Operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	status := strconv.Itoa(resp.StatusCode)
	if err != nil {
		return nil, status, fmt.Errorf("%w: read %s response: %w", domain.ErrBackendUnavailable, d.Backend, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, status, fmt.Errorf("%w: %s %s returned %d: %s",
			domain.ErrBackendUnavailable, d.Backend, d.Operation, resp.StatusCode, excerpt(body))
	}
	return body, status, nil
}

func excerpt(body []byte) string {
	if len(body) > excerptBytes {
		return string(body[:excerptBytes]) + "..."
	}
	return string(body)
}
