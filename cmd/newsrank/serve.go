package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/config"
	"github.com/kailas-cloud/newsrank/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/newsrank/internal/logger"
	"github.com/kailas-cloud/newsrank/internal/metrics"
	chiTransport "github.com/kailas-cloud/newsrank/internal/transport/chi"
	"github.com/kailas-cloud/newsrank/internal/transport/httpexec"
	healthuc "github.com/kailas-cloud/newsrank/internal/usecase/health"
	searchuc "github.com/kailas-cloud/newsrank/internal/usecase/search"
	"github.com/kailas-cloud/newsrank/internal/version"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.HTTP.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, flags.env, cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override http.port")
	return cmd
}

func serve(ctx context.Context, env string, cfg config.Config) error {
	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newsrank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("backends", cfg.Backend.Kinds),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	p, err := buildPlanner(cfg)
	if err != nil {
		return err
	}
	exec := httpexec.New(httpexec.Config{
		Timeout:     time.Duration(cfg.Executor.TimeoutSec) * time.Second,
		MaxParallel: cfg.Executor.MaxParallel,
		RatePerSec:  cfg.Executor.RatePerSec,
		Burst:       cfg.Executor.Burst,
	})

	store, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	var cache healthuc.DBPinger
	if store != nil {
		defer store.Close()
		cache = store
	}

	embedder, err := buildEmbedder(cfg, store, logger)
	if err != nil {
		return err
	}
	var searchEmbedder searchuc.Embedder
	if embedder != nil {
		searchEmbedder = embedder
		logger.Info("Query embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}

	scorer := result.NewScorer(cfg.Scoring.HalfLifeHours, *cfg.Scoring.RecencyBias)
	searchSvc := searchuc.New(p, exec, searchEmbedder, scorer)
	healthSvc := healthuc.New(exec, healthBackends(p), cache, embeddingChecker(embedder))

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
