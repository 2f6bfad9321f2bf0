package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"article-analyzer/internal/cache"
	"article-analyzer/internal/config"
	httphandler "article-analyzer/internal/http"
	"article-analyzer/internal/logger"
	"article-analyzer/internal/metrics"
	"article-analyzer/internal/middleware"
	"article-analyzer/internal/services/analysis"
	"article-analyzer/internal/services/llm"
)

func main() {
	port := flag.String("port", "", "Port to run the server on (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	if err := logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send,
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A missing key keeps the server up; /analyze then answers with an internal error.
	llmClient, err := llm.New(ctx, cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		log.Warn().Str("provider", cfg.LLM.Provider).Msg("API key not found in environment variables")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create LLM client")
	}
	if closer, ok := llmClient.(io.Closer); ok {
		defer closer.Close()
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		var redisCache *cache.RedisCache
		limiter, redisCache = newLimiter(cfg)
		if redisCache != nil {
			defer redisCache.Close()
		}
	}

	prompts := analysis.NewPromptBuilder(cfg.Analyzer.Profile)
	gateway := analysis.NewGateway(llmClient, prompts, analysis.GatewayOptions{
		SummaryMaxTokens: cfg.LLM.MaxTokens,
		EntityMaxTokens:  cfg.LLM.EntityMaxTokens,
		Timeout:          cfg.LLM.Timeout,
		Parallel:         cfg.LLM.Parallel,
	})
	service := analysis.NewService(analysis.NewAcquirer(cfg.Analyzer), prompts, gateway)

	router := httphandler.NewRouter(cfg.Server.RequestTimeout, limiter)
	router.RegisterHealthRoutes(httphandler.NewStatusHandler(cfg, llmClient != nil))
	router.RegisterAnalysisRoutes(httphandler.NewAnalyzeHandler(service))
	router.RegisterMetricsRoutes()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("provider", cfg.LLM.Provider).
			Str("model", cfg.LLM.Model).
			Str("profile", cfg.Analyzer.Profile).
			Strs("allowed_file_types", cfg.Analyzer.AllowedFileTypes).
			Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
}

// newLimiter prefers Redis when configured and reachable, otherwise an in-memory bucket.
func newLimiter(cfg *config.Config) (middleware.Limiter, *cache.RedisCache) {
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err == nil {
			return middleware.NewRedisLimiter(redisCache, cfg.RateLimit.RequestsPerMinute), redisCache
		}
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory rate limiting")
	}
	return middleware.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize), nil
}
