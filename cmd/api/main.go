// Package main is the entry point for the Mimy API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/edwds/mimy/internal/api"
	"github.com/edwds/mimy/internal/auth"
	"github.com/edwds/mimy/internal/cache"
	"github.com/edwds/mimy/internal/config"
	"github.com/edwds/mimy/internal/content"
	"github.com/edwds/mimy/internal/db"
	"github.com/edwds/mimy/internal/health"
	"github.com/edwds/mimy/internal/idempotency"
	"github.com/edwds/mimy/internal/match"
	"github.com/edwds/mimy/internal/middleware"
	"github.com/edwds/mimy/internal/profile"
	"github.com/edwds/mimy/internal/ranklist"
	"github.com/edwds/mimy/internal/tracing"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Mimy API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Redis is optional: without it caching is disabled and rate limiting
	// falls back to the in-memory store.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "mimy-api",
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		Environment:  cfg.Env,
		ExporterType: os.Getenv("TRACING_EXPORTER"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRate: tracingSamplingRate(logger),
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	rankingMetrics := ranklist.NewMetrics()
	matchMetrics := match.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	if err := rankingMetrics.Register(registry); err != nil {
		logger.Error("failed to register ranking metrics", "error", err)
		os.Exit(1)
	}
	if err := matchMetrics.Register(registry); err != nil {
		logger.Error("failed to register match metrics", "error", err)
		os.Exit(1)
	}

	// Domain wiring
	responseCache := cache.New(redisClient, logger)
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	contentStore := content.NewPostgresStore(database, logger)
	rankingRepo := ranklist.NewPostgresRepository(database, logger)
	manager := ranklist.NewManager(rankingRepo, contentStore, logger, rankingMetrics)

	profileSource := profile.NewPostgresSource(database, logger)
	computer := match.NewComputer(profileSource, cfg.MatchParams(), logger, matchMetrics)

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	rankingHandlers := api.NewRankingHandlers(manager, responseCache, cacheTTL)
	matchHandlers := api.NewMatchHandlers(computer, profileSource)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(database),
		RedisChecker:   redisChecker(redisClient),
		MetricsEnabled: true,
	})

	// Idempotency for the judgement-recording POSTs. Keys age out on a
	// background sweep.
	idempotencyRepo := idempotency.NewInMemoryRepository()
	idempotencyStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, idempotency.DefaultExpiry, idempotencyStop)
	defer close(idempotencyStop)

	// Authenticated API routes
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/ranking", rankingHandlers.Ranking)
	apiMux.HandleFunc("/api/ranking/batch", rankingHandlers.Batch)
	apiMux.HandleFunc("/api/ranking/reorder", rankingHandlers.Reorder)
	apiMux.HandleFunc("/api/ranking/", rankingHandlers.Delete)
	apiMux.HandleFunc("/api/match/scores", matchHandlers.Scores)
	apiMux.HandleFunc("/api/match/stats/", matchHandlers.Stats)

	idempotentRoutes := map[string]bool{
		"/api/ranking":       true,
		"/api/ranking/batch": true,
	}
	protected := middleware.RequireAuth(jwtService)(
		middleware.IdempotencyMiddleware(idempotencyRepo, idempotentRoutes)(apiMux),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"mimy-api","version":"0.0.1"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Rate limiting: Redis-backed when available so limits hold across
	// replicas, in-memory otherwise.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}

	// Middleware chain, outermost first: RequestID -> Tracing -> Logging
	// -> HTTPMetrics -> CORS -> RateLimiter.
	handler := middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(mux)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("mimy-api")(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     os.Getenv("PROFILING_ENABLED") == "true",
		Environment: cfg.Env,
	})(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// tracingSamplingRate reads TRACING_SAMPLING_RATE, defaulting to sampling
// everything.
func tracingSamplingRate(logger *slog.Logger) float64 {
	raw := os.Getenv("TRACING_SAMPLING_RATE")
	if raw == "" {
		return 1.0
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("invalid TRACING_SAMPLING_RATE, sampling everything", "value", raw)
		return 1.0
	}
	return rate
}

// redisChecker returns a readiness checker for the Redis client, or nil
// when caching is disabled.
func redisChecker(client *redis.Client) api.HealthChecker {
	if client == nil {
		return nil
	}
	return health.NewRedisChecker(client)
}
