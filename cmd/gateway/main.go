package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vision-platform/ai-gateway/internal/admit"
	"github.com/vision-platform/ai-gateway/internal/analytics"
	"github.com/vision-platform/ai-gateway/internal/assemble"
	"github.com/vision-platform/ai-gateway/internal/auth"
	"github.com/vision-platform/ai-gateway/internal/cache"
	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/gateway"
	"github.com/vision-platform/ai-gateway/internal/httputil"
	"github.com/vision-platform/ai-gateway/internal/ratelimit"
	"github.com/vision-platform/ai-gateway/internal/router"
	"github.com/vision-platform/ai-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger = newLogger(cfg.Telemetry)
	slog.SetDefault(logger)

	metrics := telemetry.NewMetrics()

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (shared cache and daily budgets disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// Analytics sink: Postgres when reachable, logs otherwise.
	var sink analytics.Sink = analytics.NewLogSink(logger)
	if cfg.Analytics.Enabled {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable, analytics falling back to logs", "error", err)
		} else {
			logger.Info("database connected")
			sink = analytics.NewPGSink(dbPool, cfg.Analytics, logger, metrics)
		}
	}

	// Provider registry. Breaker state lives in the health tracker and
	// survives config reloads.
	breaker := cfg.Routing.CircuitBreaker
	health := router.NewHealthTracker(breaker.FailureThreshold, breaker.FailureWindow, breaker.Cooldown)
	registry := router.NewRegistry(health, logger)
	registry.Reload(loader.Providers())

	limiter := ratelimit.NewLimiter(cfg.RateLimit.Buckets)
	budget := ratelimit.NewBudgetTracker(rdb)

	var resultCache cache.ResultCache = cache.NewMemory()
	if cfg.Cache.Backend == "redis" && rdb != nil {
		resultCache = cache.NewRedis(rdb, logger)
	}

	sizeLimits := admit.NewSizeLimits(func() config.AdmissionConfig { return loader.Config().Admission })
	policyGate := admit.NewPolicyGate(func() config.PolicyConfig { return loader.Config().Admission.Policy })
	if cfg.Admission.Policy.Enabled {
		if err := policyGate.Load(); err != nil {
			logger.Error("failed to load admission policies", "error", err)
			os.Exit(1)
		}
	}
	admission := admit.NewChain(sizeLimits, policyGate)

	assembler := assemble.New(nil, cfg.Assembler.TokenBudget)

	// Register reload hooks before the watcher starts delivering events.
	loader.OnReload(func() {
		next := loader.Config()
		registry.Reload(loader.Providers())
		limiter.UpdateLimits(next.RateLimit.Buckets)
		if next.Admission.Policy.Enabled {
			if err := policyGate.Load(); err != nil {
				logger.Error("failed to reload admission policies", "error", err)
			}
		}
		logger.Info("runtime configuration applied")
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	orch := gateway.NewOrchestrator(gateway.OrchestratorParams{
		Registry:  registry,
		Cache:     resultCache,
		Limiter:   limiter,
		Budget:    budget,
		Admission: admission,
		Assembler: assembler,
		Config:    loader.Config,
		Metrics:   metrics,
		Sink:      sink,
		Logger:    logger,
	})
	handler := gateway.NewHandler(orch, registry)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	// Unauthenticated routes
	r.Get("/healthz", healthHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Caller-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		r.Post("/gateway/{capability}", handler.Execute)
		r.Post("/gateway/translate/batch", handler.TranslateBatch)
		r.Get("/gateway/languages", handler.Languages)
		r.Get("/gateway/providers", handler.Providers)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	if err := sink.Close(ctx); err != nil {
		logger.Warn("analytics sink did not drain", "error", err)
	}
	logger.Info("gateway stopped")
}

func newLogger(cfg config.TelemetryConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(httputil.HeaderRequestID)
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set(httputil.HeaderRequestID, reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
