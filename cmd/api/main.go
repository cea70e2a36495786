// Package main is the entry point for the MapNest API server.
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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mapnest/mapnest/internal/annotation"
	"github.com/mapnest/mapnest/internal/api"
	"github.com/mapnest/mapnest/internal/boundary"
	"github.com/mapnest/mapnest/internal/config"
	"github.com/mapnest/mapnest/internal/db"
	"github.com/mapnest/mapnest/internal/editor"
	"github.com/mapnest/mapnest/internal/export"
	"github.com/mapnest/mapnest/internal/health"
	"github.com/mapnest/mapnest/internal/idempotency"
	"github.com/mapnest/mapnest/internal/layer"
	"github.com/mapnest/mapnest/internal/maparea"
	"github.com/mapnest/mapnest/internal/middleware"
	"github.com/mapnest/mapnest/internal/stream"
	"github.com/mapnest/mapnest/internal/tracing"
)

// repositories bundles the Postgres-backed persistence layer.
type repositories struct {
	areas       maparea.Repository
	boundaries  boundary.Repository
	layers      layer.Repository
	annotations annotation.Repository
}

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("MapNest API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	repos := repositories{
		areas:       maparea.NewPostgresRepository(sqlDB, logger),
		boundaries:  boundary.NewPostgresRepository(sqlDB, logger),
		layers:      layer.NewPostgresRepository(sqlDB, logger),
		annotations: annotation.NewPostgresRepository(sqlDB, logger),
	}

	// Redis backs distributed rate limiting when configured
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "mapnest-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: "otlp-" + cfg.TracingProtocol,
		OTLPEndpoint: cfg.TracingEndpoint,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	streamMetrics := stream.NewMetrics()
	if err := streamMetrics.Register(registry); err != nil {
		logger.Error("failed to register stream metrics", "error", err)
		os.Exit(1)
	}
	editorMetrics := editor.NewMetrics()
	if err := editorMetrics.Register(registry); err != nil {
		logger.Error("failed to register editor metrics", "error", err)
		os.Exit(1)
	}

	broadcaster := stream.NewBroadcaster(streamMetrics, logger)

	// Export pipeline: S3-compatible store when configured, local dir otherwise
	var store export.ObjectStore
	if cfg.S3Configured() {
		store, err = export.NewS3Store(export.S3StoreConfig{
			BucketName:      cfg.S3BucketName,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize object storage", "error", err)
			os.Exit(1)
		}
	}
	exportService, err := export.NewService(export.ServiceConfig{
		Areas:       repos.areas,
		Boundaries:  repos.boundaries,
		Layers:      repos.layers,
		Annotations: repos.annotations,
		Store:       store,
		Dir:         cfg.ExportDir,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to initialize export service", "error", err)
		os.Exit(1)
	}

	// The Redis checker stays nil when Redis is not configured
	healthCfg := api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(sqlDB),
		MetricsEnabled: true,
	}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}

	mux := api.NewRouter(api.RouterConfig{
		MapAreas:    api.NewMapAreaHandlers(repos.areas),
		Boundaries:  api.NewBoundaryHandlers(repos.areas, repos.boundaries, broadcaster),
		Layers:      api.NewLayerHandlers(repos.areas, repos.layers, repos.annotations, broadcaster),
		Annotations: api.NewAnnotationHandlers(repos.layers, repos.annotations, broadcaster),
		Editor:      api.NewEditorWSHandlers(repos.areas, repos.boundaries, repos.layers, repos.annotations, broadcaster, editorMetrics, logger),
		Export:      api.NewExportHandlers(exportService),
		Health:      api.NewHealthHandlers(healthCfg),
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"mapnest-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Idempotency keys guard the export endpoint against duplicate renders
	idempotencyRepo := idempotency.NewInMemoryRepository()
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go idempotency.RunPeriodicCleanup(cleanupCtx, idempotencyRepo, time.Hour, idempotency.DefaultExpiry)
	exportRoute := func(r *http.Request) bool {
		return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/export")
	}

	// Rate limiting: Redis-backed when available, per-process otherwise
	var limitStore middleware.RateLimitStore
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		limitStore = middleware.NewInMemoryRateLimitStore()
	}

	// Middleware chain, innermost first
	var handler http.Handler = mux
	handler = middleware.IdempotencyMiddleware(idempotencyRepo, exportRoute)(handler)
	handler = middleware.RouteRateLimiter(exportRoute, "export", limitStore, middleware.DefaultExportLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.RateLimiter(limitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("mapnest-api")(handler)
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
			MaxAge:           300,
		})(handler)
	}
	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			"port", cfg.Port,
			"env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down tracer", "error", err)
	}

	logger.Info("server stopped")
}
