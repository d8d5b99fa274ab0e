package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"

	"freight-dashboard/internal/cache"
	"freight-dashboard/internal/config"
	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/middleware"
	"freight-dashboard/internal/observability"
	"freight-dashboard/internal/server"
	"freight-dashboard/internal/services"
	"freight-dashboard/internal/ui/templates"
)

const (
	version         = "1.0.0"
	renderTimeout   = 10 * time.Second
	loadTimeout     = 30 * time.Second
	cacheDialWait   = 5 * time.Second
	limiterInterval = time.Minute
	cacheMaxAge     = "public, max-age=300"
	dashboardTitle  = "Freight Lead Dashboard"
	dashboardTag    = "Customer intelligence across routes, industries and priorities"
)

// dashboardHandler renders the page shell. Dropdown options come from the
// dataset loaded at request time.
func dashboardHandler(analytics *services.Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		data := templates.DashboardData{
			Title:      dashboardTitle,
			Subtitle:   dashboardTag,
			Dimensions: analytics.Dimensions(),
			Records:    analytics.Dataset().Len(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(data).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// loadDataset fills analytics from the configured CSV file or SQL table.
func loadDataset(ctx context.Context, cfg config.DatasetConfig, analytics *services.Analytics) error {
	opts := []dataset.Option{
		dataset.WithBatchSize(cfg.BatchSize),
		dataset.WithWorkers(cfg.Workers),
	}

	if !cfg.IsSQL() {
		return analytics.LoadFromCSV(ctx, cfg.Source, append(opts, dataset.WithCacheDir(cfg.CacheDir))...)
	}

	db, err := sql.Open("postgres", cfg.Source)
	if err != nil {
		return fmt.Errorf("open dataset database: %w", err)
	}
	defer db.Close()
	return analytics.LoadFromSQL(ctx, db, cfg.Table, opts...)
}

func newHandler(cfg *config.Config, logger *slog.Logger, analytics *services.Analytics, limiter *middleware.RateLimiter) http.Handler {
	srv := server.NewServer(analytics, logger, &server.TemplateHandlers{
		Dashboard: dashboardHandler(analytics),
	})

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)
	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"dataset", cfg.Dataset.Source,
		"cache_enabled", cfg.Cache.Enabled(),
	)

	granularity, err := engine.ParseGranularity(cfg.Engine.TimelineGranularity)
	if err != nil {
		logger.Error("invalid timeline granularity", "error", err)
		os.Exit(1)
	}

	analyticsOpts := []services.Option{
		services.WithLogger(logger),
		services.WithGranularity(granularity),
	}

	var results *cache.Results
	if cfg.Cache.Enabled() {
		dialCtx, cancel := context.WithTimeout(context.Background(), cacheDialWait)
		results, err = cache.Connect(dialCtx, cfg.Cache)
		cancel()
		if err != nil {
			logger.Warn("result cache disabled", "error", err)
		} else {
			analyticsOpts = append(analyticsOpts, services.WithCache(results))
			logger.Info("result cache connected", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	analytics := services.NewAnalytics(analyticsOpts...)

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	start := time.Now()
	err = loadDataset(ctx, cfg.Dataset, analytics)
	cancel()
	if err != nil {
		logger.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	logger.Info("dataset ready", "records", analytics.Dataset().Len(), "duration", time.Since(start))

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	stopLimiter := make(chan struct{})
	go rateLimiter.Run(limiterInterval, stopLimiter)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, logger, analytics, rateLimiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg).
		WithStartupFields("records", analytics.Dataset().Len(), "fingerprint", analytics.Dataset().Fingerprint())

	gracefulServer.RegisterShutdownHook("rate-limiter", func(ctx context.Context) error {
		close(stopLimiter)
		return nil
	})
	if results != nil {
		gracefulServer.RegisterShutdownHook("result-cache", func(ctx context.Context) error {
			return results.Close()
		})
	}

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
