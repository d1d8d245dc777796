package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/app"
	"github.com/harborline/harborline/internal/ar"
	"github.com/harborline/harborline/internal/platform/cache"
	"github.com/harborline/harborline/internal/platform/db"
	"github.com/harborline/harborline/internal/qbimport"
	"github.com/harborline/harborline/internal/reports"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	accountingService := accounting.NewService(accounting.NewRepository(pool))
	accountingHandler := accounting.NewHandler(logger, accountingService)

	apService := ap.NewService(ap.NewRepository(pool))
	apHandler := ap.NewHandler(logger, apService)

	arService := ar.NewService(ar.NewRepository(pool))
	arHandler := ar.NewHandler(logger, arService)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache)
	reportHandler := reports.NewHandler(logger, reportService)
	if err := reportCache.WatchInvalidations(ctx); err != nil {
		logger.Error("subscribe cache invalidation", "error", err)
		os.Exit(1)
	}

	importService := qbimport.NewService(qbimport.NewStore(pool), logger)
	importService.InvalidateAfterImport(reportService.Invalidate)
	importHandler := qbimport.NewHandler(logger, importService, cfg.ImportMaxBytes)

	router := app.NewRouter(cfg, logger,
		accountingHandler,
		apHandler,
		arHandler,
		importHandler,
		reportHandler,
	)

	if err := app.Serve(ctx, cfg, logger, router); err != nil {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}
}
