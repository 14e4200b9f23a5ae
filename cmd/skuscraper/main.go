// Package main wires together the scraper service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/api"
	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/config"
	"github.com/storefront-tools/skuscraper/internal/extract"
	collyfetcher "github.com/storefront-tools/skuscraper/internal/fetcher/colly"
	"github.com/storefront-tools/skuscraper/internal/logging"
	"github.com/storefront-tools/skuscraper/internal/pipeline"
	"github.com/storefront-tools/skuscraper/internal/ratelimit"
	"github.com/storefront-tools/skuscraper/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Scrape.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		MaxConnections: cfg.Scrape.Concurrency,
	})
	limiter := ratelimit.New(ratelimit.Config{Delay: cfg.ScrapeDelay()})
	engine := extract.New(logger.Named("extract"))
	indexer := catalog.NewIndexer(fetcher, catalog.Config{
		PageSize:      cfg.Catalog.PageSize,
		PageDelay:     cfg.CatalogPageDelay(),
		RetryAttempts: cfg.Catalog.RetryAttempts,
		RetryBackoff:  cfg.CatalogRetryBackoff(),
		FetchTimeout:  cfg.FetchTimeout(),
	}, logger.Named("catalog"))
	pipe := pipeline.New(fetcher, engine, limiter, logger.Named("pipeline"))

	apiServer := api.NewServer(pipe, indexer, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
