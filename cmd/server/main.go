package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercepulse/store-monitor/internal/api"
	"github.com/commercepulse/store-monitor/internal/config"
	"github.com/commercepulse/store-monitor/internal/lifecycle"
	"github.com/commercepulse/store-monitor/internal/pkg/logger"
	"github.com/commercepulse/store-monitor/internal/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.Println("Starting store lifecycle monitor...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := storage.New(ctx, cfg.Storage)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Report cache is optional; without a Redis address every dashboard
	// request recomputes from DynamoDB.
	var cache *storage.ReportCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, report cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			cache = storage.NewReportCache(rdb, time.Duration(cfg.Analytics.CacheTTLSeconds)*time.Second)
			logger.Info("Report cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	funnel := lifecycle.NewFunnelAggregator(store, store, store, store)
	cohort := lifecycle.NewCohortAnalyzer(store, store, store)
	cohort.CutoverDate = cfg.Analytics.CohortCutover
	cohort.RecencyDays = cfg.Analytics.CohortRecencyDays
	cohort.MaxCohorts = cfg.Analytics.CohortMax
	cohort.Workers = cfg.Analytics.LookupWorkers
	heatmap := lifecycle.NewHeatmapAggregator(store, store)
	inactivity := lifecycle.NewInactivityDetector(store, store, store)

	handlers := api.NewHandlers(funnel, cohort, heatmap, inactivity, store, cache)
	server := api.NewServer(handlers)

	errCh := make(chan error, 1)
	go func() {
		addr := cfg.Server.Addr()
		logger.Info("HTTP server listening", "addr", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Shutdown error: %v", err)
		}
	}
}
