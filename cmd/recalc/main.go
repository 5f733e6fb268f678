package main

import (
	"context"
	"log"
	"time"

	"github.com/commercepulse/store-monitor/internal/config"
	"github.com/commercepulse/store-monitor/internal/lifecycle"
	"github.com/commercepulse/store-monitor/internal/pkg/distlock"
	"github.com/commercepulse/store-monitor/internal/pkg/logger"
	"github.com/commercepulse/store-monitor/internal/storage"
	"github.com/redis/go-redis/v9"
)

// lockTTL bounds how long a crashed run can block the next one.
const lockTTL = 30 * time.Minute

func main() {
	log.Println("Starting daily counter recalculation...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := storage.New(initCtx, cfg.Storage)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// A distributed lock keeps concurrent cron runs from interleaving
	// counter writes. Without Redis the run proceeds unguarded.
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lock := distlock.NewRedisLock(rdb, "store-monitor:recalc", lockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			log.Fatalf("Failed to contact Redis for recalc lock: %v", err)
		}
		if !acquired {
			logger.Info("Another recalculation holds the lock, exiting")
			return
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				logger.Warn("Failed to release recalc lock", "error", err)
			}
		}()
	}

	recalc := lifecycle.NewReactivationRecalculator(store, store, store, store)
	summary, err := recalc.Run(ctx)
	if err != nil {
		log.Fatalf("Recalculation failed: %v", err)
	}

	logger.Info("Recalculation complete",
		"run_id", summary.RunID,
		"from", summary.FromDate,
		"to", summary.ToDate,
		"dates", summary.Dates,
		"events", summary.Events,
		"duration", summary.Duration,
	)
}
