package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clubhub/internal/config"
	"clubhub/internal/feed"
	"clubhub/internal/logging"
	"clubhub/internal/queue"
	"clubhub/internal/store"
)

// Worker drains the activity queue into the capped admin feed.
func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Production(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		logger.Error("worker requires QUEUE_BACKEND=redis; the memory backend is drained by the api process", "backend", cfg.QueueBackend)
		os.Exit(1)
	}

	rdb := store.NewRedis(cfg.Redis())
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will keep retrying", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(rdb.Client, rdb.QueueKey())
	activity := feed.NewRedisFeed(rdb.Client, rdb.FeedKey(), cfg.ActivityFeedSize)

	logger.Info("worker started, waiting for activity")
	if err := feed.Run(ctx, q, activity, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
