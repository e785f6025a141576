package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"clubhub/internal/auth"
	"clubhub/internal/budgets"
	"clubhub/internal/clubs"
	"clubhub/internal/config"
	"clubhub/internal/events"
	"clubhub/internal/feed"
	"clubhub/internal/httpapi"
	"clubhub/internal/logging"
	"clubhub/internal/logos"
	"clubhub/internal/metrics"
	"clubhub/internal/queue"
	"clubhub/internal/stats"
	"clubhub/internal/store"
	"clubhub/internal/users"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.Production(), cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	health := map[string]httpapi.HealthCheck{"db": db.Healthy}

	var (
		q        queue.Queue
		activity feed.Feed
	)
	switch cfg.QueueBackend {
	case "memory":
		q = queue.NewInMemory(256)
		activity = feed.NewMemory(cfg.ActivityFeedSize)
		// No separate worker in this mode; drain in-process.
		go func() {
			if err := feed.Run(ctx, q, activity, logger); err != nil {
				logger.Error("activity consumer stopped", "error", err)
			}
		}()
	case "redis":
		rdb := store.NewRedis(cfg.Redis())
		defer rdb.Close()
		q = queue.NewRedisQueue(rdb.Client, rdb.QueueKey())
		activity = feed.NewRedisFeed(rdb.Client, rdb.FeedKey(), cfg.ActivityFeedSize)
		health["redis"] = rdb.Healthy
	default:
		return fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}

	var signer clubs.LogoSigner
	if cfg.LogosEnabled() {
		p, err := logos.New(ctx, logos.Settings{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		signer = p
	} else {
		logger.Info("logo uploads disabled (S3_BUCKET / S3_ACCESS_KEY / S3_SECRET_KEY not set)")
	}

	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	userSvc := users.NewService(users.NewRepository(db), auth.NewHasher(cfg.BcryptCost), tokens, q, m, logger)
	clubSvc := clubs.NewService(clubs.NewRepository(db), userSvc, signer, q, m, logger)
	eventSvc := events.NewService(events.NewRepository(db), clubSvc, userSvc, q, m, logger)
	budgetSvc := budgets.NewService(budgets.NewRepository(db), clubSvc, q, m, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:     logger,
		Tokens:     tokens,
		Users:      userSvc,
		Clubs:      clubSvc,
		Events:     eventSvc,
		Budgets:    budgetSvc,
		Stats:      stats.NewService(db),
		Feed:       activity,
		Metrics:    m,
		Gatherer:   reg,
		Health:     health,
		RatePerMin: cfg.RateLimitPerMin,
		Origins:    cfg.CORSOrigins,
		Production: cfg.Production(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "db", db.Dialect, "queue", cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
