package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-warnings/internal/api"
	"github.com/mr1hm/go-weather-warnings/internal/config"
	"github.com/mr1hm/go-weather-warnings/internal/detector"
	"github.com/mr1hm/go-weather-warnings/internal/feed"
	"github.com/mr1hm/go-weather-warnings/internal/logging"
	"github.com/mr1hm/go-weather-warnings/internal/notify"
	"github.com/mr1hm/go-weather-warnings/internal/observability"
	"github.com/mr1hm/go-weather-warnings/internal/repository"
	"github.com/mr1hm/go-weather-warnings/internal/retention"
	"github.com/mr1hm/go-weather-warnings/internal/watcher"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("warning watcher starting", "feed", cfg.Feed.URL, "targets", len(cfg.Monitor))

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		logging.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := repository.NewSQLiteDB(cfg.Storage.DBPath)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	cache, err := feed.NewFileCache(cfg.Storage.CacheDir, cfg.Storage.QuarantineDir)
	if err != nil {
		logging.Fatalf("Failed to initialize file cache: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Mail.Enabled() {
		mailer, err := notify.NewMailer(cfg.Mail.APIKey, cfg.Mail.Sender, cfg.Mail.Recipients)
		if err != nil {
			logging.Fatalf("Failed to initialize mailer: %v", err)
		}
		notifier = mailer
		slog.Info("mail notifications enabled", "recipients", len(cfg.Mail.Recipients))
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	dispatcher := notify.NewDispatcher(cfg.Dispatch.Count, cfg.Dispatch.BufferSize, notifier)

	w := watcher.New(watcher.Options{
		FeedURL:         cfg.Feed.URL,
		Targets:         cfg.Monitor,
		PollInterval:    cfg.Feed.PollInterval,
		CleanupSchedule: cfg.Retention.CleanupSchedule,
		Fetcher:         feed.NewFetcher(cfg.Feed.Timeout),
		Cache:           cache,
		Reports:         db,
		Detector:        detector.New(db, clock),
		Retention:       retention.NewManager(db, db, cache, cfg.Retention.Grace, cfg.Retention.Window, clock),
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Clock:           clock,
	})
	if err := w.Start(ctx); err != nil {
		logging.Fatalf("Failed to start watcher: %v", err)
	}

	// Ops endpoints only: liveness and metrics.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RateLimitMiddleware(5))

	handler := api.NewHandler()
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("ops server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
