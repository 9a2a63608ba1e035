package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourorg/clipqueue/internal/cache"
	"github.com/yourorg/clipqueue/internal/config"
	"github.com/yourorg/clipqueue/internal/db"
	"github.com/yourorg/clipqueue/internal/download"
	"github.com/yourorg/clipqueue/internal/migrate"
	"github.com/yourorg/clipqueue/internal/monitor"
	"github.com/yourorg/clipqueue/internal/orchestrator"
	"github.com/yourorg/clipqueue/internal/queue"
	"github.com/yourorg/clipqueue/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config failed", "err", err)
		os.Exit(1)
	}

	if err := enableParentDeathSignal(); err != nil {
		logger.Warn("failed to enable parent-death signal", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := migrate.Run(ctx, pool, logger); err != nil {
		logger.Error("run migrations failed", "err", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("parse redis URL failed", "err", err)
		os.Exit(1)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()

	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	collector := monitor.NewCollector()
	errorLog := monitor.NewErrorLog(pool, logger)
	store := queue.New(pool)
	artifacts := cache.New(pool)

	streamer := download.NewStreamer(
		cfg.MaxSizeBytes(), cfg.MaxRetries, cfg.StreamingTimeout(), logger)
	runner := download.NewRunner(
		cfg.YtDlpPath, cfg.MaxSizeBytes(), cfg.ExternalTimeout(), logger)
	runner.Probe(ctx)

	orch := &orchestrator.Orchestrator{
		Store:    store,
		Cache:    artifacts,
		Streamer: streamer,
		External: runner,
		// The messaging front-end is wired here in deployment; the log-only
		// messenger keeps the pipeline runnable without one.
		Messenger: logMessenger{logger: logger},
		Monitor:   pipelineMonitor{Collector: collector, ErrorLog: errorLog},
		Logger:    logger,
	}

	sched := scheduler.New(store, orch, rc, collector,
		cfg.MaxConcurrentDownloads, cfg.SchedulerTick(), logger)

	go artifacts.RunSweeper(ctx, cfg.CacheSweepAge(), logger)
	go sched.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "err", err)
		}
	}()

	logger.Info("clipqueue ready",
		"max_concurrent", cfg.MaxConcurrentDownloads,
		"max_size_mb", cfg.MaxSizeMB,
		"tick", cfg.SchedulerTick())

	<-ctx.Done()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer drainCancel()
	if err := sched.DrainAndWait(drainCtx); err != nil {
		logger.Warn("shutdown drain timeout; running downloads abandoned", "err", err)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

// pipelineMonitor joins the metrics collector and the persisted error log
// into the single monitoring surface the orchestrator expects.
type pipelineMonitor struct {
	*monitor.Collector
	*monitor.ErrorLog
}

// logMessenger satisfies the messaging collaborator contract with log
// output only. Deliveries report success with an empty artifact handle, so
// nothing is cached from it.
type logMessenger struct {
	logger *slog.Logger
}

func (m logMessenger) SendStatus(_ context.Context, userID int64, text string) (int64, error) {
	m.logger.Info("send status", "user_id", userID, "text", text)
	return 0, nil
}

func (m logMessenger) UpdateStatus(_ context.Context, userID, messageID int64, text string) error {
	m.logger.Info("update status", "user_id", userID, "message_id", messageID, "text", text)
	return nil
}

func (m logMessenger) DeleteStatus(_ context.Context, userID, messageID int64) error {
	m.logger.Info("delete status", "user_id", userID, "message_id", messageID)
	return nil
}

func (m logMessenger) Deliver(_ context.Context, userID int64, sinkPath, caption string) (string, error) {
	m.logger.Info("deliver artifact", "user_id", userID, "sink", sinkPath, "caption", caption)
	return "", nil
}

func (m logMessenger) DeliverByHandle(_ context.Context, userID int64, fileID, caption string) error {
	m.logger.Info("deliver cached artifact", "user_id", userID, "file_id", fileID, "caption", caption)
	return nil
}
