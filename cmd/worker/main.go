package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/therealutkarshpriyadarshi/examprep/internal/cache"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/internal/database"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/examprep/internal/queue"
	"github.com/therealutkarshpriyadarshi/examprep/internal/quota"
	"github.com/therealutkarshpriyadarshi/examprep/internal/scheduler"
	"github.com/therealutkarshpriyadarshi/examprep/internal/webhook"
)

const (
	eventPrefetch        = 10
	webhookRetryInterval = time.Minute
	monitorInterval      = 15 * time.Second
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db, cfg.Quota.Location(), logger)

	// Initialize cache, used for the sweep lock
	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer c.Close()

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	policy := quota.NewPolicy(cfg.Quota)
	webhooks := webhook.NewService(repo, logger)
	sweeper := scheduler.NewPlanExpirySweeper(repo, c, q, policy.Free, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize, logger)
	monitor := monitoring.NewMonitor(q, repo, logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, "worker")
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	// Queued events fan out to webhooks
	if err := q.ConsumeEvents(ctx, eventPrefetch, webhooks.HandleEvent); err != nil {
		logger.Fatalf("Failed to start event consumer: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		webhooks.RetryWorker(ctx, webhookRetryInterval)
	}()
	go func() {
		defer wg.Done()
		monitor.Run(ctx, monitorInterval)
	}()
	sweeper.Start()

	logger.Info("Worker started, consuming events")

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker gracefully...")
	cancel()
	sweeper.Stop()
	wg.Wait()
	webhooks.Wait()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("Metrics server forced to shutdown", err)
		}
	}

	logger.Info("Worker stopped")
}
