package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/therealutkarshpriyadarshi/examprep/internal/account"
	"github.com/therealutkarshpriyadarshi/examprep/internal/aiflow"
	"github.com/therealutkarshpriyadarshi/examprep/internal/cache"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/internal/coupon"
	"github.com/therealutkarshpriyadarshi/examprep/internal/database"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/middleware"
	"github.com/therealutkarshpriyadarshi/examprep/internal/pdfrender"
	"github.com/therealutkarshpriyadarshi/examprep/internal/queue"
	"github.com/therealutkarshpriyadarshi/examprep/internal/quota"
	"github.com/therealutkarshpriyadarshi/examprep/internal/storage"
	"github.com/therealutkarshpriyadarshi/examprep/internal/tracing"
)

const maxDocumentSize = 20 << 20

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

	gin.SetMode(gin.ReleaseMode)

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.ErrorWithErr("Failed to initialize tracer, continuing without tracing", err)
		} else {
			defer closer.Close()
		}
	}

	auth, err := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("Failed to configure authentication: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to prepare schema: %v", err)
	}

	loc := cfg.Quota.Location()
	repo := database.NewRepository(db, loc, logger)

	// Initialize cache
	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer c.Close()

	// Initialize storage
	stor, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	oracle, err := aiflow.NewOpenAIOracle(cfg.AI)
	if err != nil {
		logger.Fatalf("Failed to configure AI client: %v", err)
	}

	renderer := pdfrender.New(cfg.Renderer, logger)
	defer renderer.Close()

	policy := quota.NewPolicy(cfg.Quota)

	api := &API{
		quota:         quota.NewManager(repo, policy, loc, logger),
		coupons:       coupon.NewManager(repo, q, logger),
		accounts:      account.NewService(repo, auth, policy, loc, cfg.Auth.AdminEmails, cfg.Auth.BcryptCost, logger),
		ai:            aiflow.NewInvoker(oracle, c, cfg.AI.CacheTTL, logger),
		renderer:      renderer,
		docs:          stor,
		support:       repo,
		events:        q,
		health:        db,
		logger:        logger,
		maxUploadSize: maxDocumentSize,
		healthTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go rateLimiter.Cleanup(ctx)

	router := setupRouter(api, RouterDeps{
		Auth:           auth,
		Profiles:       repo,
		RateLimiter:    rateLimiter,
		BurstLimiter:   c,
		BurstLimit:     cfg.Quota.BurstLimit,
		BurstWindow:    cfg.Quota.BurstWindow,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, "api")
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("Metrics server forced to shutdown", err)
		}
	}

	logger.Info("Server stopped")
}
