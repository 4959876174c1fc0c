package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kyb-gateway/config"
	"kyb-gateway/database"
	"kyb-gateway/handler"
	"kyb-gateway/middleware"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/metrics"
	"kyb-gateway/pkg/queue"
	"kyb-gateway/pkg/signature"
	"kyb-gateway/pkg/worker"
	"kyb-gateway/router"
	"kyb-gateway/service"
)

const serviceName = "kyb-gateway"

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		var cfgErr *kyb.ConfigurationError
		if stderrors.As(err, &cfgErr) {
			logger.Errorf("Missing KYB configuration: %s", cfgErr.Field)
		} else {
			logger.Errorf("Failed to load config: %v", err)
		}
		os.Exit(1)
	}

	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = serviceName
	}
	logger.InitWithConfig(cfg.Log)
	defer logger.Close()

	ctx := context.Background()

	dbManager, err := database.NewDatabaseManager(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to initialize database: %v", err)
		os.Exit(1)
	}

	kybMetrics := metrics.InitMetrics()
	recorder := service.NewCallRecorder(dbManager.ProviderCallRepo, kybMetrics)

	kybClient, err := kyb.NewClient(cfg.KYB.SigningConfig(),
		kyb.WithTimeout(cfg.KYB.Timeout()),
		kyb.WithApplicantLevel(cfg.KYB.ApplicantLevel),
		kyb.WithAccessTokenLevel(cfg.KYB.AccessTokenLevel),
		kyb.WithObserver(recorder),
	)
	if err != nil {
		logger.Errorf("Failed to create KYB client: %v", err)
		os.Exit(1)
	}
	verification := service.NewVerificationService(kybClient)

	var webhookVerifier *signature.DigestVerifier
	if cfg.KYB.WebhookSecret != "" {
		if webhookVerifier, err = signature.NewDigestVerifier(cfg.KYB.WebhookSecret); err != nil {
			logger.Errorf("Failed to create webhook verifier: %v", err)
			os.Exit(1)
		}
		logger.Info("Webhook digest verification enabled")
	}

	healthChecks := map[string]handler.Pinger{"mongodb": dbManager.MongoDB}

	var (
		taskQueue  *queue.RedisTaskQueue
		workerPool *worker.WorkerPool
	)
	deps := router.Dependencies{
		ClientService:   dbManager.ClientService,
		Verification:    verification,
		TaskRepo:        dbManager.TaskRepo,
		WebhookVerifier: webhookVerifier,
		Metrics:         kybMetrics,
		HealthChecks:    healthChecks,
	}

	if cfg.Async.Enabled {
		redisCfg := cfg.Async.Redis
		taskQueue, err = queue.NewRedisTaskQueue(ctx, redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.QueueKey)
		if err != nil {
			logger.Errorf("Failed to connect task queue: %v", err)
			os.Exit(1)
		}
		deps.TaskQueue = taskQueue
		healthChecks["redis"] = taskQueue

		workerPool = worker.NewWorkerPool(cfg.Async.WorkerCount, taskQueue, dbManager.TaskRepo, verification,
			worker.WithMetrics(kybMetrics))
		workerPool.Start()
	}

	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimit.DefaultQPS)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("KYB gateway starting on port %d (provider %s, async %t)", cfg.Port, cfg.KYB.BaseURL, cfg.Async.Enabled)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if workerPool != nil {
		workerPool.Stop()
	}
	if taskQueue != nil {
		if err := taskQueue.Close(); err != nil {
			logger.Errorf("Error closing task queue: %v", err)
		}
	}
	if deps.RateLimiter != nil {
		deps.RateLimiter.Close()
	}
	recorder.Wait()

	if err := dbManager.Close(shutdownCtx); err != nil {
		logger.Errorf("Error closing database: %v", err)
	}

	logger.Info("Server exited")
}
