package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/collectwise/collections-ai-platform/cmd/mainconfig"
	"github.com/collectwise/collections-ai-platform/internal/api/router"
	appconfig "github.com/collectwise/collections-ai-platform/internal/config"
	"github.com/collectwise/collections-ai-platform/internal/dispatch"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting collections dispatch API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	var (
		queue    dispatch.Queue
		jobStore *dispatch.JobStore
	)
	if cfg.UseMemoryQueue {
		queue = dispatch.NewMemoryQueue(64)
		logger.Warn("using in-memory dispatch queue; dispatches do not survive restarts")
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue = dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL)
		if cfg.DispatchJobTable != "" {
			jobStore = dispatch.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.DispatchJobTable, logger)
		}
	}

	var recorder dispatch.JobRecorder
	if jobStore != nil {
		recorder = jobStore
	}
	publisher := dispatch.NewPublisher(queue, recorder, logger)
	dispatchHandler := dispatch.NewHandler(publisher, recorder, logger)

	r := router.New(&router.Config{
		Logger:            logger,
		DispatchHandler:   dispatchHandler,
		AdminAuthSecret:   cfg.AdminJWTSecret,
		MetricsHandler:    promhttp.Handler(),
		DispatchRateLimit: 5,
		DispatchRateBurst: 10,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
