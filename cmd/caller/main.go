// The caller worker consumes call dispatches from the queue and runs
// one outbound collections call per dispatch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/collectwise/collections-ai-platform/cmd/mainconfig"
	"github.com/collectwise/collections-ai-platform/internal/app/bootstrap"
	"github.com/collectwise/collections-ai-platform/internal/call"
	appconfig "github.com/collectwise/collections-ai-platform/internal/config"
	"github.com/collectwise/collections-ai-platform/internal/dispatch"
	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/internal/telephony"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting caller worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := telephony.NewAPIClient(telephony.APIClientConfig{
		APIKey:  cfg.CallControlAPIKey,
		BaseURL: cfg.CallControlBaseURL,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create call-control client", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	callStates := bootstrap.BuildCallStateStore(redisClient)
	eventStore, sqlDB := bootstrap.BuildEventStore(cfg, logger)
	if sqlDB != nil {
		defer func() { _ = sqlDB.Close() }()
	}

	callMetrics := metrics.NewCallMetrics(nil)

	coordinator, err := call.NewCoordinator(call.CoordinatorConfig{
		Dialer:      provider,
		Rooms:       provider,
		SIPTrunkID:  cfg.SIPOutboundTrunkID,
		JoinTimeout: cfg.ParticipantJoinTimeout,
		Store:       callStates,
		Metrics:     callMetrics,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create coordinator", "error", err)
		os.Exit(1)
	}

	controller, err := call.NewController(call.ControllerConfig{
		Rooms:        provider,
		Transfers:    provider,
		PlayoutGrace: cfg.PlayoutGracePeriod,
		Store:        callStates,
		Metrics:      callMetrics,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to create controller", "error", err)
		os.Exit(1)
	}

	var (
		queue    dispatch.Queue
		jobStore *dispatch.JobStore
		uploader transcript.Uploader
	)
	if cfg.UseMemoryQueue {
		queue = dispatch.NewMemoryQueue(64)
		logger.Warn("using in-memory dispatch queue; only dispatches from this process are visible")
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue = dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL)
		if cfg.DispatchJobTable != "" {
			jobStore = dispatch.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.DispatchJobTable, logger)
		}
		if cfg.TranscriptBucket != "" {
			uploader = transcript.NewS3Uploader(s3.NewFromConfig(awsCfg), cfg.TranscriptBucket)
		}
	}

	runnerCfg := dispatch.CallRunnerConfig{
		Coordinator:   coordinator,
		Controller:    controller,
		Sessions:      func() call.Session { return call.NewStubSession(45*time.Second, logger) },
		TranscriptDir: cfg.TranscriptDir,
		Uploader:      uploader,
		Metrics:       callMetrics,
		Logger:        logger,
	}
	if eventStore != nil {
		runnerCfg.EventStore = eventStore
	}
	runner, err := dispatch.NewCallRunner(runnerCfg)
	if err != nil {
		logger.Error("failed to create call runner", "error", err)
		os.Exit(1)
	}

	opts := []dispatch.WorkerOption{dispatch.WithWorkerCount(cfg.WorkerCount)}
	if pool := bootstrap.BuildDedupPool(ctx, cfg, logger); pool != nil {
		defer pool.Close()
		opts = append(opts, dispatch.WithDedupStore(dispatch.NewDedupStore(pool)))
	}

	var jobs dispatch.JobUpdater
	if jobStore != nil {
		jobs = jobStore
	}
	worker := dispatch.NewWorker(runner, queue, jobs, logger, opts...)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down caller worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("caller worker stopped")
	case <-doneCtx.Done():
		logger.Error("caller worker shutdown timed out", "error", doneCtx.Err())
	}
}
