package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// DedupChecker guards against duplicate deliveries of one dispatch.
type DedupChecker interface {
	AlreadyDispatched(ctx context.Context, dispatchID string) (bool, error)
	MarkDispatched(ctx context.Context, dispatchID string) (bool, error)
}

// Worker consumes call dispatches from the queue and runs one live call
// per dispatch.
type Worker struct {
	runner Runner
	queue  Queue
	jobs   JobUpdater
	dedup  DedupChecker
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	dedup            DedupChecker
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent call slots. Each slot
// carries at most one live call at a time.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many dispatches to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithDedupStore provides an idempotency store so a redelivered dispatch
// never dials the same debtor twice.
func WithDedupStore(store DedupChecker) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.dedup = store
	}
}

// NewWorker creates a dispatch consumer. jobs may be nil when dispatch
// status tracking is disabled.
func NewWorker(runner Runner, queue Queue, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if runner == nil {
		panic("dispatch: runner cannot be nil")
	}
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		runner: runner,
		queue:  queue,
		jobs:   jobs,
		dedup:  cfg.dedup,
		logger: logger,
		cfg:    cfg,
	}
}

// Start launches the consumer goroutines. They exit when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive dispatches", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode dispatch", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	if !w.claim(ctx, payload.ID) {
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.logger.Info("processing dispatch",
		"dispatch_id", payload.ID,
		"account_number", payload.Metadata.Customer.AccountNumber,
	)

	room, outcome, err := w.runner.Run(ctx, payload.ID, &payload.Metadata)
	if err != nil {
		w.logger.Error("dispatch failed",
			"dispatch_id", payload.ID,
			"outcome", outcome,
			"error", err,
		)
		w.markFailed(payload.ID, err.Error())
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.markCompleted(payload.ID, room, outcome)
	w.deleteMessage(msg.ReceiptHandle)
}

// claim reports whether this worker may run the dispatch. Redeliveries
// of an already-claimed dispatch are dropped.
func (w *Worker) claim(ctx context.Context, dispatchID string) bool {
	if w.dedup == nil {
		return true
	}
	claimed, err := w.dedup.MarkDispatched(ctx, dispatchID)
	if err != nil {
		// Fall back to the read path; when that also fails, drop the
		// message rather than risk dialing the debtor twice.
		seen, seenErr := w.dedup.AlreadyDispatched(ctx, dispatchID)
		if seenErr == nil && !seen {
			return true
		}
		w.logger.Warn("dedup check failed, dropping redelivery", "dispatch_id", dispatchID, "error", err)
		return false
	}
	if !claimed {
		w.logger.Info("skipping duplicate dispatch delivery", "dispatch_id", dispatchID)
	}
	return claimed
}

func (w *Worker) markCompleted(dispatchID, room, outcome string) {
	if w.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.jobs.MarkCompleted(ctx, dispatchID, room, outcome); err != nil {
		w.logger.Error("failed to update dispatch status", "error", err, "dispatch_id", dispatchID)
	}
}

func (w *Worker) markFailed(dispatchID, errMsg string) {
	if w.jobs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.jobs.MarkFailed(ctx, dispatchID, errMsg); err != nil {
		w.logger.Error("failed to update dispatch status", "error", err, "dispatch_id", dispatchID)
	}
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete dispatch message", "error", err)
	}
}
