package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// ErrInvalidMetadata wraps validation failures so the HTTP layer can
// map them to 400s.
var ErrInvalidMetadata = errors.New("dispatch: invalid metadata")

// Publisher enqueues call dispatches for asynchronous processing.
type Publisher struct {
	queue  Queue
	jobs   JobRecorder
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. jobs may be nil when
// dispatch status tracking is disabled.
func NewPublisher(queue Queue, jobs JobRecorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// Enqueue validates the metadata, records a pending job, and publishes
// the dispatch. Returns the dispatch ID.
func (p *Publisher) Enqueue(ctx context.Context, md *calldata.CallMetadata) (string, error) {
	if md == nil {
		return "", fmt.Errorf("%w: metadata required", ErrInvalidMetadata)
	}
	if err := md.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	payload, body, err := encodePayload(queuePayload{Metadata: *md})
	if err != nil {
		return "", err
	}

	if p.jobs != nil {
		job := &JobRecord{DispatchID: payload.ID, Metadata: md}
		if err := p.jobs.PutPending(ctx, job); err != nil {
			return "", err
		}
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("dispatch: failed to enqueue: %w", err)
	}

	p.logger.Info("call dispatch enqueued",
		"dispatch_id", payload.ID,
		"account_number", md.Customer.AccountNumber,
	)
	return payload.ID, nil
}
