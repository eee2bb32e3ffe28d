package dispatch

import (
	"context"
	"fmt"

	"github.com/collectwise/collections-ai-platform/internal/agent"
	"github.com/collectwise/collections-ai-platform/internal/call"
	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/internal/events"
	"github.com/collectwise/collections-ai-platform/internal/observability/metrics"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// SessionFactory produces a fresh conversational session for one call.
type SessionFactory func() call.Session

// Runner executes one dispatched call end to end.
type Runner interface {
	Run(ctx context.Context, dispatchID string, md *calldata.CallMetadata) (room, outcome string, err error)
}

// CallRunner wires the coordinator, the termination controller, and the
// per-call audit machinery into a single run.
type CallRunner struct {
	coordinator   *call.Coordinator
	controller    *call.Controller
	sessions      SessionFactory
	eventStore    events.EventStore
	transcriptDir string
	uploader      transcript.Uploader
	metrics       *metrics.CallMetrics
	logger        *logging.Logger
}

// CallRunnerConfig configures a CallRunner.
type CallRunnerConfig struct {
	Coordinator *call.Coordinator
	Controller  *call.Controller
	Sessions    SessionFactory
	// EventStore persists audit events at call end. Optional; events are
	// still logged when nil.
	EventStore events.EventStore
	// TranscriptDir is where transcript artifacts land on disk.
	TranscriptDir string
	// Uploader optionally ships transcript artifacts to object storage.
	Uploader transcript.Uploader
	Metrics  *metrics.CallMetrics
	Logger   *logging.Logger
}

// NewCallRunner creates a runner for dispatched calls.
func NewCallRunner(cfg CallRunnerConfig) (*CallRunner, error) {
	if cfg.Coordinator == nil || cfg.Controller == nil || cfg.Sessions == nil {
		return nil, fmt.Errorf("dispatch: coordinator, controller, and session factory required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &CallRunner{
		coordinator:   cfg.Coordinator,
		controller:    cfg.Controller,
		sessions:      cfg.Sessions,
		eventStore:    cfg.EventStore,
		transcriptDir: cfg.TranscriptDir,
		uploader:      cfg.Uploader,
		metrics:       cfg.Metrics,
		logger:        logger,
	}, nil
}

// Run places the call and drives it to completion. The transcript
// artifact is saved and audit events are flushed on every exit path,
// failed dials included.
func (r *CallRunner) Run(ctx context.Context, dispatchID string, md *calldata.CallMetadata) (string, string, error) {
	log := events.NewLog(r.logger, r.eventStore)
	ag := agent.New(md, log, r.metrics, r.logger)
	session := r.sessions()

	defer log.Flush(context.WithoutCancel(ctx))

	handle, err := r.coordinator.StartCall(ctx, session, ag)
	if err != nil {
		return "", "dial_failed", err
	}

	sink := transcript.NewSink(r.transcriptDir, handle.Room, session.History, r.uploader, r.logger)
	defer sink.Flush(context.WithoutCancel(ctx))

	toolset := call.NewToolset(handle, r.controller, r.metrics, r.logger)
	session.BindTools(toolset)

	r.logger.Info("call running", "dispatch_id", dispatchID, "room", handle.Room)

	select {
	case <-session.Done():
	case <-ctx.Done():
		// Worker shutdown: hang up gracefully rather than orphaning the
		// provider leg.
		endCtx := context.WithoutCancel(ctx)
		if err := r.controller.EndCall(endCtx, handle, "worker_shutdown"); err != nil {
			r.logger.Error("failed to end call on shutdown", "room", handle.Room, "error", err)
		}
		return handle.Room, "worker_shutdown", ctx.Err()
	}

	return handle.Room, "completed", nil
}
