package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

type stubRunner struct {
	mu      sync.Mutex
	runs    []string
	runErr  error
	outcome string
}

func (r *stubRunner) Run(_ context.Context, dispatchID string, _ *calldata.CallMetadata) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, dispatchID)
	if r.runErr != nil {
		return "", "dial_failed", r.runErr
	}
	outcome := r.outcome
	if outcome == "" {
		outcome = "completed"
	}
	return "call-abc", outcome, nil
}

func (r *stubRunner) ranDispatches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.runs...)
}

type stubJobUpdater struct {
	mu        sync.Mutex
	completed map[string]string
	failed    map[string]string
}

func newStubJobUpdater() *stubJobUpdater {
	return &stubJobUpdater{completed: map[string]string{}, failed: map[string]string{}}
}

func (s *stubJobUpdater) MarkCompleted(_ context.Context, dispatchID, room, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[dispatchID] = outcome
	return nil
}

func (s *stubJobUpdater) MarkFailed(_ context.Context, dispatchID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[dispatchID] = errMsg
	return nil
}

func (s *stubJobUpdater) completedOutcome(dispatchID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.completed[dispatchID]
	return out, ok
}

func (s *stubJobUpdater) failedMessage(dispatchID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.failed[dispatchID]
	return msg, ok
}

type stubDedup struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (s *stubDedup) AlreadyDispatched(_ context.Context, dispatchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed[dispatchID], nil
}

func (s *stubDedup) MarkDispatched(_ context.Context, dispatchID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed == nil {
		s.claimed = map[string]bool{}
	}
	if s.claimed[dispatchID] {
		return false, nil
	}
	s.claimed[dispatchID] = true
	return true, nil
}

func enqueueDispatch(t *testing.T, q *MemoryQueue, dispatchID string) {
	t.Helper()
	_, body, err := encodePayload(queuePayload{ID: dispatchID, Metadata: *testCallMetadata()})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	if err := q.Send(context.Background(), body); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorker_RunsDispatchedCall(t *testing.T) {
	queue := NewMemoryQueue(8)
	runner := &stubRunner{}
	jobs := newStubJobUpdater()
	worker := NewWorker(runner, queue, jobs, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	enqueueDispatch(t, queue, "disp-1")

	waitFor(t, func() bool {
		_, ok := jobs.completedOutcome("disp-1")
		return ok
	})
	if got := runner.ranDispatches(); len(got) != 1 || got[0] != "disp-1" {
		t.Fatalf("runs: got %v", got)
	}
	if outcome, _ := jobs.completedOutcome("disp-1"); outcome != "completed" {
		t.Fatalf("outcome: got %s", outcome)
	}

	cancel()
	worker.Wait()
}

func TestWorker_MarksFailedDispatches(t *testing.T) {
	queue := NewMemoryQueue(8)
	runner := &stubRunner{runErr: errors.New("busy here")}
	jobs := newStubJobUpdater()
	worker := NewWorker(runner, queue, jobs, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	enqueueDispatch(t, queue, "disp-2")

	waitFor(t, func() bool {
		_, ok := jobs.failedMessage("disp-2")
		return ok
	})
	if msg, _ := jobs.failedMessage("disp-2"); msg != "busy here" {
		t.Fatalf("failure message: got %s", msg)
	}

	cancel()
	worker.Wait()
}

func TestWorker_SkipsDuplicateDeliveries(t *testing.T) {
	queue := NewMemoryQueue(8)
	runner := &stubRunner{}
	jobs := newStubJobUpdater()
	dedup := &stubDedup{}
	worker := NewWorker(runner, queue, jobs, logging.Default(),
		WithWorkerCount(1), WithReceiveWaitSeconds(1), WithDedupStore(dedup))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	enqueueDispatch(t, queue, "disp-3")
	enqueueDispatch(t, queue, "disp-3")

	waitFor(t, func() bool {
		return len(runner.ranDispatches()) >= 1
	})
	// Give the duplicate a chance to be (wrongly) processed.
	time.Sleep(100 * time.Millisecond)
	if got := runner.ranDispatches(); len(got) != 1 {
		t.Fatalf("duplicate delivery must not dial again, ran %v", got)
	}

	cancel()
	worker.Wait()
}

func TestWorker_DropsUndecodableMessages(t *testing.T) {
	queue := NewMemoryQueue(8)
	runner := &stubRunner{}
	worker := NewWorker(runner, queue, nil, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	if err := queue.Send(context.Background(), "{not json"); err != nil {
		t.Fatalf("send: %v", err)
	}
	enqueueDispatch(t, queue, "disp-4")

	waitFor(t, func() bool {
		return len(runner.ranDispatches()) == 1
	})
	if got := runner.ranDispatches(); got[0] != "disp-4" {
		t.Fatalf("runs: got %v", got)
	}

	cancel()
	worker.Wait()
}
