package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func testCallMetadata() *calldata.CallMetadata {
	return &calldata.CallMetadata{
		Customer: calldata.Customer{Name: "Alex Johnson", AccountNumber: "5033-4329"},
		Debt: calldata.Debt{
			Amount:   150.75,
			Creditor: "Bank of America",
			Status:   calldata.DebtStatusUnpaid,
		},
		Dial: calldata.Dial{To: "+15551234567", TransferTo: "+15557654321"},
	}
}

type stubQueue struct {
	sent    []string
	sendErr error
}

func (s *stubQueue) Send(ctx context.Context, body string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}

type stubJobRecorder struct {
	pending []*JobRecord
	putErr  error
}

func (s *stubJobRecorder) PutPending(_ context.Context, job *JobRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.pending = append(s.pending, job)
	return nil
}

func (s *stubJobRecorder) GetJob(_ context.Context, dispatchID string) (*JobRecord, error) {
	for _, j := range s.pending {
		if j.DispatchID == dispatchID {
			return j, nil
		}
	}
	return nil, ErrJobNotFound
}

func TestPublisher_Enqueue(t *testing.T) {
	queue := &stubQueue{}
	jobs := &stubJobRecorder{}
	publisher := NewPublisher(queue, jobs, logging.Default())

	dispatchID, err := publisher.Enqueue(context.Background(), testCallMetadata())
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if dispatchID == "" {
		t.Fatal("expected a dispatch ID")
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(queue.sent))
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(queue.sent[0]), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.ID != dispatchID {
		t.Fatalf("expected payload ID %s, got %s", dispatchID, payload.ID)
	}
	if payload.Metadata.Customer.AccountNumber != "5033-4329" {
		t.Fatalf("metadata not carried: %+v", payload.Metadata)
	}

	if len(jobs.pending) != 1 || jobs.pending[0].DispatchID != dispatchID {
		t.Fatalf("expected a pending job for %s, got %+v", dispatchID, jobs.pending)
	}
}

func TestPublisher_EnqueueRejectsInvalidMetadata(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, nil, logging.Default())

	md := testCallMetadata()
	md.Dial.To = ""

	_, err := publisher.Enqueue(context.Background(), md)
	if !errors.Is(err, ErrInvalidMetadata) {
		t.Fatalf("expected ErrInvalidMetadata, got %v", err)
	}
	if !errors.Is(err, calldata.ErrNoDialTarget) {
		t.Fatalf("expected the cause to be preserved, got %v", err)
	}
	if len(queue.sent) != 0 {
		t.Fatal("invalid metadata must not be enqueued")
	}
}

func TestPublisher_EnqueueJobStoreFailureStopsPublish(t *testing.T) {
	queue := &stubQueue{}
	jobs := &stubJobRecorder{putErr: errors.New("table missing")}
	publisher := NewPublisher(queue, jobs, logging.Default())

	if _, err := publisher.Enqueue(context.Background(), testCallMetadata()); err == nil {
		t.Fatal("expected job store failure to escalate")
	}
	if len(queue.sent) != 0 {
		t.Fatal("nothing may be enqueued without a tracked job")
	}
}
