package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
}

func (m *mockDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = in
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, in)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput != nil {
		return m.getOutput, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func TestJobStore_PutPendingPersistsDefaults(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "call_dispatches", logging.Default())

	job := &JobRecord{
		DispatchID: "disp-123",
		Metadata:   testCallMetadata(),
	}

	if err := store.PutPending(context.Background(), job); err != nil {
		t.Fatalf("PutPending returned error: %v", err)
	}

	if mock.putInput == nil {
		t.Fatalf("expected PutItem to be called")
	}

	var stored JobRecord
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored job: %v", err)
	}

	if stored.Status != JobStatusPending {
		t.Fatalf("expected status pending, got %s", stored.Status)
	}
	if stored.CreatedAt == "" || stored.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
	if stored.ExpiresAt <= time.Now().Unix() {
		t.Fatal("expected TTL to be in the future")
	}
	if stored.Metadata == nil || stored.Metadata.Dial.To != "+15551234567" {
		t.Fatalf("expected metadata to round-trip, got %+v", stored.Metadata)
	}

	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(dispatchId)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}
}

func TestJobStore_PutPendingNilJob(t *testing.T) {
	store := NewJobStore(&mockDynamo{}, "call_dispatches", logging.Default())
	if err := store.PutPending(context.Background(), nil); err == nil {
		t.Fatal("expected error when job is nil")
	}
}

func TestJobStore_MarkCompletedRecordsOutcome(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "call_dispatches", logging.Default())

	if err := store.MarkCompleted(context.Background(), "disp-123", "call-abc", "completed"); err != nil {
		t.Fatalf("MarkCompleted returned error: %v", err)
	}

	if len(mock.updateInputs) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(mock.updateInputs))
	}
	update := mock.updateInputs[0]

	names := update.ExpressionAttributeNames
	if names["#status"] != "status" || names["#error"] != "errorMessage" {
		t.Fatalf("expected reserved attribute names to be aliased, got %v", names)
	}

	values := update.ExpressionAttributeValues
	if got := values[":status"].(*types.AttributeValueMemberS).Value; got != string(JobStatusCompleted) {
		t.Fatalf("expected completed status, got %s", got)
	}
	if got := values[":room"].(*types.AttributeValueMemberS).Value; got != "call-abc" {
		t.Fatalf("expected room to be recorded, got %s", got)
	}
	if got := values[":outcome"].(*types.AttributeValueMemberS).Value; got != "completed" {
		t.Fatalf("expected outcome to be recorded, got %s", got)
	}
	if expr := update.ConditionExpression; expr == nil || !strings.Contains(*expr, "attribute_exists") {
		t.Fatalf("expected update to require an existing job, got %v", expr)
	}
}

func TestJobStore_MarkFailedRecordsError(t *testing.T) {
	mock := &mockDynamo{}
	store := NewJobStore(mock, "call_dispatches", logging.Default())

	if err := store.MarkFailed(context.Background(), "disp-123", "dial failed"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}

	values := mock.updateInputs[0].ExpressionAttributeValues
	if got := values[":status"].(*types.AttributeValueMemberS).Value; got != string(JobStatusFailed) {
		t.Fatalf("expected failed status, got %s", got)
	}
	if got := values[":error"].(*types.AttributeValueMemberS).Value; got != "dial failed" {
		t.Fatalf("expected error message to be recorded, got %s", got)
	}
}

func TestJobStore_GetJobNotFound(t *testing.T) {
	store := NewJobStore(&mockDynamo{}, "call_dispatches", logging.Default())

	_, err := store.GetJob(context.Background(), "missing")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobStore_GetJobRoundTrip(t *testing.T) {
	job := &JobRecord{DispatchID: "disp-123", Status: JobStatusCompleted, Room: "call-abc", Outcome: "completed"}
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	store := NewJobStore(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}, "call_dispatches", logging.Default())

	got, err := store.GetJob(context.Background(), "disp-123")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if got.Status != JobStatusCompleted || got.Room != "call-abc" {
		t.Fatalf("unexpected job: %+v", got)
	}
}
