package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

const jobTTL = 24 * time.Hour

// JobStatus represents the lifecycle of a call dispatch.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested dispatch ID does not exist.
var ErrJobNotFound = errors.New("dispatch: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord captures the persisted state of one call dispatch.
type JobRecord struct {
	DispatchID   string                 `dynamodbav:"dispatchId" json:"dispatch_id"`
	Status       JobStatus              `dynamodbav:"status" json:"status"`
	Metadata     *calldata.CallMetadata `dynamodbav:"metadata,omitempty" json:"metadata,omitempty"`
	Room         string                 `dynamodbav:"room,omitempty" json:"room,omitempty"`
	Outcome      string                 `dynamodbav:"outcome,omitempty" json:"outcome,omitempty"`
	ErrorMessage string                 `dynamodbav:"errorMessage,omitempty" json:"error_message,omitempty"`
	CreatedAt    string                 `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    string                 `dynamodbav:"updatedAt" json:"updated_at"`
	ExpiresAt    int64                  `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// JobRecorder persists new dispatches and serves status lookups.
type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	GetJob(ctx context.Context, dispatchID string) (*JobRecord, error)
}

// JobUpdater records dispatch outcomes.
type JobUpdater interface {
	MarkCompleted(ctx context.Context, dispatchID, room, outcome string) error
	MarkFailed(ctx context.Context, dispatchID, errMsg string) error
}

// JobStore persists dispatch records to DynamoDB.
type JobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ JobRecorder = (*JobStore)(nil)
var _ JobUpdater = (*JobStore)(nil)

// NewJobStore builds a store backed by the provided DynamoDB client.
func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("dispatch: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("dispatch: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{client: client, tableName: tableName, logger: logger}
}

// PutPending inserts a new pending dispatch record.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("dispatch: job cannot be nil")
	}
	now := time.Now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("dispatch: failed to marshal job: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(dispatchId)"),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to persist job: %w", err)
	}
	return nil
}

// MarkCompleted records the room and final outcome of a finished call.
func (s *JobStore) MarkCompleted(ctx context.Context, dispatchID, room, outcome string) error {
	if dispatchID == "" {
		return errors.New("dispatch: dispatchID required")
	}
	return s.updateJob(
		ctx,
		dispatchID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":room":    &types.AttributeValueMemberS{Value: room},
			":outcome": &types.AttributeValueMemberS{Value: outcome},
			":error":   &types.AttributeValueMemberS{Value: ""},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":  "status",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		"SET #status = :status, room = :room, outcome = :outcome, #error = :error, #updated = :updated",
	)
}

// MarkFailed updates a dispatch to the failed state.
func (s *JobStore) MarkFailed(ctx context.Context, dispatchID, errMsg string) error {
	if dispatchID == "" {
		return errors.New("dispatch: dispatchID required")
	}
	return s.updateJob(
		ctx,
		dispatchID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":  "status",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		"SET #status = :status, #error = :error, #updated = :updated",
	)
}

// GetJob fetches a dispatch by ID.
func (s *JobStore) GetJob(ctx context.Context, dispatchID string) (*JobRecord, error) {
	if dispatchID == "" {
		return nil, errors.New("dispatch: dispatchID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"dispatchId": &types.AttributeValueMemberS{Value: dispatchID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}

	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("dispatch: failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) updateJob(ctx context.Context, dispatchID string, values map[string]types.AttributeValue, names map[string]string, expression string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"dispatchId": &types.AttributeValueMemberS{Value: dispatchID},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(dispatchId)"),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to update job %s: %w", dispatchID, err)
	}
	return nil
}
