// Package dispatch turns call requests into outbound calls: an HTTP
// surface accepts dispatch metadata, a queue carries it, and a worker
// pool runs one live call per dispatch.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/collectwise/collections-ai-platform/internal/calldata"
)

// Queue carries encoded dispatches between the API and the caller
// worker. MemoryQueue and SQSQueue implement it.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type queuePayload struct {
	ID       string                `json:"id"`
	Metadata calldata.CallMetadata `json:"metadata"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("dispatch: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
