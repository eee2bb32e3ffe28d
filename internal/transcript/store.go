// Package transcript tracks the conversation of a live call and writes
// the final transcript artifact when the call ends.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Entry is a single turn in a call transcript.
type Entry struct {
	Role      string    `json:"role"` // "assistant" or "user"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CallState tracks the lifecycle of an active call in Redis.
type CallState struct {
	Room           string    `json:"room"`
	To             string    `json:"to"`
	AccountNumber  string    `json:"account_number"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Outcome        string    `json:"outcome,omitempty"`
}

const (
	callStateKeyPrefix  = "call:state:"
	transcriptKeyPrefix = "call:transcript:"
	callTTL             = 24 * time.Hour

	CallStatusDialing     = "dialing"
	CallStatusActive      = "active"
	CallStatusEnded       = "ended"
	CallStatusTransferred = "transferred"
)

// Store manages live call state and transcripts in Redis.
type Store struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

// NewStore creates a Redis-backed transcript store. Returns nil when
// redisClient is nil; all methods are nil-safe no-ops in that case.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{
		rdb:    redisClient,
		tracer: otel.Tracer("collections.internal.transcript"),
	}
}

func callStateKey(room string) string  { return callStateKeyPrefix + room }
func transcriptKey(room string) string { return transcriptKeyPrefix + room }

// SaveCallState persists or updates the call state.
func (s *Store) SaveCallState(ctx context.Context, state *CallState) error {
	if s == nil {
		return nil
	}
	if state == nil || state.Room == "" {
		return errors.New("transcript: call state room required")
	}
	if state.LastActivityAt.IsZero() {
		state.LastActivityAt = time.Now().UTC()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("transcript: marshal call state: %w", err)
	}
	return s.rdb.Set(ctx, callStateKey(state.Room), data, callTTL).Err()
}

// GetCallState retrieves the call state, or nil when the room is unknown.
func (s *Store) GetCallState(ctx context.Context, room string) (*CallState, error) {
	if s == nil {
		return nil, nil
	}
	data, err := s.rdb.Get(ctx, callStateKey(room)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("transcript: get call state: %w", err)
	}
	var state CallState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("transcript: unmarshal call state: %w", err)
	}
	return &state, nil
}

// Append adds one turn to the live transcript.
func (s *Store) Append(ctx context.Context, room string, entry Entry) error {
	if s == nil {
		return nil
	}
	if room == "" {
		return errors.New("transcript: room required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transcript: marshal entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := transcriptKey(room)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, callTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append entry: %w", err)
	}
	return nil
}

// List returns the full transcript for a room, oldest first.
func (s *Store) List(ctx context.Context, room string) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := s.rdb.LRange(ctx, transcriptKey(room), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("transcript: list entries: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("transcript: unmarshal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
