package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists call events to Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a Postgres-backed event store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertEvent writes one event row. The event's Data map is stored as JSONB.
func (s *Store) InsertEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("events: marshal event data: %w", err)
	}

	query := `
		INSERT INTO call_events (
			id, event_type, account_number, data, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.AccountNumber,
		data,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("events: failed to insert call event: %w", err)
	}

	return nil
}

// ListByAccount returns the stored events for one account, oldest first.
func (s *Store) ListByAccount(ctx context.Context, accountNumber string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, event_type, account_number, data, created_at
		FROM call_events
		WHERE account_number = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, accountNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("events: failed to query call events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event   Event
			rawData []byte
		)
		if err := rows.Scan(&event.ID, &event.EventType, &event.AccountNumber, &rawData, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("events: failed to scan call event: %w", err)
		}
		if len(rawData) > 0 {
			if err := json.Unmarshal(rawData, &event.Data); err != nil {
				return nil, fmt.Errorf("events: failed to decode event data: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: row iteration: %w", err)
	}

	return out, nil
}
