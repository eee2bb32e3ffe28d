// Package events provides the audit-grade record of every compliance
// action taken during a call: one structured log line per action, an
// in-memory sink for the call's lifetime, and an at-shutdown flush to
// durable storage.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// Type names a compliance-relevant action.
type Type string

const (
	TypeIdentityVerification Type = "identity_verification"
	TypeDebtDisputed         Type = "debt_disputed"
	TypeValidationSent       Type = "validation_notice_sent"
	TypePaymentRescheduled   Type = "payment_rescheduled"
	TypePlanOffered          Type = "payment_plan_offered"
	TypePlanStarted          Type = "payment_plan_started"
	TypeSettlementOffered    Type = "settlement_offered"
	TypeHardshipClaim        Type = "hardship_claim"
	TypeCallbackScheduled    Type = "callback_scheduled"
	TypeCeaseCommunication   Type = "cease_communication"
	TypeCreditorPolicy       Type = "creditor_policy_on_default"
)

// Event is an immutable audit record. Monetary values inside Data are
// decimal strings so the audit trail never carries floating-point drift.
type Event struct {
	ID            string         `json:"id"`
	EventType     Type           `json:"event_type"`
	Timestamp     time.Time      `json:"timestamp"`
	AccountNumber string         `json:"account_number"`
	Data          map[string]any `json:"data"`
}

// Recorder accepts events from the compliance state machine. Recording
// must never block or fail a call action; implementations swallow their
// own errors.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// EventStore persists events durably. *Store (Postgres) implements it.
type EventStore interface {
	InsertEvent(ctx context.Context, event Event) error
}

// Log is the per-process event recorder: a synchronous structured log
// line per event plus an in-memory sink flushed to the store at shutdown.
type Log struct {
	logger *logging.Logger
	store  EventStore

	mu     sync.Mutex
	sink   []Event
	synced int
}

// NewLog creates an event log. store may be nil; events are then only
// logged and held in memory.
func NewLog(logger *logging.Logger, store EventStore) *Log {
	if logger == nil {
		logger = logging.Default()
	}
	return &Log{logger: logger, store: store}
}

// Record stamps, buffers, and logs the event. It never returns an error:
// log and persistence failures must not affect call flow.
func (l *Log) Record(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}

	payload, err := json.Marshal(event.Data)
	if err != nil {
		l.logger.Warn("event data not serializable", "event_type", event.EventType, "error", err)
		payload = []byte("{}")
	}
	l.logger.Info(string(event.EventType),
		"event_id", event.ID,
		"account_number", event.AccountNumber,
		"timestamp", event.Timestamp.Format(time.RFC3339),
		"data", json.RawMessage(payload),
	)

	l.mu.Lock()
	l.sink = append(l.sink, event)
	l.mu.Unlock()
}

// Events returns a snapshot of all recorded events in order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.sink))
	copy(out, l.sink)
	return out
}

// Flush persists buffered events to the store. Best-effort: failures are
// logged as warnings and the remaining events stay buffered for a later
// attempt. Safe to call more than once; already-persisted events are
// skipped.
func (l *Log) Flush(ctx context.Context) {
	if l == nil || l.store == nil {
		return
	}

	l.mu.Lock()
	pending := make([]Event, len(l.sink[l.synced:]))
	copy(pending, l.sink[l.synced:])
	offset := l.synced
	l.mu.Unlock()

	persisted := 0
	for _, event := range pending {
		if err := l.store.InsertEvent(ctx, event); err != nil {
			l.logger.Warn("event flush failed",
				"event_type", event.EventType,
				"event_id", event.ID,
				"error", err,
			)
			break
		}
		persisted++
	}

	l.mu.Lock()
	if offset+persisted > l.synced {
		l.synced = offset + persisted
	}
	l.mu.Unlock()

	if persisted > 0 {
		l.logger.Info("event sink flushed", "persisted", persisted, "pending", len(pending)-persisted)
	}
}
