package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DedupStore guards against duplicate queue deliveries. SQS is
// at-least-once; a debtor must never be dialed twice for one dispatch.
type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DedupStore struct {
	pool rowQuerier
}

func NewDedupStore(pool *pgxpool.Pool) *DedupStore {
	if pool == nil {
		panic("dispatch: pgx pool required")
	}
	return &DedupStore{pool: pool}
}

func newDedupStoreWithExec(exec rowQuerier) *DedupStore {
	if exec == nil {
		panic("dispatch: exec required")
	}
	return &DedupStore{pool: exec}
}

// AlreadyDispatched checks whether this dispatch ID was already picked up.
func (s *DedupStore) AlreadyDispatched(ctx context.Context, dispatchID string) (bool, error) {
	query := `SELECT 1 FROM processed_dispatches WHERE dispatch_id = $1`
	var exists int
	if err := s.pool.QueryRow(ctx, query, dispatchID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("dispatch: check processed: %w", err)
	}
	return true, nil
}

// MarkDispatched claims a dispatch ID, returning false if another worker
// already did.
func (s *DedupStore) MarkDispatched(ctx context.Context, dispatchID string) (bool, error) {
	query := `
		INSERT INTO processed_dispatches (dispatch_id)
		VALUES ($1)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, dispatchID)
	if err != nil {
		return false, fmt.Errorf("dispatch: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
