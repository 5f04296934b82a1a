package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nftstore/internal/domain"
)

// ActivityStore implements domain.ActivityStore using PostgreSQL.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a new ActivityStore backed by the given pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Record journals one create or buy attempt.
func (s *ActivityStore) Record(ctx context.Context, a domain.Activity) error {
	const query = `
		INSERT INTO activity (kind, account, item_id, price, tx_hash, status, error_kind)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''))`
	_, err := s.pool.Exec(ctx, query,
		string(a.Kind), a.Account, a.ItemID, a.Price, a.TxHash, string(a.Status), a.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("postgres: record activity %s %s: %w", a.Kind, a.ItemID, err)
	}
	return nil
}

// ListByAccount returns the account's journal newest first. Addresses are
// compared case-insensitively.
func (s *ActivityStore) ListByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.Activity, error) {
	query, args := listQuery(`
		SELECT id, kind, account, item_id, price, COALESCE(tx_hash, ''), status,
		       COALESCE(error_kind, ''), created_at
		FROM activity WHERE LOWER(account) = LOWER($1)`, []any{account}, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanActivity)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity rows: %w", err)
	}
	return out, nil
}

func scanActivity(row pgx.CollectableRow) (domain.Activity, error) {
	var a domain.Activity
	var kind, status string
	err := row.Scan(&a.ID, &kind, &a.Account, &a.ItemID, &a.Price, &a.TxHash, &status, &a.ErrorKind, &a.CreatedAt)
	a.Kind = domain.ActivityKind(kind)
	a.Status = domain.ActivityStatus(status)
	return a, err
}

var _ domain.ActivityStore = (*ActivityStore)(nil)
