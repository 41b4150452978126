package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nftlender/backend/internal/wallet"
)

// SessionRepository stores the wallet session as a single keyed row.
type SessionRepository struct {
	pool *pgxpool.Pool
	key  string
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool, key: wallet.AccountKey}
}

func (r *SessionRepository) Load(ctx context.Context) (string, error) {
	q := `SELECT account FROM wallet_sessions WHERE key = $1`
	var account string
	err := r.pool.QueryRow(ctx, q, r.key).Scan(&account)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return account, err
}

func (r *SessionRepository) Save(ctx context.Context, account string) error {
	q := `
INSERT INTO wallet_sessions (key, account, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET account = EXCLUDED.account, updated_at = now()`
	_, err := r.pool.Exec(ctx, q, r.key, account)
	return err
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	q := `DELETE FROM wallet_sessions WHERE key = $1`
	_, err := r.pool.Exec(ctx, q, r.key)
	return err
}
