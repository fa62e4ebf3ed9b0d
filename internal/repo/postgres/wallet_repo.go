package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInsufficientBalance = errors.New("insufficient wallet balance")

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// BalanceForUpdate reads the balance and locks the wallet row for the rest of the transaction.
// A user without a wallet row has a zero balance.
func (r *WalletRepo) BalanceForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int64
	err := tx.QueryRow(ctx, `
SELECT balance_cents
FROM wallets
WHERE user_id = $1
FOR UPDATE
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get wallet balance: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var balance int64
	err := r.pool.QueryRow(ctx, `
SELECT balance_cents
FROM wallets
WHERE user_id = $1
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get wallet balance: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) Debit(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error {
	if userID <= 0 || cents <= 0 || strings.TrimSpace(reason) == "" {
		return fmt.Errorf("invalid wallet debit payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE wallets
SET
	balance_cents = balance_cents - $2,
	updated_at = $3
WHERE user_id = $1 AND balance_cents >= $2
`, userID, cents, at.UTC())
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}

	return r.appendLedger(ctx, tx, userID, -cents, reason, matchID, at)
}

func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error {
	if userID <= 0 || cents <= 0 || strings.TrimSpace(reason) == "" {
		return fmt.Errorf("invalid wallet credit payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO wallets (
	user_id,
	balance_cents,
	updated_at
) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
	balance_cents = wallets.balance_cents + EXCLUDED.balance_cents,
	updated_at = EXCLUDED.updated_at
`, userID, cents, at.UTC()); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	return r.appendLedger(ctx, tx, userID, cents, reason, matchID, at)
}

func (r *WalletRepo) appendLedger(ctx context.Context, tx pgx.Tx, userID, delta int64, reason string, matchID *int64, at time.Time) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO wallet_ledger (
	id,
	user_id,
	delta_cents,
	reason,
	match_id,
	created_at
) VALUES ($1, $2, $3, $4, $5, $6)
`, uuid.New(), userID, delta, reason, matchID, at.UTC()); err != nil {
		return fmt.Errorf("append wallet ledger: %w", err)
	}
	return nil
}
