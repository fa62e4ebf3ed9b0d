package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `id, match_id, user_id, amount_cents, status, created_at, settled_at`

func (r *EscrowRepo) Hold(ctx context.Context, tx pgx.Tx, matchID, userID, cents int64, at time.Time) error {
	if matchID <= 0 || userID <= 0 || cents <= 0 {
		return fmt.Errorf("invalid escrow payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO escrows (
	match_id,
	user_id,
	amount_cents,
	status,
	created_at
) VALUES ($1, $2, $3, 'held', $4)
ON CONFLICT (match_id, user_id) DO NOTHING
`, matchID, userID, cents, at.UTC()); err != nil {
		return fmt.Errorf("hold escrow: %w", err)
	}

	return nil
}

// Settle moves every held deposit of the match to the given status and returns them.
func (r *EscrowRepo) Settle(ctx context.Context, tx pgx.Tx, matchID int64, status enums.EscrowStatus, at time.Time) ([]model.Escrow, error) {
	if matchID <= 0 || status == "" {
		return nil, fmt.Errorf("invalid escrow settle payload")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	rows, err := tx.Query(ctx, `
UPDATE escrows
SET
	status = $2,
	settled_at = $3
WHERE match_id = $1 AND status = 'held'
RETURNING `+escrowColumns, matchID, string(status), at.UTC())
	if err != nil {
		return nil, fmt.Errorf("settle escrow: %w", err)
	}
	defer rows.Close()

	return collectEscrows(rows)
}

// MarkRefunded claims a pending refund. Only the caller that gets true may pay it out.
func (r *EscrowRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, escrowID int64, at time.Time) (bool, error) {
	if escrowID <= 0 {
		return false, fmt.Errorf("invalid escrow id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE escrows
SET
	status = 'refunded',
	settled_at = $2
WHERE id = $1 AND status = 'refund_pending'
`, escrowID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("mark escrow refunded: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListRefundPending returns deposits whose refund was decided but not yet paid out.
func (r *EscrowRepo) ListRefundPending(ctx context.Context, limit int) ([]model.Escrow, error) {
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []model.Escrow{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+escrowColumns+`
FROM escrows
WHERE status = 'refund_pending'
ORDER BY id ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending refunds: %w", err)
	}
	defer rows.Close()

	return collectEscrows(rows)
}

func collectEscrows(rows pgx.Rows) ([]model.Escrow, error) {
	items := make([]model.Escrow, 0, 2)
	for rows.Next() {
		var (
			item   model.Escrow
			status string
		)
		if err := rows.Scan(
			&item.ID,
			&item.MatchID,
			&item.UserID,
			&item.AmountCents,
			&status,
			&item.CreatedAt,
			&item.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("scan escrow: %w", err)
		}
		item.Status = enums.EscrowStatus(status)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate escrows: %w", rows.Err())
	}
	return items, nil
}
