package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, reason enums.BlockReason) error {
	if actorUserID <= 0 || targetUserID <= 0 || actorUserID == targetUserID {
		return fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO blocks (
	actor_user_id,
	target_user_id,
	reason,
	created_at
) VALUES ($1, $2, $3, NOW())
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	reason = EXCLUDED.reason
`, actorUserID, targetUserID, string(reason)); err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}

	return nil
}

// BlockedEither reports whether either user has blocked the other.
func (r *BlockRepo) BlockedEither(ctx context.Context, tx pgx.Tx, userID, targetID int64) (bool, error) {
	if userID <= 0 || targetID <= 0 {
		return false, fmt.Errorf("invalid block lookup payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var blocked bool
	if err := tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM blocks
	WHERE
		(actor_user_id = $1 AND target_user_id = $2)
		OR (actor_user_id = $2 AND target_user_id = $1)
)
`, userID, targetID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}

	return blocked, nil
}
