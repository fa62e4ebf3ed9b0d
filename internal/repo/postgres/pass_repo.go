package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PassRepo struct {
	pool *pgxpool.Pool
}

func NewPassRepo(pool *pgxpool.Pool) *PassRepo {
	return &PassRepo{pool: pool}
}

// Upsert remembers that actor skipped target so the admirer feed stops offering them.
func (r *PassRepo) Upsert(ctx context.Context, actorUserID, targetUserID int64, at time.Time) error {
	if actorUserID <= 0 || targetUserID <= 0 || actorUserID == targetUserID {
		return fmt.Errorf("invalid pass payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO passes (
	actor_user_id,
	target_user_id,
	created_at
) VALUES ($1, $2, $3)
ON CONFLICT (actor_user_id, target_user_id) DO UPDATE SET
	created_at = EXCLUDED.created_at
`, actorUserID, targetUserID, at.UTC()); err != nil {
		return fmt.Errorf("upsert pass: %w", err)
	}

	return nil
}
