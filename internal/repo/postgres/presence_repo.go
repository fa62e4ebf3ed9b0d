package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PresenceRepo struct {
	pool *pgxpool.Pool
}

func NewPresenceRepo(pool *pgxpool.Pool) *PresenceRepo {
	return &PresenceRepo{pool: pool}
}

func (r *PresenceRepo) Touch(ctx context.Context, userID int64, at time.Time) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO user_presence (
	user_id,
	last_seen_at
) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET
	last_seen_at = GREATEST(user_presence.last_seen_at, EXCLUDED.last_seen_at)
`, userID, at.UTC()); err != nil {
		return fmt.Errorf("touch presence: %w", err)
	}

	return nil
}

// LastSeen returns nil for a user that was never seen.
func (r *PresenceRepo) LastSeen(ctx context.Context, tx pgx.Tx, userID int64) (*time.Time, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	var lastSeen time.Time
	err := tx.QueryRow(ctx, `
SELECT last_seen_at
FROM user_presence
WHERE user_id = $1
`, userID).Scan(&lastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last seen: %w", err)
	}

	return &lastSeen, nil
}
