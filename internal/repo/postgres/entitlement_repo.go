package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

type EntitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) *EntitlementRepo {
	return &EntitlementRepo{pool: pool}
}

func (r *EntitlementRepo) IsPlusActive(ctx context.Context, userID int64, at time.Time) (bool, *time.Time, error) {
	if userID <= 0 {
		return false, nil, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return false, nil, nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var plusUntil *time.Time
	err := r.pool.QueryRow(ctx, `
SELECT plus_expires_at
FROM entitlements
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&plusUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("get entitlement plus status: %w", err)
	}

	if plusUntil == nil || !plusUntil.After(at.UTC()) {
		return false, plusUntil, nil
	}

	return true, plusUntil, nil
}

// TierAt resolves the subscription tier a user holds at the given instant.
func (r *EntitlementRepo) TierAt(ctx context.Context, userID int64, at time.Time) (enums.Tier, error) {
	isPlus, _, err := r.IsPlusActive(ctx, userID, at)
	if err != nil {
		return "", err
	}
	return rules.TierFromPlus(isPlus), nil
}
