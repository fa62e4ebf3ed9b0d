package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// LockPair serializes work on an unordered user pair until the transaction ends.
func LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error {
	if userID <= 0 || targetID <= 0 {
		return fmt.Errorf("invalid pair lock payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	low, high := userID, targetID
	if low > high {
		low, high = high, low
	}
	return advisoryLock(ctx, tx, "pair:"+strconv.FormatInt(low, 10)+":"+strconv.FormatInt(high, 10))
}

// LockRecipient serializes surfacing for a single recipient until the transaction ends.
func LockRecipient(ctx context.Context, tx pgx.Tx, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	return advisoryLock(ctx, tx, "surface:"+strconv.FormatInt(userID, 10))
}

// LockUser serializes chat admission for a single user until the transaction ends.
// Callers locking several users must take them in ascending id order.
func LockUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	return advisoryLock(ctx, tx, "user:"+strconv.FormatInt(userID, 10))
}

func advisoryLock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}
