package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// TelegramChatID resolves where bot notifications for the user are delivered.
func (r *UserRepo) TelegramChatID(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return 0, ErrUserNotFound
	}

	var chatID *int64
	err := r.pool.QueryRow(ctx, `
SELECT telegram_id
FROM users
WHERE id = $1
LIMIT 1
`, userID).Scan(&chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("get user telegram id: %w", err)
	}
	if chatID == nil || *chatID == 0 {
		return 0, ErrUserNotFound
	}

	return *chatID, nil
}
