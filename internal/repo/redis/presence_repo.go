package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const presencePrefix = "presence:touch:"

type PresenceRepo struct {
	client *goredis.Client
}

func NewPresenceRepo(client *goredis.Client) *PresenceRepo {
	return &PresenceRepo{client: client}
}

// Claim returns true at most once per user per debounce interval.
func (r *PresenceRepo) Claim(ctx context.Context, userID int64, debounce time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || debounce <= 0 {
		return false, fmt.Errorf("invalid presence payload")
	}

	ok, err := r.client.SetNX(ctx, presencePrefix+strconv.FormatInt(userID, 10), 1, debounce).Result()
	if err != nil {
		return false, fmt.Errorf("claim presence slot: %w", err)
	}
	return ok, nil
}
