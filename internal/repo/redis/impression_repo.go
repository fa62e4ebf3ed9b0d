package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const impressionPrefix = "impression:"

// ImpressionRepo remembers which admirers were recently shown to a viewer.
type ImpressionRepo struct {
	client *goredis.Client
}

func NewImpressionRepo(client *goredis.Client) *ImpressionRepo {
	return &ImpressionRepo{client: client}
}

// FilterCooling drops candidates that are still inside their impression cooldown.
func (r *ImpressionRepo) FilterCooling(ctx context.Context, viewerID int64, candidateIDs []int64) ([]int64, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if viewerID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if len(candidateIDs) == 0 {
		return []int64{}, nil
	}

	pipe := r.client.Pipeline()
	checks := make([]*goredis.IntCmd, len(candidateIDs))
	for i, id := range candidateIDs {
		checks[i] = pipe.Exists(ctx, impressionKey(viewerID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("check impressions: %w", err)
	}

	fresh := make([]int64, 0, len(candidateIDs))
	for i, cmd := range checks {
		if cmd.Val() == 0 {
			fresh = append(fresh, candidateIDs[i])
		}
	}
	return fresh, nil
}

func (r *ImpressionRepo) Record(ctx context.Context, viewerID int64, shownIDs []int64, cooldown time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if viewerID <= 0 || cooldown <= 0 {
		return fmt.Errorf("invalid impression payload")
	}
	if len(shownIDs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, id := range shownIDs {
		pipe.Set(ctx, impressionKey(viewerID, id), 1, cooldown)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record impressions: %w", err)
	}
	return nil
}

func impressionKey(viewerID, candidateID int64) string {
	return impressionPrefix + strconv.FormatInt(viewerID, 10) + ":" + strconv.FormatInt(candidateID, 10)
}
