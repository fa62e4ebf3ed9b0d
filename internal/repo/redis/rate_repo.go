package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// slidingWindowScript admits one event into a sorted-set window unless the
// window is already full. Rejected attempts are not recorded.
// ARGV: now ms, cutoff ms, limit, member, window ms.
// Returns {admitted, count, oldestMillis}.
var slidingWindowScript = goredis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local oldestScore = 0
	if oldest[2] then
		oldestScore = tonumber(oldest[2])
	end
	return {0, count, oldestScore}
end

redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return {1, count + 1, 0}
`)

type RateRepo struct {
	client *goredis.Client
}

func NewRateRepo(client *goredis.Client) *RateRepo {
	return &RateRepo{client: client}
}

// AdmitSliding records one event at now when fewer than limit events happened
// within the trailing window. On rejection it returns how long until the oldest
// event leaves the window.
func (r *RateRepo) AdmitSliding(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error) {
	if r.client == nil {
		return false, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || limit <= 0 || window <= 0 {
		return false, 0, fmt.Errorf("invalid rate window payload")
	}

	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	raw, err := slidingWindowScript.Run(ctx, r.client, []string{key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		limit,
		strconv.FormatInt(nowMs, 10)+":"+uuid.NewString(),
		strconv.FormatInt(windowMs, 10),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("run sliding window script: %w", err)
	}
	if len(raw) != 3 {
		return false, 0, fmt.Errorf("unexpected sliding window reply: %v", raw)
	}
	if raw[0] == 1 {
		return true, 0, nil
	}

	return false, retryAfter(raw[2], windowMs, nowMs), nil
}

// WindowState reports how many events are inside the trailing window and how long
// until the oldest of them leaves it.
func (r *RateRepo) WindowState(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Duration, error) {
	if r.client == nil {
		return 0, 0, fmt.Errorf("redis client is nil")
	}
	if key == "" || window <= 0 {
		return 0, 0, fmt.Errorf("invalid rate window payload")
	}

	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	minScore := "(" + strconv.FormatInt(nowMs-windowMs, 10)

	count, err := r.client.ZCount(ctx, key, minScore, "+inf").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("count rate window: %w", err)
	}
	if count == 0 {
		return 0, 0, nil
	}

	oldest, err := r.client.ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min:   minScore,
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("read rate window head: %w", err)
	}
	if len(oldest) == 0 {
		return count, 0, nil
	}

	return count, retryAfter(int64(oldest[0].Score), windowMs, nowMs), nil
}

func retryAfter(oldestMs, windowMs, nowMs int64) time.Duration {
	wait := oldestMs + windowMs - nowMs
	if wait <= 0 {
		return time.Millisecond
	}
	return time.Duration(wait) * time.Millisecond
}
