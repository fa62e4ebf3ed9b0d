package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const likesWindow = time.Minute

type WindowStore interface {
	AdmitSliding(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, time.Duration, error)
	WindowState(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Duration, error)
}

// Limiter caps new likes per user over a rolling minute. A perMinute of zero disables it.
type Limiter struct {
	store     WindowStore
	perMinute int
	now       func() time.Time
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		now:       time.Now,
	}
}

// AllowLike admits one like attempt. When rejected it returns the seconds until a slot frees up.
func (l *Limiter) AllowLike(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.perMinute == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	allowed, wait, err := l.store.AdmitSliding(ctx, likesKey(userID), l.perMinute, likesWindow, l.now())
	if err != nil {
		return 0, false, err
	}
	if !allowed {
		return ceilSeconds(wait), false, nil
	}

	return 0, true, nil
}

func (l *Limiter) RetryAfterLike(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.perMinute == 0 {
		return 0, nil
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	count, wait, err := l.store.WindowState(ctx, likesKey(userID), likesWindow, l.now())
	if err != nil {
		return 0, err
	}
	if count < int64(l.perMinute) {
		return 0, nil
	}

	return ceilSeconds(wait), nil
}

func likesKey(userID int64) string {
	return "rate:likes:" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
