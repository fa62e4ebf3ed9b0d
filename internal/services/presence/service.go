package presence

import (
	"context"
	"fmt"
	"time"
)

const DefaultDebounce = 60 * time.Second

type Debouncer interface {
	Claim(ctx context.Context, userID int64, debounce time.Duration) (bool, error)
}

type Store interface {
	Touch(ctx context.Context, userID int64, at time.Time) error
}

// Service records last-seen times, writing to storage at most once per debounce interval.
type Service struct {
	debouncer Debouncer
	store     Store
	debounce  time.Duration
	now       func() time.Time
}

func NewService(debouncer Debouncer, store Store, debounce time.Duration) *Service {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Service{
		debouncer: debouncer,
		store:     store,
		debounce:  debounce,
		now:       time.Now,
	}
}

func (s *Service) Touch(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if s.store == nil {
		return nil
	}

	if s.debouncer != nil {
		claimed, err := s.debouncer.Claim(ctx, userID, s.debounce)
		if err != nil {
			return fmt.Errorf("claim presence debounce: %w", err)
		}
		if !claimed {
			return nil
		}
	}

	return s.store.Touch(ctx, userID, s.now().UTC())
}
