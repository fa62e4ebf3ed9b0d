package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

const StartChatHint = "You matched! Say hi and start the conversation."

type Outcome string

const (
	OutcomeNotMutual      Outcome = "not_mutual"
	OutcomeAlreadyMatched Outcome = "already_matched"
	OutcomeQueued         Outcome = "queued"
	OutcomeCreated        Outcome = "created"
)

// Formation is the result of one formation attempt for a pair.
type Formation struct {
	Outcome     Outcome
	MatchID     int64
	BusyUserIDs []int64
	// Requeued is set when both edges were already matched and waiting for a free slot.
	Requeued bool
}

func (f Formation) IsMatch() bool {
	return f.Outcome == OutcomeAlreadyMatched || f.Outcome == OutcomeQueued || f.Outcome == OutcomeCreated
}

func (f Formation) Busy(userID int64) bool {
	for _, id := range f.BusyUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FormIfMutual turns two alive reciprocal edges into a match inside the caller's
// transaction. The caller holds the pair lock. When either side is at its tier's
// active-chat capacity, both edges become matched but no match row is created yet.
func (s *Service) FormIfMutual(ctx context.Context, tx pgx.Tx, userID, targetID int64) (Formation, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return Formation{}, ErrValidation
	}

	existing, err := s.deps.Matches.GetByUsers(ctx, tx, userID, targetID)
	if err == nil {
		metrics.RecordFormation(string(OutcomeAlreadyMatched))
		return Formation{Outcome: OutcomeAlreadyMatched, MatchID: existing.ID}, nil
	}
	if !errors.Is(err, pgrepo.ErrMatchNotFound) {
		return Formation{}, err
	}

	alreadyMatched := 0
	for _, edge := range [][2]int64{{userID, targetID}, {targetID, userID}} {
		e, err := s.deps.Likes.Get(ctx, tx, edge[0], edge[1])
		if err != nil {
			if errors.Is(err, pgrepo.ErrLikeNotFound) {
				return Formation{Outcome: OutcomeNotMutual}, nil
			}
			return Formation{}, err
		}
		if !e.State.Alive() {
			return Formation{Outcome: OutcomeNotMutual}, nil
		}
		if e.State == enums.EdgeStateMatched {
			alreadyMatched++
		}
	}

	now := s.now().UTC()

	busy, err := s.busyUsers(ctx, tx, now, userID, targetID)
	if err != nil {
		return Formation{}, err
	}
	if len(busy) > 0 {
		if err := s.deps.Likes.MarkMatched(ctx, tx, userID, targetID, now); err != nil {
			return Formation{}, err
		}
		metrics.RecordFormation(string(OutcomeQueued))
		return Formation{Outcome: OutcomeQueued, BusyUserIDs: busy, Requeued: alreadyMatched == 2}, nil
	}

	matchID, created, err := s.deps.Matches.Create(ctx, tx, userID, targetID, now)
	if err != nil {
		return Formation{}, err
	}
	if !created {
		existing, err := s.deps.Matches.GetByUsers(ctx, tx, userID, targetID)
		if err != nil {
			return Formation{}, fmt.Errorf("reload concurrently created match: %w", err)
		}
		metrics.RecordFormation(string(OutcomeAlreadyMatched))
		return Formation{Outcome: OutcomeAlreadyMatched, MatchID: existing.ID}, nil
	}

	if err := s.deps.Likes.MarkMatched(ctx, tx, userID, targetID, now); err != nil {
		return Formation{}, err
	}
	for _, recipientID := range []int64{userID, targetID} {
		if _, err := s.deps.Messages.InsertSystemHint(ctx, tx, matchID, recipientID, StartChatHint, now); err != nil {
			return Formation{}, err
		}
	}

	metrics.RecordFormation(string(OutcomeCreated))
	return Formation{Outcome: OutcomeCreated, MatchID: matchID}, nil
}

// busyUsers is evaluated inside the deciding transaction and never cached.
func (s *Service) busyUsers(ctx context.Context, tx pgx.Tx, at time.Time, userIDs ...int64) ([]int64, error) {
	busy := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		tier := enums.TierBase
		if s.deps.Tiers != nil {
			t, err := s.deps.Tiers.TierAt(ctx, id, at)
			if err != nil {
				return nil, fmt.Errorf("resolve tier: %w", err)
			}
			tier = t
		}

		active, err := s.deps.Conversations.CountActiveForUser(ctx, tx, id, 0)
		if err != nil {
			return nil, err
		}
		if active >= s.cfg.Limits.For(tier) {
			busy = append(busy, id)
		}
	}
	return busy, nil
}
