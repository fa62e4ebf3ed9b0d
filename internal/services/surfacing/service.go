package surfacing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

const (
	defaultBoostCandidates    = 5
	defaultImpressionCooldown = 24 * time.Hour
	boostOverfetch            = 4
	defaultCandidateScan      = 200
)

var ErrValidation = errors.New("validation error")

type LikeStore interface {
	LockRecipient(ctx context.Context, tx pgx.Tx, userID int64) error
	ExpireSurfaced(ctx context.Context, tx pgx.Tx, recipientID int64, cutoff, at time.Time) (int64, error)
	PromotionCounts(ctx context.Context, tx pgx.Tx, recipientID int64, windowStart time.Time) (int, int, error)
	ListPromotionCandidates(ctx context.Context, tx pgx.Tx, recipientID int64, cutoff time.Time, limit int) ([]rules.PromotionCandidate, error)
	SurfaceByIDs(ctx context.Context, tx pgx.Tx, edgeIDs []int64, at time.Time) (int64, error)
	ListBoostCandidates(ctx context.Context, viewerID int64, limit int) ([]int64, error)
}

type PresenceStore interface {
	LastSeen(ctx context.Context, tx pgx.Tx, userID int64) (*time.Time, error)
}

type ImpressionStore interface {
	FilterCooling(ctx context.Context, viewerID int64, candidateIDs []int64) ([]int64, error)
	Record(ctx context.Context, viewerID int64, shownIDs []int64, cooldown time.Duration) error
}

type PassStore interface {
	Upsert(ctx context.Context, actorUserID, targetUserID int64, at time.Time) error
}

type Dependencies struct {
	Tx          pgrepo.TxRunner
	Likes       LikeStore
	Presence    PresenceStore
	Impressions ImpressionStore
	Passes      PassStore
	Logger      *zap.Logger
}

type Config struct {
	Policy             rules.SurfacingPolicy
	BoostCandidates    int
	ImpressionCooldown time.Duration
	// CandidateScan bounds how many of the newest eligible hidden likes are scored per surface.
	CandidateScan int
}

// Service promotes hidden likes into view under the recipient's quotas and
// resurfaces buried admirers in the feed.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	cfg.Policy = cfg.Policy.Normalize()
	if cfg.BoostCandidates <= 0 {
		cfg.BoostCandidates = defaultBoostCandidates
	}
	if cfg.ImpressionCooldown <= 0 {
		cfg.ImpressionCooldown = defaultImpressionCooldown
	}
	if cfg.CandidateScan <= 0 {
		cfg.CandidateScan = defaultCandidateScan
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Surface expires stale visible likes and promotes eligible hidden ones in one
// transaction. Concurrent callers for the same recipient serialize on the
// recipient lock. Candidates are ranked by the surfacing policy and promoted
// with one update keyed by the selected ids.
func (s *Service) Surface(ctx context.Context, recipientID int64) (int64, error) {
	if recipientID <= 0 {
		return 0, ErrValidation
	}
	if s.deps.Tx == nil || s.deps.Likes == nil {
		return 0, fmt.Errorf("surfacing dependencies are not configured")
	}

	policy := s.cfg.Policy
	now := s.now().UTC()

	var promoted int64
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.deps.Likes.LockRecipient(ctx, tx, recipientID); err != nil {
			return err
		}
		if _, err := s.deps.Likes.ExpireSurfaced(ctx, tx, recipientID, now.Add(-policy.VisibleTTL), now); err != nil {
			return err
		}

		visible, recent, err := s.deps.Likes.PromotionCounts(ctx, tx, recipientID, now.Add(-policy.PromotionWindow()))
		if err != nil {
			return err
		}
		if policy.PromotionBudget(visible, recent) == 0 {
			return nil
		}

		var lastSeen *time.Time
		if s.deps.Presence != nil {
			seen, err := s.deps.Presence.LastSeen(ctx, tx, recipientID)
			if err != nil {
				return err
			}
			lastSeen = seen
		}
		delay := policy.PromotionDelay(lastSeen, now)
		cutoff := now.Add(-policy.EffectiveDelay(delay, visible))

		candidates, err := s.deps.Likes.ListPromotionCandidates(ctx, tx, recipientID, cutoff, s.cfg.CandidateScan)
		if err != nil {
			return err
		}
		ids := policy.SelectForPromotion(candidates, now, delay, visible, recent)
		if len(ids) == 0 {
			return nil
		}

		n, err := s.deps.Likes.SurfaceByIDs(ctx, tx, ids, now)
		if err != nil {
			return err
		}
		promoted = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("surface likes: %w", err)
	}

	metrics.RecordPromotions(promoted)
	return promoted, nil
}

// InboundBoostCandidates returns up to K admirers of the viewer who were not
// shown within the impression cooldown, and starts their cooldown.
func (s *Service) InboundBoostCandidates(ctx context.Context, viewerID int64) ([]int64, error) {
	if viewerID <= 0 {
		return nil, ErrValidation
	}
	if s.deps.Likes == nil {
		return nil, fmt.Errorf("surfacing dependencies are not configured")
	}

	candidates, err := s.deps.Likes.ListBoostCandidates(ctx, viewerID, s.cfg.BoostCandidates*boostOverfetch)
	if err != nil {
		return nil, fmt.Errorf("list boost candidates: %w", err)
	}

	if s.deps.Impressions != nil {
		fresh, err := s.deps.Impressions.FilterCooling(ctx, viewerID, candidates)
		if err != nil {
			s.logger.Warn("impression filter failed, serving unfiltered", zap.Int64("viewer_id", viewerID), zap.Error(err))
		} else {
			candidates = fresh
		}
	}

	if len(candidates) > s.cfg.BoostCandidates {
		candidates = candidates[:s.cfg.BoostCandidates]
	}

	if s.deps.Impressions != nil && len(candidates) > 0 {
		if err := s.deps.Impressions.Record(ctx, viewerID, candidates, s.cfg.ImpressionCooldown); err != nil {
			s.logger.Warn("impression record failed", zap.Int64("viewer_id", viewerID), zap.Error(err))
		}
	}

	return candidates, nil
}

func (s *Service) RecordPass(ctx context.Context, actorUserID, targetUserID int64) error {
	if actorUserID <= 0 || targetUserID <= 0 || actorUserID == targetUserID {
		return ErrValidation
	}
	if s.deps.Passes == nil {
		return fmt.Errorf("surfacing dependencies are not configured")
	}
	if err := s.deps.Passes.Upsert(ctx, actorUserID, targetUserID, s.now().UTC()); err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	return nil
}
