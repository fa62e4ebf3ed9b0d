package likes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
	matchsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/matches"
)

const (
	defaultIncomingLimit = 50
	defaultPhotoURLTTL   = 15 * time.Minute
)

var (
	ErrValidation      = errors.New("validation error")
	ErrDailyLimit      = errors.New("daily likes limit reached")
	ErrUnavailable     = errors.New("user is not available")
	ErrDependenciesNil = errors.New("likes dependencies are not configured")
)

type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

type LikeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error
	Get(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64) (model.LikeEdge, error)
	Upsert(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64, annotation *model.Annotation, at time.Time) (bool, error)
	ListIncomingVisible(ctx context.Context, recipientID int64, limit int) ([]pgrepo.IncomingLikeRecord, error)
}

type QuotaStore interface {
	GetLikesUsed(ctx context.Context, userID int64, dayKey string) (int, error)
	ConsumeLikeWithLimit(ctx context.Context, tx pgx.Tx, userID int64, dayKey, timezone string, limit int) (int, error)
}

type BlockChecker interface {
	BlockedEither(ctx context.Context, tx pgx.Tx, userID, targetID int64) (bool, error)
}

type TierResolver interface {
	TierAt(ctx context.Context, userID int64, at time.Time) (enums.Tier, error)
}

type Matcher interface {
	FormIfMutual(ctx context.Context, tx pgx.Tx, userID, targetID int64) (matchsvc.Formation, error)
}

type RateLimiter interface {
	AllowLike(ctx context.Context, userID int64) (int64, bool, error)
	RetryAfterLike(ctx context.Context, userID int64) (int64, error)
}

type Surfacer interface {
	Surface(ctx context.Context, recipientID int64) (int64, error)
}

type Notifier interface {
	NotifyMatch(ctx context.Context, toUserID, fromUserID int64, matchID *int64)
	NotifyLike(ctx context.Context, toUserID, fromUserID int64)
}

type PhotoSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Dependencies struct {
	Tx       pgrepo.TxRunner
	Likes    LikeStore
	Quotas   QuotaStore
	Blocks   BlockChecker
	Tiers    TierResolver
	Matcher  Matcher
	Limiter  RateLimiter
	Surfacer Surfacer
	Notifier Notifier
	Photos   PhotoSigner
	Logger   *zap.Logger
}

type Config struct {
	FreeLikesPerDay int
	DefaultTimezone string
	IncomingLimit   int
	PhotoURLTTL     time.Duration
}

type Result struct {
	IsMatch   bool
	MatchID   *int64
	IsPending bool
}

type Snapshot struct {
	Tier              enums.Tier
	LikesLeft         int
	ResetAt           time.Time
	TooFastRetryAfter *int64
}

type IncomingLike struct {
	EdgeID     int64
	FromUserID int64
	Annotation *model.Annotation
	PhotoURL   string
	LikedAt    time.Time
	SurfacedAt *time.Time
}

type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.FreeLikesPerDay <= 0 {
		cfg.FreeLikesPerDay = rules.FreeLikesPerDay
	}
	if strings.TrimSpace(cfg.DefaultTimezone) == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.IncomingLimit <= 0 {
		cfg.IncomingLimit = defaultIncomingLimit
	}
	if cfg.PhotoURLTTL <= 0 {
		cfg.PhotoURLTTL = defaultPhotoURLTTL
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

// RecordLike stores or refreshes the directed like and hands a reciprocated pair
// to match formation in the same transaction. Re-liking only replaces the annotation.
func (s *Service) RecordLike(ctx context.Context, fromUserID, toUserID int64, annotation *model.Annotation) (Result, error) {
	if fromUserID <= 0 || toUserID <= 0 || fromUserID == toUserID {
		return Result{}, ErrValidation
	}
	if annotation != nil {
		if err := annotation.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if s.deps.Tx == nil || s.deps.Likes == nil || s.deps.Matcher == nil {
		return Result{}, ErrDependenciesNil
	}

	if s.deps.Limiter != nil {
		retryAfter, allowed, err := s.deps.Limiter.AllowLike(ctx, fromUserID)
		if err != nil {
			return Result{}, fmt.Errorf("check like rate: %w", err)
		}
		if !allowed {
			metrics.RecordLike("rate_limited")
			return Result{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	now := s.now().UTC()
	tier, err := s.resolveTier(ctx, fromUserID, now)
	if err != nil {
		return Result{}, err
	}
	loc, tzName := s.resolveTimezone("")
	dayKey := rules.DayKey(now, loc)

	var (
		inserted  bool
		formation matchsvc.Formation
	)
	err = s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.deps.Likes.LockPair(ctx, tx, fromUserID, toUserID); err != nil {
			return err
		}
		if s.deps.Blocks != nil {
			blocked, err := s.deps.Blocks.BlockedEither(ctx, tx, fromUserID, toUserID)
			if err != nil {
				return err
			}
			if blocked {
				return ErrUnavailable
			}
		}

		_, err := s.deps.Likes.Get(ctx, tx, fromUserID, toUserID)
		switch {
		case err == nil:
		case errors.Is(err, pgrepo.ErrLikeNotFound):
			if tier == enums.TierBase && s.deps.Quotas != nil {
				if _, err := s.deps.Quotas.ConsumeLikeWithLimit(ctx, tx, fromUserID, dayKey, tzName, s.cfg.FreeLikesPerDay); err != nil {
					if errors.Is(err, pgrepo.ErrLikesLimitReached) {
						return ErrDailyLimit
					}
					return err
				}
			}
		default:
			return err
		}

		ok, err := s.deps.Likes.Upsert(ctx, tx, fromUserID, toUserID, annotation, now)
		if err != nil {
			return err
		}
		inserted = ok

		reverse, err := s.deps.Likes.Get(ctx, tx, toUserID, fromUserID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrLikeNotFound) {
				return nil
			}
			return err
		}
		if !reverse.State.Alive() {
			return nil
		}

		f, err := s.deps.Matcher.FormIfMutual(ctx, tx, fromUserID, toUserID)
		if err != nil {
			return err
		}
		formation = f
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDailyLimit) {
			metrics.RecordLike("daily_limit")
		}
		if errors.Is(err, ErrDailyLimit) || errors.Is(err, ErrUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("record like: %w", err)
	}

	if inserted {
		metrics.RecordLike("new")
	} else {
		metrics.RecordLike("repeat")
	}

	s.notify(ctx, fromUserID, toUserID, inserted, formation)
	return toResult(formation), nil
}

// Quota reports how many new likes the user has left today and any active rate-limit wait.
func (s *Service) Quota(ctx context.Context, userID int64) (Snapshot, error) {
	if userID <= 0 {
		return Snapshot{}, ErrValidation
	}
	if s.deps.Quotas == nil {
		return Snapshot{}, ErrDependenciesNil
	}

	now := s.now().UTC()
	loc, _ := s.resolveTimezone("")
	tier, err := s.resolveTier(ctx, userID, now)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Tier:      tier,
		LikesLeft: -1,
		ResetAt:   rules.NextResetAt(now, loc),
	}
	if tier == enums.TierBase {
		used, err := s.deps.Quotas.GetLikesUsed(ctx, userID, rules.DayKey(now, loc))
		if err != nil {
			return Snapshot{}, fmt.Errorf("read daily quota: %w", err)
		}
		snapshot.LikesLeft = max(s.cfg.FreeLikesPerDay-used, 0)
	}

	if s.deps.Limiter != nil {
		retryAfter, err := s.deps.Limiter.RetryAfterLike(ctx, userID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("read like rate state: %w", err)
		}
		if retryAfter > 0 {
			snapshot.TooFastRetryAfter = &retryAfter
		}
	}

	return snapshot, nil
}

// Incoming surfaces eligible hidden likes, then lists what the recipient can see.
func (s *Service) Incoming(ctx context.Context, recipientID int64) ([]IncomingLike, error) {
	if recipientID <= 0 {
		return nil, ErrValidation
	}
	if s.deps.Likes == nil {
		return nil, ErrDependenciesNil
	}

	if s.deps.Surfacer != nil {
		if _, err := s.deps.Surfacer.Surface(ctx, recipientID); err != nil {
			s.logger.Warn("surface incoming likes failed", zap.Int64("recipient_id", recipientID), zap.Error(err))
		}
	}

	rows, err := s.deps.Likes.ListIncomingVisible(ctx, recipientID, s.cfg.IncomingLimit)
	if err != nil {
		return nil, fmt.Errorf("list incoming likes: %w", err)
	}

	items := make([]IncomingLike, 0, len(rows))
	for _, row := range rows {
		item := IncomingLike{
			EdgeID:     row.EdgeID,
			FromUserID: row.FromUserID,
			Annotation: row.Annotation,
			LikedAt:    row.LikedAt,
			SurfacedAt: row.SurfacedAt,
		}
		if row.Annotation != nil && row.Annotation.Kind == enums.AnnotationPhoto && s.deps.Photos != nil {
			signed, err := s.deps.Photos.PresignGet(ctx, row.Annotation.Key, s.cfg.PhotoURLTTL)
			if err != nil {
				s.logger.Warn("presign annotated photo failed", zap.Int64("edge_id", row.EdgeID), zap.Error(err))
			} else {
				item.PhotoURL = signed
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) notify(ctx context.Context, fromUserID, toUserID int64, inserted bool, f matchsvc.Formation) {
	if s.deps.Notifier == nil {
		return
	}

	switch f.Outcome {
	case matchsvc.OutcomeCreated:
		matchID := f.MatchID
		s.deps.Notifier.NotifyMatch(ctx, toUserID, fromUserID, &matchID)
		s.deps.Notifier.NotifyMatch(ctx, fromUserID, toUserID, &matchID)
	case matchsvc.OutcomeQueued:
		if f.Requeued {
			return
		}
		for _, pair := range [][2]int64{{toUserID, fromUserID}, {fromUserID, toUserID}} {
			if !f.Busy(pair[0]) {
				s.deps.Notifier.NotifyMatch(ctx, pair[0], pair[1], nil)
			}
		}
	case matchsvc.OutcomeAlreadyMatched:
	default:
		if inserted {
			s.deps.Notifier.NotifyLike(ctx, toUserID, fromUserID)
		}
	}
}

func toResult(f matchsvc.Formation) Result {
	switch f.Outcome {
	case matchsvc.OutcomeCreated, matchsvc.OutcomeAlreadyMatched:
		matchID := f.MatchID
		return Result{IsMatch: true, MatchID: &matchID}
	case matchsvc.OutcomeQueued:
		return Result{IsMatch: true, IsPending: true}
	default:
		return Result{}
	}
}

func (s *Service) resolveTier(ctx context.Context, userID int64, at time.Time) (enums.Tier, error) {
	if s.deps.Tiers == nil {
		return enums.TierBase, nil
	}
	tier, err := s.deps.Tiers.TierAt(ctx, userID, at)
	if err != nil {
		return "", fmt.Errorf("resolve tier: %w", err)
	}
	return tier, nil
}

func (s *Service) resolveTimezone(explicit string) (*time.Location, string) {
	candidate := strings.TrimSpace(explicit)
	if candidate == "" {
		candidate = strings.TrimSpace(s.cfg.DefaultTimezone)
	}
	if candidate == "" {
		candidate = "UTC"
	}

	loc, err := time.LoadLocation(candidate)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, candidate
}
