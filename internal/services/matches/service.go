package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

const (
	defaultListLimit   = 100
	defaultResumeLimit = 10
)

var ErrValidation = errors.New("validation error")

type LikeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error
	Get(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64) (model.LikeEdge, error)
	MarkMatched(ctx context.Context, tx pgx.Tx, userID, targetID int64, at time.Time) error
	ListQueuedCounterparts(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]int64, error)
}

type MatchStore interface {
	Create(ctx context.Context, tx pgx.Tx, userID, targetID int64, at time.Time) (int64, bool, error)
	GetByUsers(ctx context.Context, tx pgx.Tx, userID, targetID int64) (model.Match, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.MatchListRecord, error)
}

type ConversationCounter interface {
	CountActiveForUser(ctx context.Context, tx pgx.Tx, userID, excludeMatchID int64) (int, error)
}

type MessageStore interface {
	InsertSystemHint(ctx context.Context, tx pgx.Tx, matchID, recipientID int64, body string, at time.Time) (bool, error)
}

type TierResolver interface {
	TierAt(ctx context.Context, userID int64, at time.Time) (enums.Tier, error)
}

type Notifier interface {
	NotifyMatch(ctx context.Context, toUserID, fromUserID int64, matchID *int64)
}

type Dependencies struct {
	Tx            pgrepo.TxRunner
	Likes         LikeStore
	Matches       MatchStore
	Conversations ConversationCounter
	Messages      MessageStore
	Tiers         TierResolver
	Notifier      Notifier
	Logger        *zap.Logger
}

type Config struct {
	Limits      rules.ChatLimits
	ResumeLimit int
}

type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

type MatchItem struct {
	ID              int64
	TargetUserID    int64
	CreatedAt       time.Time
	Phase           enums.ConsentPhase
	ViewerConsented bool
	TargetConsented bool
	ActiveAt        *time.Time
	ArchivedAt      *time.Time
	TerminalState   *enums.TerminalState
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.Limits.Base <= 0 || cfg.Limits.Plus <= 0 {
		def := rules.DefaultChatLimits()
		if cfg.Limits.Base <= 0 {
			cfg.Limits.Base = def.Base
		}
		if cfg.Limits.Plus <= 0 {
			cfg.Limits.Plus = def.Plus
		}
	}
	if cfg.ResumeLimit <= 0 {
		cfg.ResumeLimit = defaultResumeLimit
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

// ResumeQueued retries formation for pairs that were queued because one side was
// busy. Each pair runs in its own transaction under the pair lock.
func (s *Service) ResumeQueued(ctx context.Context, userID int64) ([]Formation, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.deps.Tx == nil {
		return nil, fmt.Errorf("match dependencies are not configured")
	}

	var counterparts []int64
	if err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		ids, err := s.deps.Likes.ListQueuedCounterparts(ctx, tx, userID, s.cfg.ResumeLimit)
		if err != nil {
			return err
		}
		counterparts = ids
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list queued matches: %w", err)
	}

	created := make([]Formation, 0, len(counterparts))
	for _, targetID := range counterparts {
		var formation Formation
		err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.deps.Likes.LockPair(ctx, tx, userID, targetID); err != nil {
				return err
			}
			f, err := s.FormIfMutual(ctx, tx, userID, targetID)
			if err != nil {
				return err
			}
			formation = f
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("resume queued match: %w", err)
		}
		if formation.Outcome != OutcomeCreated {
			continue
		}

		created = append(created, formation)
		if s.deps.Notifier != nil {
			matchID := formation.MatchID
			s.deps.Notifier.NotifyMatch(ctx, userID, targetID, &matchID)
			s.deps.Notifier.NotifyMatch(ctx, targetID, userID, &matchID)
		}
	}

	return created, nil
}

// List resumes queued pairs first so a freed slot is picked up on the next read.
func (s *Service) List(ctx context.Context, userID int64, limit int) ([]MatchItem, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}
	if s.deps.Matches == nil {
		return nil, fmt.Errorf("match store is nil")
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	if _, err := s.ResumeQueued(ctx, userID); err != nil {
		s.logger.Warn("resume queued matches failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	rows, err := s.deps.Matches.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]MatchItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, MatchItem{
			ID:              row.ID,
			TargetUserID:    row.TargetUserID,
			CreatedAt:       row.CreatedAt,
			Phase:           listPhase(row),
			ViewerConsented: row.ViewerConsent != nil,
			TargetConsented: row.TargetConsent != nil,
			ActiveAt:        row.ActiveAt,
			ArchivedAt:      row.ArchivedAt,
			TerminalState:   row.TerminalState,
		})
	}
	return items, nil
}

func listPhase(row pgrepo.MatchListRecord) enums.ConsentPhase {
	switch {
	case row.TerminalState != nil:
		return enums.PhaseTerminal
	case row.ActiveAt != nil:
		return enums.PhaseActive
	case row.ViewerConsent != nil && row.TargetConsent != nil:
		return enums.PhaseBothConsented
	case row.ViewerConsent != nil || row.TargetConsent != nil:
		return enums.PhaseOneSidedConsent
	default:
		return enums.PhaseNoConsent
	}
}
