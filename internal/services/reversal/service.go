package reversal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

const (
	defaultDecisionWindow = 48 * time.Hour
	defaultReconcileBatch = 100
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidBlockReason = errors.New("invalid block reason")
)

type LikeStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error
	Delete(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64) (bool, error)
}

type MatchStore interface {
	GetByUsers(ctx context.Context, tx pgx.Tx, userID, targetID int64) (model.Match, error)
	DeleteByID(ctx context.Context, tx pgx.Tx, matchID int64) (bool, error)
}

type MessageStore interface {
	ListTextBodies(ctx context.Context, tx pgx.Tx, matchID int64) ([]string, error)
	DeleteByMatch(ctx context.Context, tx pgx.Tx, matchID int64) (int64, error)
}

type ConversationStore interface {
	Ensure(ctx context.Context, tx pgx.Tx, m model.Match, decisionExpiresAt, at time.Time) error
	Finalize(ctx context.Context, tx pgx.Tx, matchID int64, terminal enums.TerminalState, at time.Time) (bool, error)
}

type EscrowStore interface {
	Settle(ctx context.Context, tx pgx.Tx, matchID int64, status enums.EscrowStatus, at time.Time) ([]model.Escrow, error)
	MarkRefunded(ctx context.Context, tx pgx.Tx, escrowID int64, at time.Time) (bool, error)
	ListRefundPending(ctx context.Context, limit int) ([]model.Escrow, error)
}

type BlockStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, actorUserID, targetUserID int64, reason enums.BlockReason) error
}

type Refunder interface {
	RefundTx(ctx context.Context, tx pgx.Tx, userID, cents, matchID int64) error
}

// ContactDetector decides whether a match's history shows contact details being exchanged.
type ContactDetector interface {
	Exchanged(bodies []string) (bool, error)
	Version() string
}

type Dependencies struct {
	Tx            pgrepo.TxRunner
	Likes         LikeStore
	Matches       MatchStore
	Messages      MessageStore
	Conversations ConversationStore
	Escrows       EscrowStore
	Blocks        BlockStore
	Wallet        Refunder
	Contact       ContactDetector
	Logger        *zap.Logger
}

type Config struct {
	DecisionWindow time.Duration
}

type Result struct {
	RemovedMatch     bool
	MatchID          int64
	ContactExchanged bool
	RefundedUserIDs  []int64
}

// Service removes likes and tears down the match they supported.
type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DecisionWindow <= 0 {
		cfg.DecisionWindow = defaultDecisionWindow
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

// Undo deletes the directed like. A match that depended on it is removed together
// with its messages, and its escrow is refunded to both sides unless contact
// details were exchanged. Refund failures are logged and left for reconciliation.
func (s *Service) Undo(ctx context.Context, fromUserID, toUserID int64) (Result, error) {
	if fromUserID <= 0 || toUserID <= 0 || fromUserID == toUserID {
		return Result{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Result{}, err
	}

	var (
		result  Result
		pending []model.Escrow
	)
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.deps.Likes.LockPair(ctx, tx, fromUserID, toUserID); err != nil {
			return err
		}
		if _, err := s.deps.Likes.Delete(ctx, tx, fromUserID, toUserID); err != nil {
			return err
		}

		r, p, err := s.teardown(ctx, tx, fromUserID, toUserID)
		if err != nil {
			return err
		}
		result, pending = r, p
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("undo like: %w", err)
	}

	result.RefundedUserIDs = s.payRefunds(ctx, pending)
	return result, nil
}

// Block records the block, drops both likes and tears down any match between the pair.
func (s *Service) Block(ctx context.Context, actorUserID, targetUserID int64, reason enums.BlockReason) (Result, error) {
	if actorUserID <= 0 || targetUserID <= 0 || actorUserID == targetUserID {
		return Result{}, ErrValidation
	}
	if !reason.Valid() {
		return Result{}, ErrInvalidBlockReason
	}
	if err := s.ready(); err != nil {
		return Result{}, err
	}
	if s.deps.Blocks == nil {
		return Result{}, fmt.Errorf("block store is nil")
	}

	var (
		result  Result
		pending []model.Escrow
	)
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.deps.Likes.LockPair(ctx, tx, actorUserID, targetUserID); err != nil {
			return err
		}
		if err := s.deps.Blocks.Upsert(ctx, tx, actorUserID, targetUserID, reason); err != nil {
			return err
		}
		if _, err := s.deps.Likes.Delete(ctx, tx, actorUserID, targetUserID); err != nil {
			return err
		}
		if _, err := s.deps.Likes.Delete(ctx, tx, targetUserID, actorUserID); err != nil {
			return err
		}

		r, p, err := s.teardown(ctx, tx, actorUserID, targetUserID)
		if err != nil {
			return err
		}
		result, pending = r, p
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("block user: %w", err)
	}

	result.RefundedUserIDs = s.payRefunds(ctx, pending)
	return result, nil
}

// ReconcileRefunds pays out refunds that were decided but not completed.
func (s *Service) ReconcileRefunds(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultReconcileBatch
	}
	if s.deps.Escrows == nil {
		return 0, fmt.Errorf("escrow store is nil")
	}

	pending, err := s.deps.Escrows.ListRefundPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	return len(s.payRefunds(ctx, pending)), nil
}

func (s *Service) teardown(ctx context.Context, tx pgx.Tx, userID, targetID int64) (Result, []model.Escrow, error) {
	m, err := s.deps.Matches.GetByUsers(ctx, tx, userID, targetID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return Result{}, nil, nil
		}
		return Result{}, nil, err
	}

	bodies, err := s.deps.Messages.ListTextBodies(ctx, tx, m.ID)
	if err != nil {
		return Result{}, nil, err
	}
	exchanged, err := s.deps.Contact.Exchanged(bodies)
	if err != nil {
		// An undecidable history forfeits the refund rather than blocking the unmatch.
		s.logger.Warn("contact detection failed, treating as exchanged",
			zap.Int64("match_id", m.ID), zap.String("patterns_version", s.deps.Contact.Version()), zap.Error(err))
		exchanged = true
	}

	now := s.now().UTC()
	if err := s.deps.Conversations.Ensure(ctx, tx, m, m.CreatedAt.Add(s.cfg.DecisionWindow), now); err != nil {
		return Result{}, nil, err
	}
	if _, err := s.deps.Conversations.Finalize(ctx, tx, m.ID, enums.TerminalUnmatched, now); err != nil {
		return Result{}, nil, err
	}
	if _, err := s.deps.Messages.DeleteByMatch(ctx, tx, m.ID); err != nil {
		return Result{}, nil, err
	}
	if _, err := s.deps.Matches.DeleteByID(ctx, tx, m.ID); err != nil {
		return Result{}, nil, err
	}

	settleTo := enums.EscrowRefundPending
	if exchanged {
		settleTo = enums.EscrowForfeited
	}
	settled, err := s.deps.Escrows.Settle(ctx, tx, m.ID, settleTo, now)
	if err != nil {
		return Result{}, nil, err
	}
	if exchanged {
		metrics.RecordEscrow("forfeited", len(settled))
		settled = nil
	}

	s.logger.Info("match removed",
		zap.Int64("match_id", m.ID),
		zap.Bool("contact_exchanged", exchanged),
		zap.String("patterns_version", s.deps.Contact.Version()),
	)

	return Result{RemovedMatch: true, MatchID: m.ID, ContactExchanged: exchanged}, settled, nil
}

func (s *Service) payRefunds(ctx context.Context, pending []model.Escrow) []int64 {
	refunded := make([]int64, 0, len(pending))
	for _, escrow := range pending {
		paid := false
		err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			claimed, err := s.deps.Escrows.MarkRefunded(ctx, tx, escrow.ID, s.now().UTC())
			if err != nil || !claimed {
				return err
			}
			if err := s.deps.Wallet.RefundTx(ctx, tx, escrow.UserID, escrow.AmountCents, escrow.MatchID); err != nil {
				return err
			}
			paid = true
			return nil
		})
		if err != nil {
			metrics.RecordEscrow("failed", 1)
			s.logger.Warn("escrow refund failed",
				zap.Int64("escrow_id", escrow.ID),
				zap.Int64("match_id", escrow.MatchID),
				zap.Int64("user_id", escrow.UserID),
				zap.Int64("amount_cents", escrow.AmountCents),
				zap.Error(err),
			)
			continue
		}
		if !paid {
			continue
		}
		metrics.RecordEscrow("refunded", 1)
		refunded = append(refunded, escrow.UserID)
	}
	return refunded
}

func (s *Service) ready() error {
	if s.deps.Tx == nil || s.deps.Likes == nil || s.deps.Matches == nil || s.deps.Messages == nil ||
		s.deps.Conversations == nil || s.deps.Escrows == nil || s.deps.Wallet == nil || s.deps.Contact == nil {
		return fmt.Errorf("reversal dependencies are not configured")
	}
	return nil
}
