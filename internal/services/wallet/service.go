package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

const (
	ReasonEscrowRefund = "escrow_refund"
	ReasonTopUp        = "top_up"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Store interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	BalanceForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
	Debit(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error
	Credit(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error
}

// Service is the prepaid date-credit wallet. Every balance change writes a ledger row.
type Service struct {
	tx    pgrepo.TxRunner
	store Store
	now   func() time.Time
}

func NewService(tx pgrepo.TxRunner, store Store) *Service {
	return &Service{
		tx:    tx,
		store: store,
		now:   time.Now,
	}
}

func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, ErrValidation
	}
	return s.store.Balance(ctx, userID)
}

// BalanceTx reads the balance inside the caller's transaction and locks the wallet row.
func (s *Service) BalanceTx(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, ErrValidation
	}
	return s.store.BalanceForUpdate(ctx, tx, userID)
}

func (s *Service) DebitTx(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID int64) error {
	if userID <= 0 || cents <= 0 {
		return ErrValidation
	}
	if err := s.store.Debit(ctx, tx, userID, cents, reason, optionalID(matchID), s.now().UTC()); err != nil {
		if errors.Is(err, pgrepo.ErrInsufficientBalance) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("debit wallet: %w", err)
	}
	return nil
}

// RefundTx returns escrowed credit inside the caller's transaction.
func (s *Service) RefundTx(ctx context.Context, tx pgx.Tx, userID, cents, matchID int64) error {
	if userID <= 0 || cents <= 0 {
		return ErrValidation
	}
	if err := s.store.Credit(ctx, tx, userID, cents, ReasonEscrowRefund, optionalID(matchID), s.now().UTC()); err != nil {
		return fmt.Errorf("refund wallet: %w", err)
	}
	return nil
}

func (s *Service) TopUp(ctx context.Context, userID, cents int64) error {
	if userID <= 0 || cents <= 0 {
		return ErrValidation
	}
	if s.tx == nil {
		return fmt.Errorf("wallet transaction runner is nil")
	}
	return s.tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.store.Credit(ctx, tx, userID, cents, ReasonTopUp, nil, s.now().UTC()); err != nil {
			return fmt.Errorf("top up wallet: %w", err)
		}
		return nil
	})
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
