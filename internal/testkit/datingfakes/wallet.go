package datingfakes

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

// Wallets mirrors pgrepo.WalletRepo.
type Wallets struct {
	w *World
}

func (s *Wallets) Balance(_ context.Context, userID int64) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.st.balances[userID], nil
}

func (s *Wallets) BalanceForUpdate(ctx context.Context, _ pgx.Tx, userID int64) (int64, error) {
	return s.Balance(ctx, userID)
}

func (s *Wallets) Debit(_ context.Context, _ pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.st.balances[userID] < cents {
		return pgrepo.ErrInsufficientBalance
	}
	s.w.st.balances[userID] -= cents
	s.w.appendLedger(userID, -cents, reason, matchID, at)
	return nil
}

func (s *Wallets) Credit(_ context.Context, _ pgx.Tx, userID, cents int64, reason string, matchID *int64, at time.Time) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.creditErr != nil {
		return s.w.creditErr
	}
	s.w.st.balances[userID] += cents
	s.w.appendLedger(userID, cents, reason, matchID, at)
	return nil
}

func (w *World) appendLedger(userID, delta int64, reason string, matchID *int64, at time.Time) {
	entry := model.WalletEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		DeltaCents: delta,
		Reason:     reason,
		CreatedAt:  at.UTC(),
	}
	if matchID != nil {
		id := *matchID
		entry.MatchID = &id
	}
	w.st.ledger = append(w.st.ledger, entry)
}

// Escrows mirrors pgrepo.EscrowRepo.
type Escrows struct {
	w *World
}

func (s *Escrows) Hold(_ context.Context, _ pgx.Tx, matchID, userID, cents int64, at time.Time) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, e := range s.w.st.escrows {
		if e.MatchID == matchID && e.UserID == userID {
			return nil
		}
	}
	s.w.st.nextEscrowID++
	id := s.w.st.nextEscrowID
	s.w.st.escrows[id] = model.Escrow{
		ID:          id,
		MatchID:     matchID,
		UserID:      userID,
		AmountCents: cents,
		Status:      enums.EscrowHeld,
		CreatedAt:   at.UTC(),
	}
	return nil
}

func (s *Escrows) Settle(_ context.Context, _ pgx.Tx, matchID int64, status enums.EscrowStatus, at time.Time) ([]model.Escrow, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	out := make([]model.Escrow, 0, 2)
	for id, e := range s.w.st.escrows {
		if e.MatchID != matchID || e.Status != enums.EscrowHeld {
			continue
		}
		e.Status = status
		e.SettledAt = timePtr(at)
		s.w.st.escrows[id] = e
		out = append(out, e)
	}
	sortEscrows(out)
	return out, nil
}

func (s *Escrows) MarkRefunded(_ context.Context, _ pgx.Tx, escrowID int64, at time.Time) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	e, ok := s.w.st.escrows[escrowID]
	if !ok || e.Status != enums.EscrowRefundPending {
		return false, nil
	}
	e.Status = enums.EscrowRefunded
	e.SettledAt = timePtr(at)
	s.w.st.escrows[escrowID] = e
	return true, nil
}

func (s *Escrows) ListRefundPending(_ context.Context, limit int) ([]model.Escrow, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	out := make([]model.Escrow, 0)
	for _, e := range s.w.st.escrows {
		if e.Status == enums.EscrowRefundPending {
			out = append(out, e)
		}
	}
	sortEscrows(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortEscrows(items []model.Escrow) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
