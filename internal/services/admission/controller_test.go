package admission

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

type countStub map[int64]int

func (c countStub) LockUser(context.Context, pgx.Tx, int64) error { return nil }

func (c countStub) CountActiveForUser(_ context.Context, _ pgx.Tx, userID, _ int64) (int, error) {
	return c[userID], nil
}

type walletStub struct {
	balances map[int64]int64
	debits   []int64
	failWith error
}

func (w *walletStub) BalanceTx(_ context.Context, _ pgx.Tx, userID int64) (int64, error) {
	return w.balances[userID], nil
}

func (w *walletStub) DebitTx(_ context.Context, _ pgx.Tx, userID, cents int64, _ string, _ int64) error {
	if w.failWith != nil {
		return w.failWith
	}
	w.balances[userID] -= cents
	w.debits = append(w.debits, userID)
	return nil
}

type escrowStub struct {
	holds []int64
}

func (e *escrowStub) Hold(_ context.Context, _ pgx.Tx, _, userID, _ int64, _ time.Time) error {
	e.holds = append(e.holds, userID)
	return nil
}

func request(tiers ...enums.Tier) Request {
	req := Request{MatchID: 1}
	for i, tier := range tiers {
		req.Participants = append(req.Participants, Participant{UserID: int64(7 + 2*i), Tier: tier})
	}
	return req
}

func TestAdmitChecksQuotaBeforeBalance(t *testing.T) {
	wallet := &walletStub{balances: map[int64]int64{}}
	c := NewController(Dependencies{
		Conversations: countStub{9: 1},
		Wallet:        wallet,
	}, Config{ActivationCostCents: 500, Limits: rules.DefaultChatLimits()})

	err := c.Admit(context.Background(), nil, request(enums.TierBase, enums.TierBase))
	limit, ok := IsActiveChatLimit(err)
	if !ok {
		t.Fatalf("expected active chat limit, got %v", err)
	}
	if limit.BlockedUserID != 9 {
		t.Fatalf("unexpected blocked user: %d", limit.BlockedUserID)
	}
	if len(wallet.debits) != 0 {
		t.Fatalf("blocked admission must not debit, got %v", wallet.debits)
	}
}

func TestAdmitReportsEveryMissingCredit(t *testing.T) {
	wallet := &walletStub{balances: map[int64]int64{7: 100, 9: 499}}
	c := NewController(Dependencies{
		Conversations: countStub{},
		Wallet:        wallet,
	}, Config{ActivationCostCents: 500})

	err := c.Admit(context.Background(), nil, request(enums.TierBase, enums.TierPlus))
	credit, ok := IsCreditRequired(err)
	if !ok {
		t.Fatalf("expected credit required, got %v", err)
	}
	if !reflect.DeepEqual(credit.MissingUserIDs, []int64{7, 9}) {
		t.Fatalf("unexpected missing users: %v", credit.MissingUserIDs)
	}
	if credit.Error() != "date credit required for users 7,9" {
		t.Fatalf("unexpected message: %q", credit.Error())
	}
}

func TestAdmitChargesAndHoldsEscrow(t *testing.T) {
	wallet := &walletStub{balances: map[int64]int64{7: 500, 9: 800}}
	escrows := &escrowStub{}
	c := NewController(Dependencies{
		Conversations: countStub{7: 2},
		Wallet:        wallet,
		Escrows:       escrows,
	}, Config{ActivationCostCents: 500, Limits: rules.DefaultChatLimits()})

	if err := c.Admit(context.Background(), nil, request(enums.TierPlus, enums.TierBase)); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if wallet.balances[7] != 0 || wallet.balances[9] != 300 {
		t.Fatalf("unexpected balances: %v", wallet.balances)
	}
	if !reflect.DeepEqual(escrows.holds, []int64{7, 9}) {
		t.Fatalf("unexpected holds: %v", escrows.holds)
	}
}

func TestAdmitFreeActivationSkipsWallet(t *testing.T) {
	wallet := &walletStub{balances: map[int64]int64{}, failWith: errors.New("must not be called")}
	c := NewController(Dependencies{
		Conversations: countStub{},
		Wallet:        wallet,
	}, Config{})

	if err := c.Admit(context.Background(), nil, request(enums.TierBase, enums.TierBase)); err != nil {
		t.Fatalf("admit: %v", err)
	}
}

func TestAdmitValidation(t *testing.T) {
	c := NewController(Dependencies{Conversations: countStub{}, Wallet: &walletStub{}}, Config{})
	if err := c.Admit(context.Background(), nil, Request{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
