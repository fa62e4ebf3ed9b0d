package reversal

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/admission"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/consent"
	walletsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/wallet"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/testkit/datingfakes"
)

const activationCost = int64(500)

type fixture struct {
	world   *datingfakes.World
	consent *consent.Service
	service *Service
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	world := datingfakes.NewWorld()
	wallet := walletsvc.NewService(world.Runner(), world.Wallets())
	controller := admission.NewController(admission.Dependencies{
		Conversations: world.Conversations(),
		Wallet:        wallet,
		Escrows:       world.Escrows(),
	}, admission.Config{ActivationCostCents: activationCost, Limits: rules.DefaultChatLimits()})
	consentSvc := consent.NewService(consent.Dependencies{
		Tx:            world.Runner(),
		Matches:       world.Matches(),
		Conversations: world.Conversations(),
		Admission:     controller,
	}, consent.Config{})

	detector, err := rules.NewContactDetector(rules.DefaultContactVersion, nil)
	if err != nil {
		t.Fatalf("contact detector: %v", err)
	}
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(Dependencies{
		Tx:            world.Runner(),
		Likes:         world.Likes(),
		Matches:       world.Matches(),
		Messages:      world.Messages(),
		Conversations: world.Conversations(),
		Escrows:       world.Escrows(),
		Blocks:        world.Blocks(),
		Wallet:        wallet,
		Contact:       detector,
		Logger:        zap.New(core),
	}, Config{})

	return &fixture{world: world, consent: consentSvc, service: svc, logs: logs}
}

// activeMatch builds a mutual pair whose conversation is active and paid for.
func (f *fixture) activeMatch(t *testing.T, userID, targetID int64) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	f.world.PutEdge(userID, targetID, now)
	f.world.PutEdge(targetID, userID, now)
	f.world.SeedBalance(userID, 1000)
	f.world.SeedBalance(targetID, 1000)
	matchID, _, err := f.world.Matches().Create(ctx, nil, userID, targetID, now)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	if err := f.world.Likes().MarkMatched(ctx, nil, userID, targetID, now); err != nil {
		t.Fatalf("mark matched: %v", err)
	}
	for _, id := range []int64{userID, targetID} {
		if _, err := f.consent.Consent(ctx, matchID, id, enums.TierBase); err != nil {
			t.Fatalf("consent %d: %v", id, err)
		}
	}
	if state, _ := f.world.Conversation(matchID); state.ActiveAt == nil {
		t.Fatal("setup: expected active conversation")
	}
	return matchID
}

func TestUndoRefundsBothWithoutContactExchange(t *testing.T) {
	f := newFixture(t)
	matchID := f.activeMatch(t, 7, 9)
	f.world.AddText(matchID, 7, "hey, how was the hike?", time.Now())
	f.world.AddText(matchID, 9, "great, see you at the cafe", time.Now())

	result, err := f.service.Undo(context.Background(), 7, 9)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !result.RemovedMatch || result.MatchID != matchID || result.ContactExchanged {
		t.Fatalf("unexpected result: %+v", result)
	}
	refunded := append([]int64(nil), result.RefundedUserIDs...)
	slices.Sort(refunded)
	if !reflect.DeepEqual(refunded, []int64{7, 9}) {
		t.Fatalf("expected both refunded, got %v", result.RefundedUserIDs)
	}
	for _, id := range []int64{7, 9} {
		if got := f.world.Balance(id); got != 1000 {
			t.Fatalf("unexpected balance for %d after refund: %d", id, got)
		}
	}

	if _, ok := f.world.Match(7, 9); ok {
		t.Fatal("match must be removed")
	}
	if _, ok := f.world.Edge(7, 9); ok {
		t.Fatal("undone edge must be removed")
	}
	if _, ok := f.world.Edge(9, 7); !ok {
		t.Fatal("reverse edge must survive undo")
	}
	if n := f.world.MessageCount(matchID); n != 0 {
		t.Fatalf("expected history removed, %d messages left", n)
	}
	state, _ := f.world.Conversation(matchID)
	if state.TerminalState == nil || *state.TerminalState != enums.TerminalUnmatched {
		t.Fatalf("expected unmatched terminal state, got %+v", state.TerminalState)
	}
	for _, e := range f.world.EscrowsFor(matchID) {
		if e.Status != enums.EscrowRefunded {
			t.Fatalf("unexpected escrow status: %+v", e)
		}
	}
}

func TestUndoForfeitsBothWhenAnyoneSharedContact(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "email", body: "write me at anna.k@example.com"},
		{name: "phone", body: "call +1 (555) 123-4567"},
		{name: "social keyword", body: "add me on Instagram"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			matchID := f.activeMatch(t, 7, 9)
			f.world.AddText(matchID, 9, tc.body, time.Now())

			result, err := f.service.Undo(context.Background(), 7, 9)
			if err != nil {
				t.Fatalf("undo: %v", err)
			}
			if !result.RemovedMatch || !result.ContactExchanged {
				t.Fatalf("unexpected result: %+v", result)
			}
			if len(result.RefundedUserIDs) != 0 {
				t.Fatalf("nobody may be refunded, got %v", result.RefundedUserIDs)
			}
			for _, id := range []int64{7, 9} {
				if got := f.world.Balance(id); got != 1000-activationCost {
					t.Fatalf("unexpected balance for %d: %d", id, got)
				}
			}
			for _, e := range f.world.EscrowsFor(matchID) {
				if e.Status != enums.EscrowForfeited {
					t.Fatalf("unexpected escrow status: %+v", e)
				}
			}
		})
	}
}

func TestRefundFailureDoesNotBlockUnmatch(t *testing.T) {
	f := newFixture(t)
	matchID := f.activeMatch(t, 7, 9)
	f.world.FailCredits(datingfakes.ErrInjected)

	result, err := f.service.Undo(context.Background(), 7, 9)
	if err != nil {
		t.Fatalf("undo must succeed despite refund failure: %v", err)
	}
	if !result.RemovedMatch || len(result.RefundedUserIDs) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := f.world.Match(7, 9); ok {
		t.Fatal("match must be removed")
	}
	if got := f.logs.FilterMessage("escrow refund failed").Len(); got != 2 {
		t.Fatalf("expected two logged refund failures, got %d", got)
	}
	for _, e := range f.world.EscrowsFor(matchID) {
		if e.Status != enums.EscrowRefundPending {
			t.Fatalf("failed refund must stay pending, got %+v", e)
		}
	}

	f.world.FailCredits(nil)
	paid, err := f.service.ReconcileRefunds(context.Background(), 10)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if paid != 2 {
		t.Fatalf("expected two reconciled refunds, got %d", paid)
	}
	if f.world.Balance(7) != 1000 || f.world.Balance(9) != 1000 {
		t.Fatalf("unexpected balances after reconcile: 7=%d 9=%d", f.world.Balance(7), f.world.Balance(9))
	}

	again, err := f.service.ReconcileRefunds(context.Background(), 10)
	if err != nil || again != 0 {
		t.Fatalf("reconcile must not pay twice: paid=%d err=%v", again, err)
	}
}

func TestUndoWithoutMatchOnlyDropsEdge(t *testing.T) {
	f := newFixture(t)
	f.world.PutEdge(7, 9, time.Now())

	result, err := f.service.Undo(context.Background(), 7, 9)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if result.RemovedMatch {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := f.world.Edge(7, 9); ok {
		t.Fatal("edge must be removed")
	}

	if _, err := f.service.Undo(context.Background(), 7, 9); err != nil {
		t.Fatalf("repeat undo must be harmless: %v", err)
	}
}

func TestUndoBeforeActivationEndsConsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	f.world.PutEdge(7, 9, now)
	f.world.PutEdge(9, 7, now)
	matchID, _, _ := f.world.Matches().Create(ctx, nil, 7, 9, now)
	if _, err := f.consent.Consent(ctx, matchID, 7, enums.TierBase); err != nil {
		t.Fatalf("consent: %v", err)
	}

	if _, err := f.service.Undo(ctx, 9, 7); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if _, err := f.consent.Consent(ctx, matchID, 9, enums.TierBase); !errors.Is(err, consent.ErrNoLongerAvailable) {
		t.Fatalf("expected ErrNoLongerAvailable after unmatch, got %v", err)
	}
	status, err := f.consent.GetStatus(ctx, matchID, 7, nil)
	if err != nil {
		t.Fatalf("status after unmatch: %v", err)
	}
	if status.TerminalState == nil || *status.TerminalState != enums.TerminalUnmatched {
		t.Fatalf("expected unmatched, got %+v", status)
	}
}

func TestBlockTearsDownMatch(t *testing.T) {
	f := newFixture(t)
	matchID := f.activeMatch(t, 7, 9)

	result, err := f.service.Block(context.Background(), 9, 7, enums.BlockReasonAbusive)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if !result.RemovedMatch || result.MatchID != matchID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := f.world.Edge(7, 9); ok {
		t.Fatal("edge 7->9 must be removed")
	}
	if _, ok := f.world.Edge(9, 7); ok {
		t.Fatal("edge 9->7 must be removed")
	}
	blocked, _ := f.world.Blocks().BlockedEither(context.Background(), nil, 7, 9)
	if !blocked {
		t.Fatal("expected block to be stored")
	}

	if _, err := f.service.Block(context.Background(), 9, 7, enums.BlockReason("bored")); !errors.Is(err, ErrInvalidBlockReason) {
		t.Fatalf("expected ErrInvalidBlockReason, got %v", err)
	}
}
