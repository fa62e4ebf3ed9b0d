package admission

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

type eventCounter struct {
	events []string
}

func (e *eventCounter) LockUser(_ context.Context, _ pgx.Tx, userID int64) error {
	e.events = append(e.events, "lock:"+strconv.FormatInt(userID, 10))
	return nil
}

func (e *eventCounter) CountActiveForUser(_ context.Context, _ pgx.Tx, userID, _ int64) (int, error) {
	e.events = append(e.events, "count:"+strconv.FormatInt(userID, 10))
	return 0, nil
}

func TestAdmitLocksParticipantsInAscendingOrderBeforeCounting(t *testing.T) {
	counter := &eventCounter{}
	wallet := &walletStub{balances: map[int64]int64{7: 500, 9: 500}}
	escrows := &escrowStub{}
	c := NewController(Dependencies{
		Conversations: counter,
		Wallet:        wallet,
		Escrows:       escrows,
	}, Config{ActivationCostCents: 500, Limits: rules.DefaultChatLimits()})

	req := Request{MatchID: 1, Participants: []Participant{
		{UserID: 9, Tier: enums.TierBase},
		{UserID: 7, Tier: enums.TierBase},
	}}
	if err := c.Admit(context.Background(), nil, req); err != nil {
		t.Fatalf("admit: %v", err)
	}

	want := []string{"lock:7", "lock:9", "count:9", "count:7"}
	if !reflect.DeepEqual(counter.events, want) {
		t.Fatalf("unexpected lock/count order: got %v want %v", counter.events, want)
	}
	if !reflect.DeepEqual(wallet.debits, []int64{7, 9}) {
		t.Fatalf("debits must follow ascending user id: %v", wallet.debits)
	}
	if !reflect.DeepEqual(escrows.holds, []int64{7, 9}) {
		t.Fatalf("holds must follow ascending user id: %v", escrows.holds)
	}
}

type simTxKey struct{}

// simTx holds per-user locks until commit, like pg_advisory_xact_lock.
type simTx struct {
	held []int64
}

// lockingChats models committed active chats guarded by per-user locks.
type lockingChats struct {
	mu     sync.Mutex
	active map[int64]int
	locks  map[int64]*sync.Mutex
}

func newLockingChats(users ...int64) *lockingChats {
	l := &lockingChats{active: map[int64]int{}, locks: map[int64]*sync.Mutex{}}
	for _, id := range users {
		l.locks[id] = &sync.Mutex{}
	}
	return l
}

func (l *lockingChats) LockUser(ctx context.Context, _ pgx.Tx, userID int64) error {
	tx := ctx.Value(simTxKey{}).(*simTx)
	l.locks[userID].Lock()
	tx.held = append(tx.held, userID)
	return nil
}

func (l *lockingChats) CountActiveForUser(_ context.Context, _ pgx.Tx, userID, _ int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[userID], nil
}

func (l *lockingChats) commit(tx *simTx, activated ...int64) {
	l.mu.Lock()
	for _, id := range activated {
		l.active[id]++
	}
	l.mu.Unlock()
	for _, id := range tx.held {
		l.locks[id].Unlock()
	}
	tx.held = nil
}

func TestConcurrentAdmitsSharingUserRespectChatLimit(t *testing.T) {
	chats := newLockingChats(7, 20, 30)
	c := NewController(Dependencies{
		Conversations: chats,
		Wallet:        &walletStub{balances: map[int64]int64{}},
	}, Config{Limits: rules.DefaultChatLimits()})

	txA := &simTx{}
	ctxA := context.WithValue(context.Background(), simTxKey{}, txA)
	reqA := Request{MatchID: 1, Participants: []Participant{
		{UserID: 20, Tier: enums.TierPlus},
		{UserID: 7, Tier: enums.TierBase},
	}}
	if err := c.Admit(ctxA, nil, reqA); err != nil {
		t.Fatalf("first admit: %v", err)
	}

	txB := &simTx{}
	ctxB := context.WithValue(context.Background(), simTxKey{}, txB)
	reqB := Request{MatchID: 2, Participants: []Participant{
		{UserID: 30, Tier: enums.TierPlus},
		{UserID: 7, Tier: enums.TierBase},
	}}
	done := make(chan error, 1)
	go func() {
		err := c.Admit(ctxB, nil, reqB)
		chats.commit(txB)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second admit finished while the first still held user 7: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	chats.commit(txA, 20, 7)

	select {
	case err := <-done:
		limit, ok := IsActiveChatLimit(err)
		if !ok {
			t.Fatalf("expected active chat limit for the second admit, got %v", err)
		}
		if limit.BlockedUserID != 7 || limit.Limit != 1 {
			t.Fatalf("unexpected limit error: %+v", limit)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second admit never acquired the user lock")
	}
}
