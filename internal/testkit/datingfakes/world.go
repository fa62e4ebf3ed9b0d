// Package datingfakes provides in-memory stand-ins for the Postgres stores so
// services can be exercised without a database.
package datingfakes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

// ErrInjected is returned by stores configured to fail.
var ErrInjected = errors.New("injected failure")

type pair struct {
	a int64
	b int64
}

func ordered(a, b int64) pair {
	low, high := model.NormalizePair(a, b)
	return pair{a: low, b: high}
}

type state struct {
	likes         map[pair]model.LikeEdge
	matches       map[int64]model.Match
	messages      []model.Message
	conversations map[int64]model.ConversationState
	balances      map[int64]int64
	ledger        []model.WalletEntry
	escrows       map[int64]model.Escrow
	lastSeen      map[int64]time.Time
	blocks        map[pair]enums.BlockReason
	passes        map[pair]time.Time
	quotas        map[string]int
	tiers         map[int64]enums.Tier
	chats         map[int64]int64

	nextLikeID    int64
	nextMatchID   int64
	nextMessageID int64
	nextEscrowID  int64
}

func newState() state {
	return state{
		likes:         make(map[pair]model.LikeEdge),
		matches:       make(map[int64]model.Match),
		conversations: make(map[int64]model.ConversationState),
		balances:      make(map[int64]int64),
		escrows:       make(map[int64]model.Escrow),
		lastSeen:      make(map[int64]time.Time),
		blocks:        make(map[pair]enums.BlockReason),
		passes:        make(map[pair]time.Time),
		quotas:        make(map[string]int),
		tiers:         make(map[int64]enums.Tier),
		chats:         make(map[int64]int64),
	}
}

func (s state) clone() state {
	out := s
	out.likes = cloneMap(s.likes)
	out.matches = cloneMap(s.matches)
	out.messages = append([]model.Message(nil), s.messages...)
	out.conversations = cloneMap(s.conversations)
	out.balances = cloneMap(s.balances)
	out.ledger = append([]model.WalletEntry(nil), s.ledger...)
	out.escrows = cloneMap(s.escrows)
	out.lastSeen = cloneMap(s.lastSeen)
	out.blocks = cloneMap(s.blocks)
	out.passes = cloneMap(s.passes)
	out.quotas = cloneMap(s.quotas)
	out.tiers = cloneMap(s.tiers)
	out.chats = cloneMap(s.chats)
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// World holds every table the fakes share. Stored values are never mutated in
// place so a snapshot taken before a transaction can be restored on rollback.
type World struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state

	creditErr error
}

func NewWorld() *World {
	return &World{st: newState()}
}

// Runner serializes transactions and discards their writes when fn fails.
func (w *World) Runner() pgrepo.TxRunner {
	return func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		w.txMu.Lock()
		defer w.txMu.Unlock()

		w.mu.Lock()
		snapshot := w.st.clone()
		w.mu.Unlock()

		if err := fn(ctx, nil); err != nil {
			w.mu.Lock()
			w.st = snapshot
			w.mu.Unlock()
			return err
		}
		return nil
	}
}

func (w *World) Likes() *Likes                 { return &Likes{w: w} }
func (w *World) Matches() *Matches             { return &Matches{w: w} }
func (w *World) Messages() *Messages           { return &Messages{w: w} }
func (w *World) Conversations() *Conversations { return &Conversations{w: w} }
func (w *World) Wallets() *Wallets             { return &Wallets{w: w} }
func (w *World) Escrows() *Escrows             { return &Escrows{w: w} }
func (w *World) Presence() *Presence           { return &Presence{w: w} }
func (w *World) Blocks() *Blocks               { return &Blocks{w: w} }
func (w *World) Passes() *Passes               { return &Passes{w: w} }
func (w *World) Quotas() *Quotas               { return &Quotas{w: w} }
func (w *World) Entitlements() *Entitlements   { return &Entitlements{w: w} }
func (w *World) Users() *Users                 { return &Users{w: w} }

// SeedBalance sets a wallet balance without a ledger entry.
func (w *World) SeedBalance(userID, cents int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.balances[userID] = cents
}

func (w *World) Balance(userID int64) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.balances[userID]
}

func (w *World) Ledger(userID int64) []model.WalletEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.WalletEntry, 0)
	for _, e := range w.st.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (w *World) SetPlus(userID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.tiers[userID] = enums.TierPlus
}

func (w *World) SetChat(userID, chatID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.chats[userID] = chatID
}

func (w *World) SetLastSeen(userID int64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.lastSeen[userID] = at.UTC()
}

// FailCredits makes every wallet credit return err until called with nil.
func (w *World) FailCredits(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.creditErr = err
}

// AddText appends a user-written message to the match.
func (w *World) AddText(matchID, senderID int64, body string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.nextMessageID++
	sender := senderID
	w.st.messages = append(w.st.messages, model.Message{
		ID:        w.st.nextMessageID,
		MatchID:   matchID,
		SenderID:  &sender,
		Kind:      enums.MessageText,
		Body:      body,
		CreatedAt: at.UTC(),
	})
}

// PutEdge inserts a hidden like edge with an explicit creation time.
func (w *World) PutEdge(fromUserID, toUserID int64, createdAt time.Time) model.LikeEdge {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.st.nextLikeID++
	edge := model.LikeEdge{
		ID:         w.st.nextLikeID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		State:      enums.EdgeStatePendingHidden,
		CreatedAt:  createdAt.UTC(),
	}
	w.st.likes[pair{a: fromUserID, b: toUserID}] = edge
	return edge
}

// MarkSurfaced moves an existing edge into the visible state at the given time.
func (w *World) MarkSurfaced(fromUserID, toUserID int64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := pair{a: fromUserID, b: toUserID}
	edge, ok := w.st.likes[key]
	if !ok {
		return
	}
	edge.State = enums.EdgeStateSurfaced
	edge.SurfacedAt = timePtr(at)
	w.st.likes[key] = edge
}

func (w *World) Edge(fromUserID, toUserID int64) (model.LikeEdge, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	edge, ok := w.st.likes[pair{a: fromUserID, b: toUserID}]
	return edge, ok
}

func (w *World) Match(userID, targetID int64) (model.Match, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.matchByUsers(userID, targetID)
}

func (w *World) Conversation(matchID int64) (model.ConversationState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.st.conversations[matchID]
	return c, ok
}

func (w *World) EscrowsFor(matchID int64) []model.Escrow {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Escrow, 0, 2)
	for _, e := range w.st.escrows {
		if e.MatchID == matchID {
			out = append(out, e)
		}
	}
	sortEscrows(out)
	return out
}

// SystemHints counts start-chat hints delivered to the recipient in the match.
func (w *World) SystemHints(matchID, recipientID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.st.messages {
		if m.MatchID == matchID && m.Kind == enums.MessageSystemHint && m.RecipientID != nil && *m.RecipientID == recipientID {
			n++
		}
	}
	return n
}

func (w *World) MessageCount(matchID int64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.st.messages {
		if m.MatchID == matchID {
			n++
		}
	}
	return n
}

func (s state) matchByUsers(userID, targetID int64) (model.Match, bool) {
	key := ordered(userID, targetID)
	for _, m := range s.matches {
		if m.UserLowID == key.a && m.UserHighID == key.b {
			return m, true
		}
	}
	return model.Match{}, false
}

func (s state) blockedEither(userID, targetID int64) bool {
	if _, ok := s.blocks[pair{a: userID, b: targetID}]; ok {
		return true
	}
	_, ok := s.blocks[pair{a: targetID, b: userID}]
	return ok
}

func timePtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}
