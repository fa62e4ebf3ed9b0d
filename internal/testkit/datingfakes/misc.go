package datingfakes

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

// Presence mirrors pgrepo.PresenceRepo.
type Presence struct {
	w *World
}

func (p *Presence) Touch(_ context.Context, userID int64, at time.Time) error {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	if prev, ok := p.w.st.lastSeen[userID]; ok && prev.After(at) {
		return nil
	}
	p.w.st.lastSeen[userID] = at.UTC()
	return nil
}

func (p *Presence) LastSeen(_ context.Context, _ pgx.Tx, userID int64) (*time.Time, error) {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	seen, ok := p.w.st.lastSeen[userID]
	if !ok {
		return nil, nil
	}
	return timePtr(seen), nil
}

// Blocks mirrors pgrepo.BlockRepo.
type Blocks struct {
	w *World
}

func (b *Blocks) Upsert(_ context.Context, _ pgx.Tx, actorUserID, targetUserID int64, reason enums.BlockReason) error {
	b.w.mu.Lock()
	defer b.w.mu.Unlock()
	b.w.st.blocks[pair{a: actorUserID, b: targetUserID}] = reason
	return nil
}

func (b *Blocks) BlockedEither(_ context.Context, _ pgx.Tx, userID, targetID int64) (bool, error) {
	b.w.mu.Lock()
	defer b.w.mu.Unlock()
	return b.w.st.blockedEither(userID, targetID), nil
}

// Passes mirrors pgrepo.PassRepo.
type Passes struct {
	w *World
}

func (p *Passes) Upsert(_ context.Context, actorUserID, targetUserID int64, at time.Time) error {
	p.w.mu.Lock()
	defer p.w.mu.Unlock()
	p.w.st.passes[pair{a: actorUserID, b: targetUserID}] = at.UTC()
	return nil
}

// Quotas mirrors pgrepo.QuotaRepo.
type Quotas struct {
	w *World
}

func (q *Quotas) GetLikesUsed(_ context.Context, userID int64, dayKey string) (int, error) {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	return q.w.st.quotas[quotaKey(userID, dayKey)], nil
}

func (q *Quotas) ConsumeLikeWithLimit(_ context.Context, _ pgx.Tx, userID int64, dayKey, _ string, limit int) (int, error) {
	q.w.mu.Lock()
	defer q.w.mu.Unlock()
	key := quotaKey(userID, dayKey)
	if q.w.st.quotas[key] >= limit {
		return 0, pgrepo.ErrLikesLimitReached
	}
	q.w.st.quotas[key]++
	return q.w.st.quotas[key], nil
}

func quotaKey(userID int64, dayKey string) string {
	return fmt.Sprintf("%d:%s", userID, dayKey)
}

// Entitlements resolves tiers set with World.SetPlus.
type Entitlements struct {
	w *World
}

func (e *Entitlements) TierAt(_ context.Context, userID int64, _ time.Time) (enums.Tier, error) {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	if tier, ok := e.w.st.tiers[userID]; ok {
		return tier, nil
	}
	return enums.TierBase, nil
}

// Users resolves chat ids set with World.SetChat.
type Users struct {
	w *World
}

func (u *Users) TelegramChatID(_ context.Context, userID int64) (int64, error) {
	u.w.mu.Lock()
	defer u.w.mu.Unlock()
	chatID, ok := u.w.st.chats[userID]
	if !ok {
		return 0, pgrepo.ErrUserNotFound
	}
	return chatID, nil
}
