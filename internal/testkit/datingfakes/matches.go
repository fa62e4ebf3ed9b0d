package datingfakes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

// Matches mirrors pgrepo.MatchRepo.
type Matches struct {
	w *World
}

func (m *Matches) Create(_ context.Context, _ pgx.Tx, userID, targetID int64, at time.Time) (int64, bool, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if _, ok := m.w.st.matchByUsers(userID, targetID); ok {
		return 0, false, nil
	}
	key := ordered(userID, targetID)
	m.w.st.nextMatchID++
	id := m.w.st.nextMatchID
	m.w.st.matches[id] = model.Match{ID: id, UserLowID: key.a, UserHighID: key.b, CreatedAt: at.UTC()}
	return id, true, nil
}

func (m *Matches) GetByUsers(_ context.Context, _ pgx.Tx, userID, targetID int64) (model.Match, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	match, ok := m.w.st.matchByUsers(userID, targetID)
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return match, nil
}

func (m *Matches) GetByID(_ context.Context, _ pgx.Tx, matchID int64) (model.Match, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	match, ok := m.w.st.matches[matchID]
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return match, nil
}

func (m *Matches) DeleteByID(_ context.Context, _ pgx.Tx, matchID int64) (bool, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if _, ok := m.w.st.matches[matchID]; !ok {
		return false, nil
	}
	delete(m.w.st.matches, matchID)
	return true, nil
}

func (m *Matches) ListForUser(_ context.Context, userID int64, limit int) ([]pgrepo.MatchListRecord, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()

	items := make([]pgrepo.MatchListRecord, 0)
	for _, match := range m.w.st.matches {
		if !match.Has(userID) {
			continue
		}
		target := match.Counterpart(userID)
		if _, blocked := m.w.st.blocks[pair{a: target, b: userID}]; blocked {
			continue
		}
		item := pgrepo.MatchListRecord{ID: match.ID, TargetUserID: target, CreatedAt: match.CreatedAt}
		if c, ok := m.w.st.conversations[match.ID]; ok {
			item.ActiveAt = c.ActiveAt
			item.ArchivedAt = c.ArchivedAt
			item.TerminalState = c.TerminalState
			item.ViewerConsent, _ = c.ConsentOf(userID)
			item.TargetConsent, _ = c.ConsentOf(target)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Messages mirrors pgrepo.MessageRepo.
type Messages struct {
	w *World
}

func (m *Messages) InsertSystemHint(_ context.Context, _ pgx.Tx, matchID, recipientID int64, body string, at time.Time) (bool, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if strings.TrimSpace(body) == "" {
		return false, ErrInjected
	}
	for _, msg := range m.w.st.messages {
		if msg.MatchID == matchID && msg.Kind == enums.MessageSystemHint && msg.RecipientID != nil && *msg.RecipientID == recipientID {
			return false, nil
		}
	}
	m.w.st.nextMessageID++
	recipient := recipientID
	m.w.st.messages = append(m.w.st.messages, model.Message{
		ID:          m.w.st.nextMessageID,
		MatchID:     matchID,
		RecipientID: &recipient,
		Kind:        enums.MessageSystemHint,
		Body:        body,
		CreatedAt:   at.UTC(),
	})
	return true, nil
}

func (m *Messages) ListTextBodies(_ context.Context, _ pgx.Tx, matchID int64) ([]string, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	bodies := make([]string, 0)
	for _, msg := range m.w.st.messages {
		if msg.MatchID == matchID && msg.Kind == enums.MessageText {
			bodies = append(bodies, msg.Body)
		}
	}
	return bodies, nil
}

func (m *Messages) DeleteByMatch(_ context.Context, _ pgx.Tx, matchID int64) (int64, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	kept := make([]model.Message, 0, len(m.w.st.messages))
	var n int64
	for _, msg := range m.w.st.messages {
		if msg.MatchID == matchID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.w.st.messages = kept
	return n, nil
}

// Conversations mirrors pgrepo.ConversationRepo.
type Conversations struct {
	w *World
}

func (c *Conversations) Ensure(_ context.Context, _ pgx.Tx, m model.Match, decisionExpiresAt, at time.Time) error {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	if _, ok := c.w.st.conversations[m.ID]; ok {
		return nil
	}
	c.w.st.conversations[m.ID] = model.ConversationState{
		MatchID:           m.ID,
		UserLowID:         m.UserLowID,
		UserHighID:        m.UserHighID,
		DecisionExpiresAt: decisionExpiresAt.UTC(),
		CreatedAt:         at.UTC(),
	}
	return nil
}

func (c *Conversations) Get(_ context.Context, _ pgx.Tx, matchID int64) (model.ConversationState, error) {
	return c.get(matchID)
}

func (c *Conversations) GetForUpdate(_ context.Context, _ pgx.Tx, matchID int64) (model.ConversationState, error) {
	return c.get(matchID)
}

func (c *Conversations) get(matchID int64) (model.ConversationState, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	state, ok := c.w.st.conversations[matchID]
	if !ok {
		return model.ConversationState{}, pgrepo.ErrConversationNotFound
	}
	return state, nil
}

func (c *Conversations) SetConsent(_ context.Context, _ pgx.Tx, matchID, userID int64, tier enums.Tier, at time.Time) (bool, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	state, ok := c.w.st.conversations[matchID]
	if !ok || state.TerminalState != nil {
		return false, nil
	}
	t := tier
	switch {
	case state.UserLowID == userID && state.LowConsentAt == nil:
		state.LowConsentAt = timePtr(at)
		state.LowTier = &t
	case state.UserHighID == userID && state.HighConsentAt == nil:
		state.HighConsentAt = timePtr(at)
		state.HighTier = &t
	default:
		return false, nil
	}
	c.w.st.conversations[matchID] = state
	return true, nil
}

func (c *Conversations) Activate(_ context.Context, _ pgx.Tx, matchID int64, at, inactivityExpiresAt time.Time) (bool, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	state, ok := c.w.st.conversations[matchID]
	if !ok || state.ActiveAt != nil || state.TerminalState != nil || !state.BothConsented() {
		return false, nil
	}
	state.ActiveAt = timePtr(at)
	state.InactivityExpiresAt = timePtr(inactivityExpiresAt)
	c.w.st.conversations[matchID] = state
	return true, nil
}

func (c *Conversations) Finalize(_ context.Context, _ pgx.Tx, matchID int64, terminal enums.TerminalState, at time.Time) (bool, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	return c.w.st.finalize(matchID, terminal, at), nil
}

func (s state) finalize(matchID int64, terminal enums.TerminalState, at time.Time) bool {
	state, ok := s.conversations[matchID]
	if !ok || state.TerminalState != nil {
		return false
	}
	if terminal == enums.TerminalExpired && state.ActiveAt != nil {
		return false
	}
	ts := terminal
	state.TerminalState = &ts
	state.TerminalAt = timePtr(at)
	s.conversations[matchID] = state
	return true
}

func (c *Conversations) Archive(_ context.Context, _ pgx.Tx, matchID int64, at time.Time) (bool, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	state, ok := c.w.st.conversations[matchID]
	if !ok || state.ActiveAt == nil || state.ArchivedAt != nil || state.TerminalState != nil {
		return false, nil
	}
	state.ArchivedAt = timePtr(at)
	c.w.st.conversations[matchID] = state
	return true, nil
}

// LockUser is a no-op: World.Runner already serializes transactions.
func (c *Conversations) LockUser(context.Context, pgx.Tx, int64) error { return nil }

func (c *Conversations) CountActiveForUser(_ context.Context, _ pgx.Tx, userID, excludeMatchID int64) (int, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	n := 0
	for id, state := range c.w.st.conversations {
		if id == excludeMatchID || !state.Has(userID) {
			continue
		}
		if state.ActiveAt != nil && state.TerminalState == nil && state.ArchivedAt == nil {
			n++
		}
	}
	return n, nil
}

func (c *Conversations) FinalizeOverdue(_ context.Context, at time.Time, limit int) (int64, error) {
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	var n int64
	for id, state := range c.w.st.conversations {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if !state.DecisionOverdue(at) {
			continue
		}
		if c.w.st.finalize(id, enums.TerminalExpired, at) {
			n++
		}
	}
	return n, nil
}
