package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
)

var ErrConversationNotFound = errors.New("conversation state not found")

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

const conversationColumns = `
	match_id,
	user_low_id,
	user_high_id,
	low_consent_at,
	low_tier,
	high_consent_at,
	high_tier,
	active_at,
	decision_expires_at,
	inactivity_expires_at,
	archived_at,
	terminal_state,
	terminal_at,
	created_at`

// Ensure creates the state row for a match if it does not exist yet.
func (r *ConversationRepo) Ensure(ctx context.Context, tx pgx.Tx, m model.Match, decisionExpiresAt, at time.Time) error {
	if m.ID <= 0 || m.UserLowID <= 0 || m.UserHighID <= 0 {
		return fmt.Errorf("invalid conversation payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO conversation_states (
	match_id,
	user_low_id,
	user_high_id,
	decision_expires_at,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (match_id) DO NOTHING
`, m.ID, m.UserLowID, m.UserHighID, decisionExpiresAt.UTC(), at.UTC()); err != nil {
		return fmt.Errorf("ensure conversation state: %w", err)
	}

	return nil
}

func (r *ConversationRepo) Get(ctx context.Context, tx pgx.Tx, matchID int64) (model.ConversationState, error) {
	return r.get(ctx, tx, matchID, false)
}

func (r *ConversationRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, matchID int64) (model.ConversationState, error) {
	return r.get(ctx, tx, matchID, true)
}

func (r *ConversationRepo) get(ctx context.Context, tx pgx.Tx, matchID int64, forUpdate bool) (model.ConversationState, error) {
	if matchID <= 0 {
		return model.ConversationState{}, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return model.ConversationState{}, fmt.Errorf("transaction is required")
	}

	query := `
SELECT` + conversationColumns + `
FROM conversation_states
WHERE match_id = $1`
	if forUpdate {
		query += `
FOR UPDATE`
	}

	state, err := scanConversation(tx.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ConversationState{}, ErrConversationNotFound
		}
		return model.ConversationState{}, fmt.Errorf("get conversation state: %w", err)
	}

	return state, nil
}

// SetConsent records the first consent of a participant. Later calls never overwrite it.
func (r *ConversationRepo) SetConsent(ctx context.Context, tx pgx.Tx, matchID, userID int64, tier enums.Tier, at time.Time) (bool, error) {
	if matchID <= 0 || userID <= 0 || tier == "" {
		return false, fmt.Errorf("invalid consent payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE conversation_states
SET
	low_consent_at = CASE WHEN user_low_id = $2 THEN $4 ELSE low_consent_at END,
	low_tier = CASE WHEN user_low_id = $2 THEN $3 ELSE low_tier END,
	high_consent_at = CASE WHEN user_high_id = $2 THEN $4 ELSE high_consent_at END,
	high_tier = CASE WHEN user_high_id = $2 THEN $3 ELSE high_tier END,
	updated_at = $4
WHERE
	match_id = $1
	AND terminal_state IS NULL
	AND (
		(user_low_id = $2 AND low_consent_at IS NULL)
		OR (user_high_id = $2 AND high_consent_at IS NULL)
	)
`, matchID, userID, string(tier), at.UTC())
	if err != nil {
		return false, fmt.Errorf("record consent: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *ConversationRepo) Activate(ctx context.Context, tx pgx.Tx, matchID int64, at, inactivityExpiresAt time.Time) (bool, error) {
	if matchID <= 0 {
		return false, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE conversation_states
SET
	active_at = $2,
	inactivity_expires_at = $3,
	updated_at = $2
WHERE
	match_id = $1
	AND active_at IS NULL
	AND terminal_state IS NULL
	AND low_consent_at IS NOT NULL
	AND high_consent_at IS NOT NULL
`, matchID, at.UTC(), inactivityExpiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("activate conversation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Finalize sets a terminal state once. Expiry never applies to an activated conversation.
func (r *ConversationRepo) Finalize(ctx context.Context, tx pgx.Tx, matchID int64, terminal enums.TerminalState, at time.Time) (bool, error) {
	if matchID <= 0 || terminal == "" {
		return false, fmt.Errorf("invalid finalize payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE conversation_states
SET
	terminal_state = $2,
	terminal_at = $3,
	updated_at = $3
WHERE
	match_id = $1
	AND terminal_state IS NULL
	AND ($2::text <> 'expired' OR active_at IS NULL)
`, matchID, string(terminal), at.UTC())
	if err != nil {
		return false, fmt.Errorf("finalize conversation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *ConversationRepo) Archive(ctx context.Context, tx pgx.Tx, matchID int64, at time.Time) (bool, error) {
	if matchID <= 0 {
		return false, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE conversation_states
SET
	archived_at = $2,
	updated_at = $2
WHERE
	match_id = $1
	AND active_at IS NOT NULL
	AND archived_at IS NULL
	AND terminal_state IS NULL
`, matchID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("archive conversation: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *ConversationRepo) LockUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	return LockUser(ctx, tx, userID)
}

// CountActiveForUser counts live conversations of the user, optionally excluding one match.
func (r *ConversationRepo) CountActiveForUser(ctx context.Context, tx pgx.Tx, userID, excludeMatchID int64) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var count int
	if err := tx.QueryRow(ctx, `
SELECT COUNT(*)
FROM conversation_states
WHERE
	(user_low_id = $1 OR user_high_id = $1)
	AND match_id <> $2
	AND active_at IS NOT NULL
	AND terminal_state IS NULL
	AND archived_at IS NULL
`, userID, excludeMatchID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active conversations: %w", err)
	}

	return count, nil
}

// FinalizeOverdue expires a batch of conversations whose decision deadline passed.
func (r *ConversationRepo) FinalizeOverdue(ctx context.Context, at time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	if r.pool == nil {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `
WITH overdue AS (
	SELECT match_id
	FROM conversation_states
	WHERE
		terminal_state IS NULL
		AND active_at IS NULL
		AND decision_expires_at <= $1
	ORDER BY decision_expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
UPDATE conversation_states c
SET
	terminal_state = 'expired',
	terminal_at = $1,
	updated_at = $1
FROM overdue
WHERE c.match_id = overdue.match_id
`, at.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("finalize overdue conversations: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanConversation(row pgx.Row) (model.ConversationState, error) {
	var (
		state    model.ConversationState
		lowTier  *string
		highTier *string
		terminal *string
	)
	if err := row.Scan(
		&state.MatchID,
		&state.UserLowID,
		&state.UserHighID,
		&state.LowConsentAt,
		&lowTier,
		&state.HighConsentAt,
		&highTier,
		&state.ActiveAt,
		&state.DecisionExpiresAt,
		&state.InactivityExpiresAt,
		&state.ArchivedAt,
		&terminal,
		&state.TerminalAt,
		&state.CreatedAt,
	); err != nil {
		return model.ConversationState{}, err
	}

	if lowTier != nil {
		t := enums.Tier(*lowTier)
		state.LowTier = &t
	}
	if highTier != nil {
		t := enums.Tier(*highTier)
		state.HighTier = &t
	}
	if terminal != nil {
		ts := enums.TerminalState(*terminal)
		state.TerminalState = &ts
	}

	return state, nil
}
