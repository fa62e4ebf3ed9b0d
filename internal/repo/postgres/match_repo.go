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

var ErrMatchNotFound = errors.New("match not found")

type MatchRepo struct {
	pool *pgxpool.Pool
}

type MatchListRecord struct {
	ID            int64
	TargetUserID  int64
	CreatedAt     time.Time
	ActiveAt      *time.Time
	ArchivedAt    *time.Time
	TerminalState *enums.TerminalState
	ViewerConsent *time.Time
	TargetConsent *time.Time
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// Create inserts the normalized pair. created is false when the pair already had a match.
func (r *MatchRepo) Create(ctx context.Context, tx pgx.Tx, userID, targetID int64, at time.Time) (int64, bool, error) {
	if userID <= 0 || targetID <= 0 || userID == targetID {
		return 0, false, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return 0, false, fmt.Errorf("transaction is required")
	}

	low, high := model.NormalizePair(userID, targetID)

	var matchID int64
	err := tx.QueryRow(ctx, `
INSERT INTO matches (
	user_low_id,
	user_high_id,
	created_at
) VALUES ($1, $2, $3)
ON CONFLICT (user_low_id, user_high_id) DO NOTHING
RETURNING id
`, low, high, at.UTC()).Scan(&matchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("create match: %w", err)
	}

	return matchID, true, nil
}

func (r *MatchRepo) GetByUsers(ctx context.Context, tx pgx.Tx, userID, targetID int64) (model.Match, error) {
	if userID <= 0 || targetID <= 0 {
		return model.Match{}, fmt.Errorf("invalid match lookup payload")
	}
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	low, high := model.NormalizePair(userID, targetID)

	var m model.Match
	err := tx.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM matches
WHERE user_low_id = $1 AND user_high_id = $2
LIMIT 1
`, low, high).Scan(&m.ID, &m.UserLowID, &m.UserHighID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match by users: %w", err)
	}

	return m, nil
}

func (r *MatchRepo) GetByID(ctx context.Context, tx pgx.Tx, matchID int64) (model.Match, error) {
	if matchID <= 0 {
		return model.Match{}, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	var m model.Match
	err := tx.QueryRow(ctx, `
SELECT id, user_low_id, user_high_id, created_at
FROM matches
WHERE id = $1
LIMIT 1
`, matchID).Scan(&m.ID, &m.UserLowID, &m.UserHighID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match by id: %w", err)
	}

	return m, nil
}

func (r *MatchRepo) DeleteByID(ctx context.Context, tx pgx.Tx, matchID int64) (bool, error) {
	if matchID <= 0 {
		return false, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM matches
WHERE id = $1
`, matchID)
	if err != nil {
		return false, fmt.Errorf("delete match: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]MatchListRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 100
	}
	if r.pool == nil {
		return []MatchListRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id,
	CASE WHEN m.user_low_id = $1 THEN m.user_high_id ELSE m.user_low_id END AS target_user_id,
	m.created_at,
	c.active_at,
	c.archived_at,
	c.terminal_state,
	CASE WHEN m.user_low_id = $1 THEN c.low_consent_at ELSE c.high_consent_at END,
	CASE WHEN m.user_low_id = $1 THEN c.high_consent_at ELSE c.low_consent_at END
FROM matches m
LEFT JOIN conversation_states c ON c.match_id = m.id
WHERE
	(m.user_low_id = $1 OR m.user_high_id = $1)
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE b.actor_user_id = CASE WHEN m.user_low_id = $1 THEN m.user_high_id ELSE m.user_low_id END
			AND b.target_user_id = $1
	)
ORDER BY m.created_at DESC, m.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	items := make([]MatchListRecord, 0, limit)
	for rows.Next() {
		var (
			item     MatchListRecord
			terminal *string
		)
		if err := rows.Scan(
			&item.ID,
			&item.TargetUserID,
			&item.CreatedAt,
			&item.ActiveAt,
			&item.ArchivedAt,
			&terminal,
			&item.ViewerConsent,
			&item.TargetConsent,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if terminal != nil {
			ts := enums.TerminalState(*terminal)
			item.TerminalState = &ts
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matches: %w", rows.Err())
	}

	return items, nil
}
