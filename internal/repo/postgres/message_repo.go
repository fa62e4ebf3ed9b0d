package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// InsertSystemHint writes the start-chat hint for one recipient at most once per match.
// The existence check and the partial unique index both guard concurrent formation.
func (r *MessageRepo) InsertSystemHint(ctx context.Context, tx pgx.Tx, matchID, recipientID int64, body string, at time.Time) (bool, error) {
	if matchID <= 0 || recipientID <= 0 || strings.TrimSpace(body) == "" {
		return false, fmt.Errorf("invalid system hint payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
INSERT INTO messages (
	match_id,
	sender_id,
	recipient_id,
	kind,
	body,
	created_at
)
SELECT $1, NULL, $2, 'system_hint', $3, $4
WHERE NOT EXISTS (
	SELECT 1
	FROM messages
	WHERE match_id = $1 AND recipient_id = $2 AND kind = 'system_hint'
)
ON CONFLICT DO NOTHING
`, matchID, recipientID, body, at.UTC())
	if err != nil {
		return false, fmt.Errorf("insert system hint: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListTextBodies returns every user-written message of the match, oldest first.
func (r *MessageRepo) ListTextBodies(ctx context.Context, tx pgx.Tx, matchID int64) ([]string, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}

	rows, err := tx.Query(ctx, `
SELECT body
FROM messages
WHERE match_id = $1 AND kind = 'text'
ORDER BY id ASC
`, matchID)
	if err != nil {
		return nil, fmt.Errorf("list match messages: %w", err)
	}
	defer rows.Close()

	bodies := make([]string, 0, 32)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan match message: %w", err)
		}
		bodies = append(bodies, body)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate match messages: %w", rows.Err())
	}

	return bodies, nil
}

func (r *MessageRepo) DeleteByMatch(ctx context.Context, tx pgx.Tx, matchID int64) (int64, error) {
	if matchID <= 0 {
		return 0, fmt.Errorf("invalid match id")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM messages
WHERE match_id = $1
`, matchID)
	if err != nil {
		return 0, fmt.Errorf("delete match messages: %w", err)
	}

	return result.RowsAffected(), nil
}
