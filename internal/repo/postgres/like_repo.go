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
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

var ErrLikeNotFound = errors.New("like not found")

type LikeRepo struct {
	pool *pgxpool.Pool
}

func NewLikeRepo(pool *pgxpool.Pool) *LikeRepo {
	return &LikeRepo{pool: pool}
}

type IncomingLikeRecord struct {
	EdgeID     int64
	FromUserID int64
	State      enums.EdgeState
	Annotation *model.Annotation
	LikedAt    time.Time
	SurfacedAt *time.Time
}

const likeColumns = `
	id,
	from_user_id,
	to_user_id,
	state,
	annotation_kind,
	annotation_key,
	annotation_comment,
	created_at,
	surfaced_at,
	matched_at,
	expired_at`

func (r *LikeRepo) LockPair(ctx context.Context, tx pgx.Tx, userID, targetID int64) error {
	return LockPair(ctx, tx, userID, targetID)
}

func (r *LikeRepo) LockRecipient(ctx context.Context, tx pgx.Tx, userID int64) error {
	return LockRecipient(ctx, tx, userID)
}

func (r *LikeRepo) Get(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64) (model.LikeEdge, error) {
	if fromUserID <= 0 || toUserID <= 0 {
		return model.LikeEdge{}, fmt.Errorf("invalid like lookup payload")
	}
	if tx == nil {
		return model.LikeEdge{}, fmt.Errorf("transaction is required")
	}

	edge, err := scanLikeEdge(tx.QueryRow(ctx, `
SELECT`+likeColumns+`
FROM likes
WHERE from_user_id = $1 AND to_user_id = $2
LIMIT 1
`, fromUserID, toUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LikeEdge{}, ErrLikeNotFound
		}
		return model.LikeEdge{}, fmt.Errorf("lookup like: %w", err)
	}

	return edge, nil
}

// Upsert inserts a hidden edge or refreshes the annotation of an existing one.
// State and created_at of an existing edge are never touched.
func (r *LikeRepo) Upsert(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64, annotation *model.Annotation, at time.Time) (bool, error) {
	if fromUserID <= 0 || toUserID <= 0 || fromUserID == toUserID {
		return false, fmt.Errorf("invalid like payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	var kind, key, comment *string
	if annotation != nil {
		k := string(annotation.Kind)
		kind = &k
		if annotation.Key != "" {
			v := annotation.Key
			key = &v
		}
		if annotation.Comment != "" {
			v := annotation.Comment
			comment = &v
		}
	}

	var inserted bool
	if err := tx.QueryRow(ctx, `
INSERT INTO likes (
	from_user_id,
	to_user_id,
	state,
	annotation_kind,
	annotation_key,
	annotation_comment,
	created_at,
	updated_at
) VALUES ($1, $2, 'pending_hidden', $3, $4, $5, $6, $6)
ON CONFLICT (from_user_id, to_user_id) DO UPDATE SET
	annotation_kind = COALESCE(EXCLUDED.annotation_kind, likes.annotation_kind),
	annotation_key = CASE WHEN EXCLUDED.annotation_kind IS NULL THEN likes.annotation_key ELSE EXCLUDED.annotation_key END,
	annotation_comment = CASE WHEN EXCLUDED.annotation_kind IS NULL THEN likes.annotation_comment ELSE EXCLUDED.annotation_comment END,
	updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)
`, fromUserID, toUserID, kind, key, comment, at.UTC()).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert like: %w", err)
	}

	return inserted, nil
}

func (r *LikeRepo) MarkMatched(ctx context.Context, tx pgx.Tx, userID, targetID int64, at time.Time) error {
	if userID <= 0 || targetID <= 0 {
		return fmt.Errorf("invalid like match payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE likes
SET
	state = 'matched',
	matched_at = COALESCE(matched_at, $3),
	updated_at = $3
WHERE
	(from_user_id = $1 AND to_user_id = $2)
	OR (from_user_id = $2 AND to_user_id = $1)
`, userID, targetID, at.UTC()); err != nil {
		return fmt.Errorf("mark likes matched: %w", err)
	}

	return nil
}

func (r *LikeRepo) Delete(ctx context.Context, tx pgx.Tx, fromUserID, toUserID int64) (bool, error) {
	if fromUserID <= 0 || toUserID <= 0 {
		return false, fmt.Errorf("invalid like delete payload")
	}
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM likes
WHERE from_user_id = $1 AND to_user_id = $2
`, fromUserID, toUserID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListQueuedCounterparts returns users whose pair with userID is mutually matched
// at the edge level but still has no match row.
func (r *LikeRepo) ListQueuedCounterparts(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]int64, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := tx.Query(ctx, `
SELECT o.to_user_id
FROM likes o
JOIN likes i ON i.from_user_id = o.to_user_id AND i.to_user_id = o.from_user_id
WHERE
	o.from_user_id = $1
	AND o.state = 'matched'
	AND i.state = 'matched'
	AND NOT EXISTS (
		SELECT 1
		FROM matches m
		WHERE m.user_low_id = LEAST($1, o.to_user_id)
			AND m.user_high_id = GREATEST($1, o.to_user_id)
	)
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE (b.actor_user_id = $1 AND b.target_user_id = o.to_user_id)
			OR (b.actor_user_id = o.to_user_id AND b.target_user_id = $1)
	)
ORDER BY o.matched_at ASC NULLS LAST, o.to_user_id ASC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued matches: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan queued match: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate queued matches: %w", rows.Err())
	}

	return ids, nil
}

func (r *LikeRepo) ExpireSurfaced(ctx context.Context, tx pgx.Tx, recipientID int64, cutoff, at time.Time) (int64, error) {
	if recipientID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE likes
SET
	state = 'expired',
	expired_at = $3,
	updated_at = $3
WHERE
	to_user_id = $1
	AND state = 'surfaced'
	AND surfaced_at < $2
`, recipientID, cutoff.UTC(), at.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire surfaced likes: %w", err)
	}

	return result.RowsAffected(), nil
}

// PromotionCounts returns how many likes the recipient currently sees and how
// many were surfaced since windowStart.
func (r *LikeRepo) PromotionCounts(ctx context.Context, tx pgx.Tx, recipientID int64, windowStart time.Time) (int, int, error) {
	if recipientID <= 0 {
		return 0, 0, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return 0, 0, fmt.Errorf("transaction is required")
	}

	var visible, promoted int
	if err := tx.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE state = 'surfaced'),
	COUNT(*) FILTER (WHERE surfaced_at > $2)
FROM likes
WHERE to_user_id = $1
`, recipientID, windowStart.UTC()).Scan(&visible, &promoted); err != nil {
		return 0, 0, fmt.Errorf("count surfaced likes: %w", err)
	}

	return visible, promoted, nil
}

// ListPromotionCandidates locks hidden likes created at or before cutoff, newest
// first, with the sender's last-seen time. Rows locked by a concurrent surface are skipped.
func (r *LikeRepo) ListPromotionCandidates(ctx context.Context, tx pgx.Tx, recipientID int64, cutoff time.Time, limit int) ([]rules.PromotionCandidate, error) {
	if recipientID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}
	if limit <= 0 {
		limit = 200
	}

	rows, err := tx.Query(ctx, `
SELECT l.id, l.created_at, p.last_seen_at
FROM likes l
LEFT JOIN user_presence p ON p.user_id = l.from_user_id
WHERE
	l.to_user_id = $1
	AND l.state = 'pending_hidden'
	AND l.created_at <= $2
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE (b.actor_user_id = $1 AND b.target_user_id = l.from_user_id)
			OR (b.actor_user_id = l.from_user_id AND b.target_user_id = $1)
	)
ORDER BY l.created_at DESC, l.id DESC
LIMIT $3
FOR UPDATE OF l SKIP LOCKED
`, recipientID, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list promotion candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]rules.PromotionCandidate, 0, limit)
	for rows.Next() {
		var c rules.PromotionCandidate
		if err := rows.Scan(&c.EdgeID, &c.CreatedAt, &c.SenderLastSeen); err != nil {
			return nil, fmt.Errorf("scan promotion candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate promotion candidates: %w", rows.Err())
	}

	return candidates, nil
}

// SurfaceByIDs promotes the selected hidden likes in one bounded update.
func (r *LikeRepo) SurfaceByIDs(ctx context.Context, tx pgx.Tx, edgeIDs []int64, at time.Time) (int64, error) {
	if len(edgeIDs) == 0 {
		return 0, nil
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE likes
SET
	state = 'surfaced',
	surfaced_at = $2,
	updated_at = $2
WHERE id = ANY($1) AND state = 'pending_hidden'
`, edgeIDs, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("surface likes: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *LikeRepo) ListIncomingVisible(ctx context.Context, recipientID int64, limit int) ([]IncomingLikeRecord, error) {
	if recipientID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 50
	}
	if r.pool == nil {
		return []IncomingLikeRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+likeColumns+`
FROM likes l
WHERE
	l.to_user_id = $1
	AND l.state = 'surfaced'
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE (b.actor_user_id = l.from_user_id AND b.target_user_id = $1)
			OR (b.actor_user_id = $1 AND b.target_user_id = l.from_user_id)
	)
ORDER BY l.surfaced_at DESC, l.id DESC
LIMIT $2
`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incoming likes: %w", err)
	}
	defer rows.Close()

	items := make([]IncomingLikeRecord, 0, limit)
	for rows.Next() {
		edge, err := scanLikeEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incoming like: %w", err)
		}
		items = append(items, IncomingLikeRecord{
			EdgeID:     edge.ID,
			FromUserID: edge.FromUserID,
			State:      edge.State,
			Annotation: edge.Annotation,
			LikedAt:    edge.CreatedAt,
			SurfacedAt: edge.SurfacedAt,
		})
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate incoming likes: %w", rows.Err())
	}

	return items, nil
}

func (r *LikeRepo) ListBoostCandidates(ctx context.Context, viewerID int64, limit int) ([]int64, error) {
	if viewerID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 20
	}
	if r.pool == nil {
		return []int64{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT l.from_user_id
FROM likes l
WHERE
	l.to_user_id = $1
	AND l.state IN ('pending_hidden', 'surfaced')
	AND NOT EXISTS (
		SELECT 1
		FROM passes ps
		WHERE ps.actor_user_id = $1 AND ps.target_user_id = l.from_user_id
	)
	AND NOT EXISTS (
		SELECT 1
		FROM matches m
		WHERE m.user_low_id = LEAST($1, l.from_user_id)
			AND m.user_high_id = GREATEST($1, l.from_user_id)
	)
	AND NOT EXISTS (
		SELECT 1
		FROM blocks b
		WHERE (b.actor_user_id = $1 AND b.target_user_id = l.from_user_id)
			OR (b.actor_user_id = l.from_user_id AND b.target_user_id = $1)
	)
ORDER BY l.created_at DESC, l.id DESC
LIMIT $2
`, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list boost candidates: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan boost candidate: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate boost candidates: %w", rows.Err())
	}

	return ids, nil
}

// ExpireStaleSurfaced is the batch form of ExpireSurfaced used by the hygiene sweep.
func (r *LikeRepo) ExpireStaleSurfaced(ctx context.Context, cutoff, at time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	if r.pool == nil {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `
WITH stale AS (
	SELECT id
	FROM likes
	WHERE state = 'surfaced' AND surfaced_at < $1
	ORDER BY id
	LIMIT $3
	FOR UPDATE SKIP LOCKED
)
UPDATE likes
SET
	state = 'expired',
	expired_at = $2,
	updated_at = $2
FROM stale
WHERE likes.id = stale.id
`, cutoff.UTC(), at.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("expire stale surfaced likes: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanLikeEdge(row pgx.Row) (model.LikeEdge, error) {
	var (
		edge    model.LikeEdge
		state   string
		kind    *string
		key     *string
		comment *string
	)
	if err := row.Scan(
		&edge.ID,
		&edge.FromUserID,
		&edge.ToUserID,
		&state,
		&kind,
		&key,
		&comment,
		&edge.CreatedAt,
		&edge.SurfacedAt,
		&edge.MatchedAt,
		&edge.ExpiredAt,
	); err != nil {
		return model.LikeEdge{}, err
	}

	edge.State = enums.EdgeState(state)
	if kind != nil {
		ann := &model.Annotation{Kind: enums.AnnotationKind(*kind)}
		if key != nil {
			ann.Key = *key
		}
		if comment != nil {
			ann.Comment = *comment
		}
		edge.Annotation = ann
	}

	return edge, nil
}
