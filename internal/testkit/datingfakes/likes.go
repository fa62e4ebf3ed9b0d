package datingfakes

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
)

// Likes mirrors pgrepo.LikeRepo.
type Likes struct {
	w *World
}

func (l *Likes) LockPair(context.Context, pgx.Tx, int64, int64) error { return nil }

func (l *Likes) LockRecipient(context.Context, pgx.Tx, int64) error { return nil }

func (l *Likes) Get(_ context.Context, _ pgx.Tx, fromUserID, toUserID int64) (model.LikeEdge, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	edge, ok := l.w.st.likes[pair{a: fromUserID, b: toUserID}]
	if !ok {
		return model.LikeEdge{}, pgrepo.ErrLikeNotFound
	}
	return edge, nil
}

func (l *Likes) Upsert(_ context.Context, _ pgx.Tx, fromUserID, toUserID int64, annotation *model.Annotation, at time.Time) (bool, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	key := pair{a: fromUserID, b: toUserID}
	if edge, ok := l.w.st.likes[key]; ok {
		if annotation != nil {
			a := *annotation
			edge.Annotation = &a
			l.w.st.likes[key] = edge
		}
		return false, nil
	}

	l.w.st.nextLikeID++
	edge := model.LikeEdge{
		ID:         l.w.st.nextLikeID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		State:      enums.EdgeStatePendingHidden,
		CreatedAt:  at.UTC(),
	}
	if annotation != nil {
		a := *annotation
		edge.Annotation = &a
	}
	l.w.st.likes[key] = edge
	return true, nil
}

func (l *Likes) MarkMatched(_ context.Context, _ pgx.Tx, userID, targetID int64, at time.Time) error {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	for _, key := range []pair{{a: userID, b: targetID}, {a: targetID, b: userID}} {
		edge, ok := l.w.st.likes[key]
		if !ok {
			continue
		}
		edge.State = enums.EdgeStateMatched
		if edge.MatchedAt == nil {
			edge.MatchedAt = timePtr(at)
		}
		l.w.st.likes[key] = edge
	}
	return nil
}

func (l *Likes) Delete(_ context.Context, _ pgx.Tx, fromUserID, toUserID int64) (bool, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	key := pair{a: fromUserID, b: toUserID}
	if _, ok := l.w.st.likes[key]; !ok {
		return false, nil
	}
	delete(l.w.st.likes, key)
	return true, nil
}

func (l *Likes) ListQueuedCounterparts(_ context.Context, _ pgx.Tx, userID int64, limit int) ([]int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	type queued struct {
		id        int64
		matchedAt time.Time
	}
	items := make([]queued, 0)
	for key, out := range l.w.st.likes {
		if key.a != userID || out.State != enums.EdgeStateMatched {
			continue
		}
		in, ok := l.w.st.likes[pair{a: key.b, b: userID}]
		if !ok || in.State != enums.EdgeStateMatched {
			continue
		}
		if _, matched := l.w.st.matchByUsers(userID, key.b); matched {
			continue
		}
		if l.w.st.blockedEither(userID, key.b) {
			continue
		}
		item := queued{id: key.b}
		if out.MatchedAt != nil {
			item.matchedAt = *out.MatchedAt
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].matchedAt.Equal(items[j].matchedAt) {
			return items[i].matchedAt.Before(items[j].matchedAt)
		}
		return items[i].id < items[j].id
	})

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, item.id)
	}
	return ids, nil
}

func (l *Likes) ExpireSurfaced(_ context.Context, _ pgx.Tx, recipientID int64, cutoff, at time.Time) (int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	return l.w.st.expireSurfaced(func(e model.LikeEdge) bool { return e.ToUserID == recipientID }, cutoff, at, 0), nil
}

func (l *Likes) ExpireStaleSurfaced(_ context.Context, cutoff, at time.Time, limit int) (int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	return l.w.st.expireSurfaced(func(model.LikeEdge) bool { return true }, cutoff, at, limit), nil
}

func (s state) expireSurfaced(match func(model.LikeEdge) bool, cutoff, at time.Time, limit int) int64 {
	var n int64
	for key, edge := range s.likes {
		if limit > 0 && n >= int64(limit) {
			break
		}
		if !match(edge) || edge.State != enums.EdgeStateSurfaced || edge.SurfacedAt == nil || !edge.SurfacedAt.Before(cutoff) {
			continue
		}
		edge.State = enums.EdgeStateExpired
		edge.ExpiredAt = timePtr(at)
		s.likes[key] = edge
		n++
	}
	return n
}

func (l *Likes) PromotionCounts(_ context.Context, _ pgx.Tx, recipientID int64, windowStart time.Time) (int, int, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	var visible, promoted int
	for _, edge := range l.w.st.likes {
		if edge.ToUserID != recipientID {
			continue
		}
		if edge.State == enums.EdgeStateSurfaced {
			visible++
		}
		if edge.SurfacedAt != nil && edge.SurfacedAt.After(windowStart) {
			promoted++
		}
	}
	return visible, promoted, nil
}

// ListPromotionCandidates mirrors the row filter and order of the postgres query.
func (l *Likes) ListPromotionCandidates(_ context.Context, _ pgx.Tx, recipientID int64, cutoff time.Time, limit int) ([]rules.PromotionCandidate, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	candidates := make([]rules.PromotionCandidate, 0)
	for _, edge := range l.w.st.likes {
		if edge.ToUserID != recipientID || edge.State != enums.EdgeStatePendingHidden || edge.CreatedAt.After(cutoff) {
			continue
		}
		if l.w.st.blockedEither(recipientID, edge.FromUserID) {
			continue
		}
		c := rules.PromotionCandidate{EdgeID: edge.ID, CreatedAt: edge.CreatedAt}
		if seen, ok := l.w.st.lastSeen[edge.FromUserID]; ok {
			c.SenderLastSeen = timePtr(seen)
		}
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].EdgeID > candidates[j].EdgeID
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (l *Likes) SurfaceByIDs(_ context.Context, _ pgx.Tx, edgeIDs []int64, at time.Time) (int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	wanted := make(map[int64]struct{}, len(edgeIDs))
	for _, id := range edgeIDs {
		wanted[id] = struct{}{}
	}
	var n int64
	for key, edge := range l.w.st.likes {
		if _, ok := wanted[edge.ID]; !ok || edge.State != enums.EdgeStatePendingHidden {
			continue
		}
		edge.State = enums.EdgeStateSurfaced
		edge.SurfacedAt = timePtr(at)
		l.w.st.likes[key] = edge
		n++
	}
	return n, nil
}

func (l *Likes) ListIncomingVisible(_ context.Context, recipientID int64, limit int) ([]pgrepo.IncomingLikeRecord, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	items := make([]pgrepo.IncomingLikeRecord, 0)
	for _, edge := range l.w.st.likes {
		if edge.ToUserID != recipientID || edge.State != enums.EdgeStateSurfaced || l.w.st.blockedEither(recipientID, edge.FromUserID) {
			continue
		}
		items = append(items, pgrepo.IncomingLikeRecord{
			EdgeID:     edge.ID,
			FromUserID: edge.FromUserID,
			State:      edge.State,
			Annotation: edge.Annotation,
			LikedAt:    edge.CreatedAt,
			SurfacedAt: edge.SurfacedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SurfacedAt.Equal(*items[j].SurfacedAt) {
			return items[i].SurfacedAt.After(*items[j].SurfacedAt)
		}
		return items[i].EdgeID > items[j].EdgeID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (l *Likes) ListBoostCandidates(_ context.Context, viewerID int64, limit int) ([]int64, error) {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()

	edges := make([]model.LikeEdge, 0)
	for _, edge := range l.w.st.likes {
		if edge.ToUserID != viewerID {
			continue
		}
		if edge.State != enums.EdgeStatePendingHidden && edge.State != enums.EdgeStateSurfaced {
			continue
		}
		if _, passed := l.w.st.passes[pair{a: viewerID, b: edge.FromUserID}]; passed {
			continue
		}
		if _, matched := l.w.st.matchByUsers(viewerID, edge.FromUserID); matched {
			continue
		}
		if l.w.st.blockedEither(viewerID, edge.FromUserID) {
			continue
		}
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if !edges[i].CreatedAt.Equal(edges[j].CreatedAt) {
			return edges[i].CreatedAt.After(edges[j].CreatedAt)
		}
		return edges[i].ID > edges[j].ID
	})

	ids := make([]int64, 0, len(edges))
	for _, edge := range edges {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, edge.FromUserID)
	}
	return ids, nil
}
