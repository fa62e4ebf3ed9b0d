package surfacing

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

type recordingLikes struct {
	visible    int
	promoted   int
	candidates []rules.PromotionCandidate

	listCalls    int
	listedCutoff time.Time
	surfacedIDs  []int64
}

func (r *recordingLikes) LockRecipient(context.Context, pgx.Tx, int64) error { return nil }

func (r *recordingLikes) ExpireSurfaced(context.Context, pgx.Tx, int64, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func (r *recordingLikes) PromotionCounts(context.Context, pgx.Tx, int64, time.Time) (int, int, error) {
	return r.visible, r.promoted, nil
}

func (r *recordingLikes) ListPromotionCandidates(_ context.Context, _ pgx.Tx, _ int64, cutoff time.Time, _ int) ([]rules.PromotionCandidate, error) {
	r.listCalls++
	r.listedCutoff = cutoff
	return r.candidates, nil
}

func (r *recordingLikes) SurfaceByIDs(_ context.Context, _ pgx.Tx, ids []int64, _ time.Time) (int64, error) {
	r.surfacedIDs = append([]int64(nil), ids...)
	return int64(len(ids)), nil
}

func (r *recordingLikes) ListBoostCandidates(context.Context, int64, int) ([]int64, error) {
	return nil, nil
}

type seenStub struct {
	at *time.Time
}

func (s seenStub) LastSeen(context.Context, pgx.Tx, int64) (*time.Time, error) { return s.at, nil }

func directRunner(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func newRecordingService(likes *recordingLikes, lastSeen *time.Time, policy rules.SurfacingPolicy, now time.Time) *Service {
	svc := NewService(Dependencies{
		Tx:       directRunner,
		Likes:    likes,
		Presence: seenStub{at: lastSeen},
	}, Config{Policy: policy})
	svc.now = func() time.Time { return now }
	return svc
}

func TestSurfacePromotesPolicyRankedIDs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-time.Hour)
	online := now.Add(-time.Minute)
	created := now.Add(-3 * time.Hour)
	policy := rules.SurfacingPolicy{
		MaxVisible:   3,
		DailyQuota:   10,
		Delay:        time.Hour,
		OnlineWindow: 5 * time.Minute,
		OnlineBonus:  30 * time.Minute,
	}.Normalize()
	policy.ImmediateFirst = false

	likes := &recordingLikes{
		visible: 1,
		candidates: []rules.PromotionCandidate{
			{EdgeID: 10, CreatedAt: created},
			{EdgeID: 11, CreatedAt: created},
			{EdgeID: 12, CreatedAt: created.Add(-10 * time.Minute), SenderLastSeen: &online},
			{EdgeID: 13, CreatedAt: created.Add(-time.Hour)},
		},
	}

	n, err := newRecordingService(likes, &seen, policy, now).Surface(context.Background(), recipient)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	if n != 2 {
		t.Fatalf("unexpected promoted count: got %d want 2", n)
	}
	if want := []int64{12, 11}; !reflect.DeepEqual(likes.surfacedIDs, want) {
		t.Fatalf("unexpected surfaced ids: got %v want %v", likes.surfacedIDs, want)
	}
	if want := now.Add(-policy.Delay); !likes.listedCutoff.Equal(want) {
		t.Fatalf("unexpected candidate cutoff: got %s want %s", likes.listedCutoff, want)
	}
}

func TestSurfaceImmediateFirstUsesZeroDelayCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-time.Hour)
	likes := &recordingLikes{
		candidates: []rules.PromotionCandidate{{EdgeID: 5, CreatedAt: now.Add(-time.Second)}},
	}

	n, err := newRecordingService(likes, &seen, rules.DefaultSurfacingPolicy(), now).Surface(context.Background(), recipient)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	if n != 1 || !likes.listedCutoff.Equal(now) {
		t.Fatalf("fresh like must surface with nothing visible: n=%d cutoff=%s", n, likes.listedCutoff)
	}
}

func TestSurfaceSkipsCandidateScanWhenBudgetIsSpent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	likes := &recordingLikes{
		visible:    0,
		promoted:   10,
		candidates: []rules.PromotionCandidate{{EdgeID: 1, CreatedAt: now.Add(-5 * time.Hour)}},
	}

	n, err := newRecordingService(likes, nil, rules.DefaultSurfacingPolicy(), now).Surface(context.Background(), recipient)
	if err != nil {
		t.Fatalf("surface: %v", err)
	}
	if n != 0 || likes.listCalls != 0 || likes.surfacedIDs != nil {
		t.Fatalf("daily quota spent must skip promotion: n=%d list=%d ids=%v", n, likes.listCalls, likes.surfacedIDs)
	}
}
