package likes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	matchsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/matches"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/surfacing"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/testkit/datingfakes"
)

type notification struct {
	kind    string
	to      int64
	from    int64
	matchID *int64
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []notification
}

func (n *recordingNotifier) NotifyMatch(_ context.Context, toUserID, fromUserID int64, matchID *int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{kind: "match", to: toUserID, from: fromUserID, matchID: matchID})
}

func (n *recordingNotifier) NotifyLike(_ context.Context, toUserID, fromUserID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notification{kind: "like", to: toUserID, from: fromUserID})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.items...)
}

type blockingLimiter struct {
	retryAfter int64
}

func (l blockingLimiter) AllowLike(context.Context, int64) (int64, bool, error) {
	return l.retryAfter, false, nil
}

func (l blockingLimiter) RetryAfterLike(context.Context, int64) (int64, error) {
	return l.retryAfter, nil
}

type fakeSigner struct{}

func (fakeSigner) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + key + "?sig=1", nil
}

type stack struct {
	world   *datingfakes.World
	notes   *recordingNotifier
	service *Service
}

func newStack(t *testing.T, cfg Config) *stack {
	t.Helper()

	world := datingfakes.NewWorld()
	notes := &recordingNotifier{}
	matcher := matchsvc.NewService(matchsvc.Dependencies{
		Tx:            world.Runner(),
		Likes:         world.Likes(),
		Matches:       world.Matches(),
		Conversations: world.Conversations(),
		Messages:      world.Messages(),
		Tiers:         world.Entitlements(),
		Notifier:      notes,
	}, matchsvc.Config{Limits: rules.DefaultChatLimits()})
	surfacer := surfacing.NewService(surfacing.Dependencies{
		Tx:       world.Runner(),
		Likes:    world.Likes(),
		Presence: world.Presence(),
		Passes:   world.Passes(),
	}, surfacing.Config{Policy: rules.DefaultSurfacingPolicy()})

	service := NewService(Dependencies{
		Tx:       world.Runner(),
		Likes:    world.Likes(),
		Quotas:   world.Quotas(),
		Blocks:   world.Blocks(),
		Tiers:    world.Entitlements(),
		Matcher:  matcher,
		Surfacer: surfacer,
		Notifier: notes,
		Photos:   fakeSigner{},
	}, cfg)

	return &stack{world: world, notes: notes, service: service}
}

// activateChat gives both users a live conversation with each other.
func activateChat(t *testing.T, world *datingfakes.World, userID, targetID int64) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	matchID, _, err := world.Matches().Create(ctx, nil, userID, targetID, now)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	m, err := world.Matches().GetByID(ctx, nil, matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	conversations := world.Conversations()
	if err := conversations.Ensure(ctx, nil, m, now.Add(48*time.Hour), now); err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	for _, id := range []int64{userID, targetID} {
		if _, err := conversations.SetConsent(ctx, nil, matchID, id, enums.TierBase, now); err != nil {
			t.Fatalf("set consent: %v", err)
		}
	}
	if ok, err := conversations.Activate(ctx, nil, matchID, now, now.Add(7*24*time.Hour)); err != nil || !ok {
		t.Fatalf("activate conversation: ok=%v err=%v", ok, err)
	}
	return matchID
}

func TestFirstLikeCreatesHiddenEdge(t *testing.T) {
	s := newStack(t, Config{})

	result, err := s.service.RecordLike(context.Background(), 7, 9, nil)
	if err != nil {
		t.Fatalf("record like: %v", err)
	}
	if result.IsMatch || result.MatchID != nil || result.IsPending {
		t.Fatalf("unexpected result for first like: %+v", result)
	}

	edge, ok := s.world.Edge(7, 9)
	if !ok {
		t.Fatal("expected edge 7->9 to exist")
	}
	if edge.State != enums.EdgeStatePendingHidden {
		t.Fatalf("unexpected edge state: %s", edge.State)
	}

	notes := s.notes.all()
	if len(notes) != 1 || notes[0].kind != "like" || notes[0].to != 9 || notes[0].from != 7 {
		t.Fatalf("unexpected notifications: %+v", notes)
	}
}

func TestReciprocalLikeCreatesMatchWithOneHintEach(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()

	if _, err := s.service.RecordLike(ctx, 7, 9, nil); err != nil {
		t.Fatalf("like 7->9: %v", err)
	}
	result, err := s.service.RecordLike(ctx, 9, 7, nil)
	if err != nil {
		t.Fatalf("like 9->7: %v", err)
	}
	if !result.IsMatch || result.IsPending || result.MatchID == nil {
		t.Fatalf("expected created match, got %+v", result)
	}

	m, ok := s.world.Match(7, 9)
	if !ok || m.ID != *result.MatchID {
		t.Fatalf("expected match row %d, got %+v (ok=%v)", *result.MatchID, m, ok)
	}
	for _, pair := range [][2]int64{{7, 9}, {9, 7}} {
		edge, _ := s.world.Edge(pair[0], pair[1])
		if edge.State != enums.EdgeStateMatched {
			t.Fatalf("edge %d->%d not matched: %s", pair[0], pair[1], edge.State)
		}
	}
	for _, userID := range []int64{7, 9} {
		if got := s.world.SystemHints(m.ID, userID); got != 1 {
			t.Fatalf("expected one hint for user %d, got %d", userID, got)
		}
	}

	matchNotes := 0
	for _, n := range s.notes.all() {
		if n.kind == "match" {
			matchNotes++
			if n.matchID == nil || *n.matchID != m.ID {
				t.Fatalf("match notification without match id: %+v", n)
			}
		}
	}
	if matchNotes != 2 {
		t.Fatalf("expected both users notified of the match, got %d", matchNotes)
	}
}

func TestReciprocalLikeQueuesWhenCounterpartBusy(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()
	activateChat(t, s.world, 9, 11)

	if _, err := s.service.RecordLike(ctx, 7, 9, nil); err != nil {
		t.Fatalf("like 7->9: %v", err)
	}
	result, err := s.service.RecordLike(ctx, 9, 7, nil)
	if err != nil {
		t.Fatalf("like 9->7: %v", err)
	}
	if !result.IsMatch || !result.IsPending || result.MatchID != nil {
		t.Fatalf("expected pending match, got %+v", result)
	}
	if _, ok := s.world.Match(7, 9); ok {
		t.Fatal("queued formation must not create a match row")
	}
	for _, pair := range [][2]int64{{7, 9}, {9, 7}} {
		edge, _ := s.world.Edge(pair[0], pair[1])
		if edge.State != enums.EdgeStateMatched {
			t.Fatalf("edge %d->%d not matched: %s", pair[0], pair[1], edge.State)
		}
	}

	var matchNotes []notification
	for _, n := range s.notes.all() {
		if n.kind == "match" {
			matchNotes = append(matchNotes, n)
		}
	}
	if len(matchNotes) != 1 || matchNotes[0].to != 7 || matchNotes[0].matchID != nil {
		t.Fatalf("expected only user 7 notified without a match id, got %+v", matchNotes)
	}
}

func TestRepeatLikeOnQueuedPairDoesNotRenotify(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()
	activateChat(t, s.world, 9, 11)

	if _, err := s.service.RecordLike(ctx, 7, 9, nil); err != nil {
		t.Fatalf("like 7->9: %v", err)
	}
	if _, err := s.service.RecordLike(ctx, 9, 7, nil); err != nil {
		t.Fatalf("like 9->7: %v", err)
	}
	before := len(s.notes.all())

	for _, pair := range [][2]int64{{7, 9}, {9, 7}} {
		result, err := s.service.RecordLike(ctx, pair[0], pair[1], nil)
		if err != nil {
			t.Fatalf("repeat like %d->%d: %v", pair[0], pair[1], err)
		}
		if !result.IsMatch || !result.IsPending {
			t.Fatalf("repeat like must still report the pending match, got %+v", result)
		}
	}

	if after := s.notes.all(); len(after) != before {
		t.Fatalf("repeat likes on a queued pair must not notify again: %+v", after[before:])
	}
}

func TestRepeatLikeIsIdempotent(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()

	if _, err := s.service.RecordLike(ctx, 7, 9, nil); err != nil {
		t.Fatalf("like: %v", err)
	}
	first, _ := s.world.Edge(7, 9)

	annotation := &model.Annotation{Kind: enums.AnnotationPrompt, Key: "prompt-3", Comment: "same"}
	if _, err := s.service.RecordLike(ctx, 7, 9, annotation); err != nil {
		t.Fatalf("repeat like: %v", err)
	}
	second, _ := s.world.Edge(7, 9)
	if second.ID != first.ID || second.State != first.State {
		t.Fatalf("repeat like changed the edge: %+v -> %+v", first, second)
	}
	if second.Annotation == nil || second.Annotation.Key != "prompt-3" {
		t.Fatalf("expected annotation to be replaced, got %+v", second.Annotation)
	}

	if _, err := s.service.RecordLike(ctx, 9, 7, nil); err != nil {
		t.Fatalf("reciprocal like: %v", err)
	}
	m, _ := s.world.Match(7, 9)
	again, err := s.service.RecordLike(ctx, 9, 7, nil)
	if err != nil {
		t.Fatalf("repeat reciprocal like: %v", err)
	}
	if !again.IsMatch || again.MatchID == nil || *again.MatchID != m.ID {
		t.Fatalf("expected the existing match, got %+v", again)
	}
	edge, _ := s.world.Edge(7, 9)
	if edge.State != enums.EdgeStateMatched {
		t.Fatalf("re-liking must never regress the edge, got %s", edge.State)
	}

	used, err := s.world.Quotas().GetLikesUsed(ctx, 7, rules.DayKey(time.Now().UTC(), time.UTC))
	if err != nil {
		t.Fatalf("read quota: %v", err)
	}
	if used != 1 {
		t.Fatalf("repeat likes must not consume quota, used=%d", used)
	}
}

func TestConcurrentReciprocalLikesFormOneMatch(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := newStack(t, Config{})
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, pair := range [][2]int64{{7, 9}, {9, 7}} {
			wg.Add(1)
			go func(from, to int64) {
				defer wg.Done()
				if _, err := s.service.RecordLike(ctx, from, to, nil); err != nil {
					errs <- err
				}
			}(pair[0], pair[1])
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("record like: %v", err)
		}

		m, ok := s.world.Match(7, 9)
		if !ok {
			t.Fatalf("run %d: expected exactly one match", i)
		}
		for _, userID := range []int64{7, 9} {
			if got := s.world.SystemHints(m.ID, userID); got != 1 {
				t.Fatalf("run %d: expected one hint for %d, got %d", i, userID, got)
			}
		}
	}
}

func TestReciprocalLikeRevivesExpiredEdge(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.world.PutEdge(7, 9, base.Add(-10*24*time.Hour))
	s.world.MarkSurfaced(7, 9, base.Add(-5*24*time.Hour))
	if _, err := s.world.Likes().ExpireSurfaced(ctx, nil, 9, base, base); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if edge, _ := s.world.Edge(7, 9); edge.State != enums.EdgeStateExpired {
		t.Fatalf("setup: expected expired edge, got %s", edge.State)
	}

	result, err := s.service.RecordLike(ctx, 9, 7, nil)
	if err != nil {
		t.Fatalf("like 9->7: %v", err)
	}
	if !result.IsMatch || result.MatchID == nil {
		t.Fatalf("expected the expired edge to form a match, got %+v", result)
	}
}

func TestDailyQuotaLimitsNewLikesForBaseTier(t *testing.T) {
	s := newStack(t, Config{FreeLikesPerDay: 2})
	ctx := context.Background()

	for _, target := range []int64{20, 21} {
		if _, err := s.service.RecordLike(ctx, 7, target, nil); err != nil {
			t.Fatalf("like %d: %v", target, err)
		}
	}
	if _, err := s.service.RecordLike(ctx, 7, 22, nil); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}
	if _, ok := s.world.Edge(7, 22); ok {
		t.Fatal("rejected like must not create an edge")
	}
	if _, err := s.service.RecordLike(ctx, 7, 20, nil); err != nil {
		t.Fatalf("re-like of an existing edge must still pass: %v", err)
	}

	snapshot, err := s.service.Quota(ctx, 7)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if snapshot.LikesLeft != 0 || snapshot.Tier != enums.TierBase {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	s.world.SetPlus(7)
	if _, err := s.service.RecordLike(ctx, 7, 22, nil); err != nil {
		t.Fatalf("plus like: %v", err)
	}
	snapshot, err = s.service.Quota(ctx, 7)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if snapshot.LikesLeft != -1 {
		t.Fatalf("plus tier must be unlimited, got %d", snapshot.LikesLeft)
	}
}

func TestQuotaResetsOnLocalMidnight(t *testing.T) {
	s := newStack(t, Config{FreeLikesPerDay: 1, DefaultTimezone: "Europe/Minsk"})
	ctx := context.Background()

	now := time.Date(2026, 2, 8, 20, 30, 0, 0, time.UTC) // 23:30 local
	s.service.now = func() time.Time { return now }

	if _, err := s.service.RecordLike(ctx, 7, 20, nil); err != nil {
		t.Fatalf("first like: %v", err)
	}
	if _, err := s.service.RecordLike(ctx, 7, 21, nil); !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("expected ErrDailyLimit, got %v", err)
	}

	now = time.Date(2026, 2, 8, 21, 1, 0, 0, time.UTC) // 00:01 next local day
	if _, err := s.service.RecordLike(ctx, 7, 21, nil); err != nil {
		t.Fatalf("like after reset: %v", err)
	}
}

func TestRateLimitedLikeChangesNothing(t *testing.T) {
	s := newStack(t, Config{})
	s.service.deps.Limiter = blockingLimiter{retryAfter: 12}

	_, err := s.service.RecordLike(context.Background(), 7, 9, nil)
	tooFast, ok := IsTooFast(err)
	if !ok {
		t.Fatalf("expected TooFastError, got %v", err)
	}
	if tooFast.RetryAfter() != 12 {
		t.Fatalf("unexpected retry after: %d", tooFast.RetryAfter())
	}
	if _, ok := s.world.Edge(7, 9); ok {
		t.Fatal("rate-limited like must not create an edge")
	}
}

func TestRecordLikeValidation(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()

	cases := []struct {
		name       string
		from, to   int64
		annotation *model.Annotation
	}{
		{name: "self like", from: 7, to: 7},
		{name: "zero id", from: 0, to: 7},
		{name: "photo without key", from: 7, to: 9, annotation: &model.Annotation{Kind: enums.AnnotationPhoto}},
		{name: "profile with key", from: 7, to: 9, annotation: &model.Annotation{Kind: enums.AnnotationProfile, Key: "x"}},
		{name: "unknown kind", from: 7, to: 9, annotation: &model.Annotation{Kind: "voice"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.service.RecordLike(ctx, tc.from, tc.to, tc.annotation); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestBlockedPairCannotLike(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()
	if err := s.world.Blocks().Upsert(ctx, nil, 9, 7, enums.BlockReasonSpam); err != nil {
		t.Fatalf("block: %v", err)
	}

	if _, err := s.service.RecordLike(ctx, 7, 9, nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, ok := s.world.Edge(7, 9); ok {
		t.Fatal("blocked like must not create an edge")
	}
}

func TestIncomingSurfacesAndSignsPhotos(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()

	annotation := &model.Annotation{Kind: enums.AnnotationPhoto, Key: "users/9/photo-1.jpg", Comment: "nice"}
	if _, err := s.service.RecordLike(ctx, 7, 9, annotation); err != nil {
		t.Fatalf("like: %v", err)
	}

	items, err := s.service.Incoming(ctx, 9)
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(items) != 1 || items[0].FromUserID != 7 {
		t.Fatalf("expected the first like to surface immediately, got %+v", items)
	}
	want := fmt.Sprintf("https://cdn.test/%s?sig=1", annotation.Key)
	if items[0].PhotoURL != want {
		t.Fatalf("unexpected photo url: got %q want %q", items[0].PhotoURL, want)
	}
}

func TestIncomingRespectsVisibleQuota(t *testing.T) {
	s := newStack(t, Config{})
	ctx := context.Background()

	for i := int64(0); i < 6; i++ {
		if _, err := s.service.RecordLike(ctx, 30+i, 9, nil); err != nil {
			t.Fatalf("like %d: %v", 30+i, err)
		}
	}

	for i := 0; i < 3; i++ {
		items, err := s.service.Incoming(ctx, 9)
		if err != nil {
			t.Fatalf("incoming: %v", err)
		}
		if len(items) != rules.DefaultSurfacingPolicy().MaxVisible {
			t.Fatalf("read %d: expected %d visible likes, got %d", i, rules.DefaultSurfacingPolicy().MaxVisible, len(items))
		}
	}
}
