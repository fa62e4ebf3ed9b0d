package surfacing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	redrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/redis"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/testkit/datingfakes"
)

const recipient = int64(9)

func newService(world *datingfakes.World, policy rules.SurfacingPolicy, now time.Time) *Service {
	svc := NewService(Dependencies{
		Tx:       world.Runner(),
		Likes:    world.Likes(),
		Presence: world.Presence(),
		Passes:   world.Passes(),
	}, Config{Policy: policy})
	svc.now = func() time.Time { return now }
	return svc
}

func countVisible(t *testing.T, world *datingfakes.World) int {
	t.Helper()
	items, err := world.Likes().ListIncomingVisible(context.Background(), recipient, 100)
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	return len(items)
}

func TestConcurrentSurfaceNeverExceedsVisibleQuota(t *testing.T) {
	world := datingfakes.NewWorld()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(0); i < 20; i++ {
		world.PutEdge(100+i, recipient, now.Add(-3*time.Hour))
	}
	svc := newService(world, rules.DefaultSurfacingPolicy(), now)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.Surface(context.Background(), recipient)
			if err != nil {
				t.Errorf("surface: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 3 {
		t.Fatalf("unexpected promoted total: got %d want 3", total)
	}
	if got := countVisible(t, world); got != 3 {
		t.Fatalf("unexpected visible count: got %d want 3", got)
	}
}

func TestSurfaceRespectsDailyQuota(t *testing.T) {
	world := datingfakes.NewWorld()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := int64(0); i < 20; i++ {
		world.PutEdge(100+i, recipient, start.Add(-3*time.Hour))
	}
	policy := rules.SurfacingPolicy{MaxVisible: 3, DailyQuota: 4, Delay: time.Hour, VisibleTTL: time.Hour}.Normalize()

	first := newService(world, policy, start)
	if n, err := first.Surface(context.Background(), recipient); err != nil || n != 3 {
		t.Fatalf("first surface: n=%d err=%v", n, err)
	}

	// Two hours later the visible likes have aged out, but only one promotion is left today.
	later := newService(world, policy, start.Add(2*time.Hour))
	n, err := later.Surface(context.Background(), recipient)
	if err != nil {
		t.Fatalf("second surface: %v", err)
	}
	if n != 1 {
		t.Fatalf("daily quota must bind: got %d want 1", n)
	}

	nextDay := newService(world, policy, start.Add(26*time.Hour))
	if n, err := nextDay.Surface(context.Background(), recipient); err != nil || n != 3 {
		t.Fatalf("next day surface: n=%d err=%v", n, err)
	}
}

func TestLowActivityRecipientGetsShorterDelay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := rules.DefaultSurfacingPolicy()
	policy.ImmediateFirst = false

	active := datingfakes.NewWorld()
	active.SetLastSeen(recipient, now.Add(-time.Hour))
	active.PutEdge(100, recipient, now.Add(-30*time.Minute))
	if n, err := newService(active, policy, now).Surface(context.Background(), recipient); err != nil || n != 0 {
		t.Fatalf("active recipient must wait the full delay: n=%d err=%v", n, err)
	}

	dormant := datingfakes.NewWorld()
	dormant.SetLastSeen(recipient, now.Add(-100*time.Hour))
	dormant.PutEdge(100, recipient, now.Add(-30*time.Minute))
	if n, err := newService(dormant, policy, now).Surface(context.Background(), recipient); err != nil || n != 1 {
		t.Fatalf("dormant recipient must get the short delay: n=%d err=%v", n, err)
	}
}

func TestOnlineSenderWinsTheSlot(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := rules.SurfacingPolicy{MaxVisible: 1, DailyQuota: 10, Delay: time.Hour, OnlineBonus: 30 * time.Minute}.Normalize()
	policy.ImmediateFirst = false

	world := datingfakes.NewWorld()
	world.PutEdge(100, recipient, now.Add(-2*time.Hour))
	world.PutEdge(101, recipient, now.Add(-2*time.Hour-10*time.Minute))
	world.SetLastSeen(101, now.Add(-time.Minute))

	if _, err := newService(world, policy, now).Surface(context.Background(), recipient); err != nil {
		t.Fatalf("surface: %v", err)
	}
	edge, _ := world.Edge(101, recipient)
	if edge.State != enums.EdgeStateSurfaced {
		t.Fatalf("expected online sender surfaced, got %s", edge.State)
	}
}

func TestInboundBoostCandidatesHonorsCooldownAndExclusions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	world := datingfakes.NewWorld()
	now := time.Now().UTC()
	for i := int64(0); i < 4; i++ {
		world.PutEdge(100+i, recipient, now.Add(-time.Duration(i)*time.Minute))
	}
	ctx := context.Background()
	if err := world.Blocks().Upsert(ctx, nil, 103, recipient, enums.BlockReasonSpam); err != nil {
		t.Fatalf("block: %v", err)
	}

	svc := NewService(Dependencies{
		Tx:          world.Runner(),
		Likes:       world.Likes(),
		Presence:    world.Presence(),
		Impressions: redrepo.NewImpressionRepo(client),
		Passes:      world.Passes(),
	}, Config{BoostCandidates: 2, ImpressionCooldown: time.Hour})

	if err := svc.RecordPass(ctx, recipient, 100); err != nil {
		t.Fatalf("record pass: %v", err)
	}

	got, err := svc.InboundBoostCandidates(ctx, recipient)
	if err != nil {
		t.Fatalf("boost candidates: %v", err)
	}
	if len(got) != 2 || got[0] != 101 || got[1] != 102 {
		t.Fatalf("unexpected candidates: %v", got)
	}

	again, err := svc.InboundBoostCandidates(ctx, recipient)
	if err != nil {
		t.Fatalf("boost candidates again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected cooldown to hide recent impressions, got %v", again)
	}

	mr.FastForward(61 * time.Minute)
	after, err := svc.InboundBoostCandidates(ctx, recipient)
	if err != nil {
		t.Fatalf("boost candidates after cooldown: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected candidates back after cooldown, got %v", after)
	}
}
