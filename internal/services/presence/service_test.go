package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/redis"
)

type touchRecorder struct {
	touches []time.Time
}

func (r *touchRecorder) Touch(_ context.Context, _ int64, at time.Time) error {
	r.touches = append(r.touches, at)
	return nil
}

func TestTouchIsDebounced(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store := &touchRecorder{}
	svc := NewService(redrepo.NewPresenceRepo(client), store, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.Touch(ctx, 7); err != nil {
			t.Fatalf("touch #%d: %v", i+1, err)
		}
	}
	if len(store.touches) != 1 {
		t.Fatalf("unexpected touches inside debounce: got %d want 1", len(store.touches))
	}

	mr.FastForward(61 * time.Second)
	if err := svc.Touch(ctx, 7); err != nil {
		t.Fatalf("touch after debounce: %v", err)
	}
	if err := svc.Touch(ctx, 8); err != nil {
		t.Fatalf("touch other user: %v", err)
	}
	if len(store.touches) != 3 {
		t.Fatalf("unexpected touches after debounce: got %d want 3", len(store.touches))
	}
}
